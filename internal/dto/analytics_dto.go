package dto

import "time"

// GradeDistributionResponse buckets graded submissions by percentage band.
type GradeDistributionResponse map[string]int64

// WeeklyEngagementPoint counts submissions received in a given week.
type WeeklyEngagementPoint struct {
	WeekStart   time.Time `json:"week_start"`
	Submissions int64     `json:"submissions"`
}

// CourseRevenue reports earnings attributed to a single course.
type CourseRevenue struct {
	CourseID    uint    `json:"course_id"`
	CourseTitle string  `json:"course_title"`
	Enrollments int64   `json:"enrollments"`
	Revenue     float64 `json:"revenue"`
}

// RevenueSummary aggregates earnings across the catalog.
type RevenueSummary struct {
	Total    float64         `json:"total"`
	ByCourse []CourseRevenue `json:"by_course"`
}

// AnalyticsSummaryResponse aggregates dashboard metrics. Demo is true when the
// data source failed and a static fallback snapshot was substituted.
type AnalyticsSummaryResponse struct {
	ActiveStudents    int64                     `json:"active_students"`
	OnTimeSubmissions int64                     `json:"on_time_submissions"`
	LateSubmissions   int64                     `json:"late_submissions"`
	GradeDistribution GradeDistributionResponse `json:"grade_distribution"`
	WeeklyEngagement  []WeeklyEngagementPoint   `json:"weekly_engagement"`
	Revenue           RevenueSummary            `json:"revenue"`
	GeneratedAt       time.Time                 `json:"generated_at"`
	CacheHit          bool                      `json:"cache_hit"`
	Demo              bool                      `json:"demo"`
}
