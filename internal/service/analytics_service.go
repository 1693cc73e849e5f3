package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
)

const analyticsCacheKey = "eduport:analytics:summary"

// AnalyticsService aggregates dashboard metrics for teachers and admins.
type AnalyticsService interface {
	Summary(ctx context.Context) (dto.AnalyticsSummaryResponse, error)
}

type analyticsService struct {
	repo   repository.AnalyticsRepository
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewAnalyticsService constructs an analytics service. The redis client is
// optional; without one every call recomputes the summary.
func NewAnalyticsService(repo repository.AnalyticsRepository, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) AnalyticsService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &analyticsService{
		repo:   repo,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.With().Str("component", "analytics_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/eduport-api/internal/service/analytics"),
		now:    time.Now,
	}
}

// Summary returns the dashboard snapshot. When the data source is unavailable
// a static demo snapshot is substituted and flagged, so the dashboard renders
// instead of erroring.
func (s *analyticsService) Summary(ctx context.Context) (dto.AnalyticsSummaryResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "analytics.summary")
	defer span.End()

	if cached, ok := s.readCache(spanCtx); ok {
		cached.CacheHit = true
		return cached, nil
	}

	summary, err := s.compute(spanCtx)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Msg("analytics source unavailable, serving demo snapshot")
		return s.demoSnapshot(), nil
	}

	s.writeCache(spanCtx, summary)

	return summary, nil
}

func (s *analyticsService) compute(ctx context.Context) (dto.AnalyticsSummaryResponse, error) {
	activeStudents, err := s.repo.CountActiveStudents(ctx)
	if err != nil {
		return dto.AnalyticsSummaryResponse{}, err
	}

	submissions, err := s.repo.ListSubmissionsWithAssignments(ctx)
	if err != nil {
		return dto.AnalyticsSummaryResponse{}, err
	}

	enrollments, err := s.repo.ListEnrollmentsWithCourses(ctx)
	if err != nil {
		return dto.AnalyticsSummaryResponse{}, err
	}

	var onTime, late int64
	distribution := dto.GradeDistributionResponse{
		"90-100": 0,
		"80-89":  0,
		"70-79":  0,
		"60-69":  0,
		"<60":    0,
	}
	weekly := make(map[time.Time]int64)

	for _, submission := range submissions {
		if submission.IsLate {
			late++
		} else {
			onTime++
		}

		weekly[startOfWeek(submission.CreatedAt)]++

		if submission.Grade == nil {
			continue
		}
		maxScore := submission.Assignment.MaxScore
		if maxScore <= 0 {
			maxScore = 100
		}
		distribution[gradeBucket(*submission.Grade/maxScore*100)]++
	}

	points := make([]dto.WeeklyEngagementPoint, 0, len(weekly))
	for weekStart, count := range weekly {
		points = append(points, dto.WeeklyEngagementPoint{WeekStart: weekStart, Submissions: count})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].WeekStart.Before(points[j].WeekStart)
	})

	return dto.AnalyticsSummaryResponse{
		ActiveStudents:    activeStudents,
		OnTimeSubmissions: onTime,
		LateSubmissions:   late,
		GradeDistribution: distribution,
		WeeklyEngagement:  points,
		Revenue:           buildRevenue(enrollments),
		GeneratedAt:       s.now().UTC(),
	}, nil
}

func buildRevenue(enrollments []models.Enrollment) dto.RevenueSummary {
	type courseAgg struct {
		title       string
		enrollments int64
		revenue     float64
	}

	byCourse := make(map[uint]*courseAgg)
	for _, enrollment := range enrollments {
		agg, ok := byCourse[enrollment.CourseID]
		if !ok {
			agg = &courseAgg{title: enrollment.Course.Title}
			byCourse[enrollment.CourseID] = agg
		}
		agg.enrollments++
		agg.revenue += enrollment.Course.Price
	}

	summary := dto.RevenueSummary{ByCourse: make([]dto.CourseRevenue, 0, len(byCourse))}
	for courseID, agg := range byCourse {
		summary.Total += agg.revenue
		summary.ByCourse = append(summary.ByCourse, dto.CourseRevenue{
			CourseID:    courseID,
			CourseTitle: agg.title,
			Enrollments: agg.enrollments,
			Revenue:     agg.revenue,
		})
	}

	sort.Slice(summary.ByCourse, func(i, j int) bool {
		return summary.ByCourse[i].Revenue > summary.ByCourse[j].Revenue
	})

	return summary
}

func gradeBucket(percentage float64) string {
	switch {
	case percentage >= 90:
		return "90-100"
	case percentage >= 80:
		return "80-89"
	case percentage >= 70:
		return "70-79"
	case percentage >= 60:
		return "60-69"
	default:
		return "<60"
	}
}

// startOfWeek truncates to the Monday of the submission's week, in UTC.
func startOfWeek(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	year, month, day := t.AddDate(0, 0, -(weekday - 1)).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (s *analyticsService) readCache(ctx context.Context) (dto.AnalyticsSummaryResponse, bool) {
	if s.redis == nil {
		return dto.AnalyticsSummaryResponse{}, false
	}

	raw, err := s.redis.Get(ctx, analyticsCacheKey).Result()
	if err != nil {
		return dto.AnalyticsSummaryResponse{}, false
	}

	var summary dto.AnalyticsSummaryResponse
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.logger.Warn().Err(err).Msg("discarding corrupt analytics cache entry")
		return dto.AnalyticsSummaryResponse{}, false
	}

	return summary, true
}

func (s *analyticsService) writeCache(ctx context.Context, summary dto.AnalyticsSummaryResponse) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, analyticsCacheKey, payload, s.ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache analytics summary")
	}
}

// demoSnapshot is the static fallback served when the data source fails.
func (s *analyticsService) demoSnapshot() dto.AnalyticsSummaryResponse {
	now := s.now().UTC()
	weekStart := startOfWeek(now)

	return dto.AnalyticsSummaryResponse{
		ActiveStudents:    128,
		OnTimeSubmissions: 342,
		LateSubmissions:   27,
		GradeDistribution: dto.GradeDistributionResponse{
			"90-100": 58,
			"80-89":  104,
			"70-79":  96,
			"60-69":  61,
			"<60":    50,
		},
		WeeklyEngagement: []dto.WeeklyEngagementPoint{
			{WeekStart: weekStart.AddDate(0, 0, -21), Submissions: 71},
			{WeekStart: weekStart.AddDate(0, 0, -14), Submissions: 88},
			{WeekStart: weekStart.AddDate(0, 0, -7), Submissions: 95},
			{WeekStart: weekStart, Submissions: 115},
		},
		Revenue: dto.RevenueSummary{
			Total: 12640,
			ByCourse: []dto.CourseRevenue{
				{CourseID: 1, CourseTitle: "Algebra Basics", Enrollments: 64, Revenue: 5120},
				{CourseID: 2, CourseTitle: "Intro to Physics", Enrollments: 47, Revenue: 4230},
				{CourseID: 3, CourseTitle: "World History", Enrollments: 41, Revenue: 3290},
			},
		},
		GeneratedAt: now,
		Demo:        true,
	}
}
