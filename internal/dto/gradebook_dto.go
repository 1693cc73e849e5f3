package dto

import "time"

// Derived per-student statuses used across gradebook views. "pending" and
// "overdue" never hit the database; they are computed against the due date.
const (
	EntryStatusPending   = "pending"
	EntryStatusSubmitted = "submitted"
	EntryStatusGraded    = "graded"
	EntryStatusOverdue   = "overdue"
)

// Assignment-level priorities derived from submission counts.
const (
	PriorityUrgent    = "urgent"
	PrioritySubmitted = "submitted"
	PriorityPending   = "pending"
)

// Sort keys accepted by the gradebook entry listing.
const (
	SortByName     = "name"
	SortByProgress = "progress"
	SortByActivity = "activity"
)

// GradebookQuery narrows and orders the aggregated gradebook view.
type GradebookQuery struct {
	CourseID  *uint  `query:"course_id"`
	Status    string `query:"status" validate:"omitempty,oneof=pending submitted graded overdue urgent"`
	Search    string `query:"search"`
	SortBy    string `query:"sort_by" validate:"omitempty,oneof=name progress activity"`
	SortOrder string `query:"sort_order" validate:"omitempty,oneof=asc desc"`
	Limit     int    `query:"limit" validate:"omitempty,gte=1,lte=500"`
}

// StudentSubmissionView is the per-student row inside an assignment summary.
type StudentSubmissionView struct {
	StudentID     uint       `json:"student_id"`
	StudentName   string     `json:"student_name"`
	StudentEmail  string     `json:"student_email"`
	StudentAvatar string     `json:"student_avatar"`
	Status        string     `json:"status"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	IsLate        bool       `json:"is_late"`
	SubmissionID  *uint      `json:"submission_id"`
	AttachmentURL string     `json:"attachment_url"`
	LastActivity  time.Time  `json:"last_activity"`
}

// AssignmentSubmissionSummary aggregates submission state for one assignment.
// Counts come from the aggregation pass; clients never mutate them.
type AssignmentSubmissionSummary struct {
	AssignmentID    uint                    `json:"assignment_id"`
	AssignmentTitle string                  `json:"assignment_title"`
	CourseID        uint                    `json:"course_id"`
	CourseTitle     string                  `json:"course_title"`
	DueDate         time.Time               `json:"due_date"`
	TotalStudents   int                     `json:"total_students"`
	SubmittedCount  int                     `json:"submitted_count"`
	GradedCount     int                     `json:"graded_count"`
	OverdueCount    int                     `json:"overdue_count"`
	Priority        string                  `json:"priority"`
	Submissions     []StudentSubmissionView `json:"submissions"`
}

// GradebookEntry is the flattened (student, assignment) grade row. It is
// derived on every request and never persisted. Percentage is nil exactly
// when Score is nil.
type GradebookEntry struct {
	StudentID    uint       `json:"student_id"`
	StudentName  string     `json:"student_name"`
	StudentEmail string     `json:"student_email"`
	AssignmentID uint       `json:"assignment_id"`
	Assignment   string     `json:"assignment_title"`
	CourseID     uint       `json:"course_id"`
	CourseTitle  string     `json:"course_title"`
	Score        *float64   `json:"score"`
	MaxScore     float64    `json:"max_score"`
	Percentage   *float64   `json:"percentage"`
	Status       string     `json:"status"`
	DueDate      time.Time  `json:"due_date"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	GradedAt     *time.Time `json:"graded_at"`
	Feedback     string     `json:"feedback"`
	IsLate       bool       `json:"is_late"`
	LastActivity time.Time  `json:"last_activity"`
}

// CourseLoadError reports a single course whose summaries could not be loaded.
type CourseLoadError struct {
	CourseID    uint   `json:"course_id"`
	CourseTitle string `json:"course_title"`
	Error       string `json:"error"`
}

// GradebookSummariesResponse carries aggregated summaries plus structured
// partial-failure information when best-effort loading is enabled.
type GradebookSummariesResponse struct {
	Summaries     []AssignmentSubmissionSummary `json:"summaries"`
	FailedCourses []CourseLoadError             `json:"failed_courses"`
	Partial       bool                          `json:"partial"`
	GeneratedAt   time.Time                     `json:"generated_at"`
}

// GradebookEntriesResponse carries flattened grade rows plus partial-failure
// information.
type GradebookEntriesResponse struct {
	Entries       []GradebookEntry  `json:"entries"`
	FailedCourses []CourseLoadError `json:"failed_courses"`
	Partial       bool              `json:"partial"`
	GeneratedAt   time.Time         `json:"generated_at"`
}
