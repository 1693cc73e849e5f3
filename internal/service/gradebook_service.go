package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/export"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/observability"
	"github.com/noah-isme/eduport-api/internal/repository"
)

// GradebookService aggregates courses, assignments and submissions into
// per-assignment summaries and flat (student, assignment) grade rows.
type GradebookService interface {
	Summaries(ctx context.Context, query dto.GradebookQuery) (dto.GradebookSummariesResponse, error)
	Entries(ctx context.Context, query dto.GradebookQuery) (dto.GradebookEntriesResponse, error)
	ExportCSV(ctx context.Context, query dto.GradebookQuery, w io.Writer) (string, error)
}

// GradebookOptions tunes aggregation behaviour.
type GradebookOptions struct {
	// Concurrency bounds the per-course fan-out.
	Concurrency int
	// StrictLoad fails the whole aggregation on any course error instead of
	// returning partial results with a failure report.
	StrictLoad bool
	// IncludeBOM prefixes CSV exports with a UTF-8 byte order mark.
	IncludeBOM bool
}

type gradebookService struct {
	courses     repository.CourseRepository
	enrollments repository.EnrollmentRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	validator   *validator.Validate
	opts        GradebookOptions
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradebookService builds the gradebook aggregator.
func NewGradebookService(
	courses repository.CourseRepository,
	enrollments repository.EnrollmentRepository,
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	validate *validator.Validate,
	opts GradebookOptions,
	logger zerolog.Logger,
) GradebookService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	return &gradebookService{
		courses:     courses,
		enrollments: enrollments,
		assignments: assignments,
		submissions: submissions,
		validator:   validate,
		opts:        opts,
		logger:      logger.With().Str("component", "gradebook_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/eduport-api/internal/service/gradebook"),
		now:         time.Now,
	}
}

// courseData bundles everything loaded for a single course.
type courseData struct {
	course      models.Course
	enrollments []models.Enrollment
	assignments []models.Assignment
	submissions []models.Submission
}

func (s *gradebookService) Summaries(ctx context.Context, query dto.GradebookQuery) (dto.GradebookSummariesResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.GradebookSummariesResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "gradebook.summaries")
	defer span.End()

	loaded, failed, err := s.loadCourses(ctx, query.CourseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_load_failed")
		return dto.GradebookSummariesResponse{}, err
	}

	now := s.now()
	summaries := make([]dto.AssignmentSubmissionSummary, 0)
	for _, data := range loaded {
		summaries = append(summaries, s.buildSummaries(data, now)...)
	}

	summaries = filterSummaries(summaries, query)

	span.SetAttributes(
		attribute.Int("gradebook.summary_count", len(summaries)),
		attribute.Int("gradebook.failed_courses", len(failed)),
	)

	return dto.GradebookSummariesResponse{
		Summaries:     summaries,
		FailedCourses: failed,
		Partial:       len(failed) > 0,
		GeneratedAt:   now,
	}, nil
}

func (s *gradebookService) Entries(ctx context.Context, query dto.GradebookQuery) (dto.GradebookEntriesResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.GradebookEntriesResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "gradebook.entries")
	defer span.End()

	loaded, failed, err := s.loadCourses(ctx, query.CourseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course_load_failed")
		return dto.GradebookEntriesResponse{}, err
	}

	now := s.now()
	entries := make([]dto.GradebookEntry, 0)
	progressByStudent := map[uint][]float64{}
	for _, data := range loaded {
		entries = append(entries, s.buildEntries(data, now)...)
		for _, enrollment := range data.enrollments {
			progressByStudent[enrollment.StudentID] = append(progressByStudent[enrollment.StudentID], enrollment.ProgressPercent())
		}
	}

	entries = filterEntries(entries, query)
	sortEntries(entries, query, averageProgress(progressByStudent))

	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}

	span.SetAttributes(
		attribute.Int("gradebook.entry_count", len(entries)),
		attribute.Int("gradebook.failed_courses", len(failed)),
	)

	return dto.GradebookEntriesResponse{
		Entries:       entries,
		FailedCourses: failed,
		Partial:       len(failed) > 0,
		GeneratedAt:   now,
	}, nil
}

// ExportCSV writes the filtered entry set as CSV and returns the dated
// file name. Only filtered rows are exported, never the full set.
func (s *gradebookService) ExportCSV(ctx context.Context, query dto.GradebookQuery, w io.Writer) (string, error) {
	result, err := s.Entries(ctx, query)
	if err != nil {
		return "", err
	}

	headers := []string{
		"Student", "Email", "Course", "Assignment", "Status",
		"Score", "Max Score", "Percentage", "Due Date", "Submitted At",
		"Graded At", "Late", "Feedback",
	}

	rows := make([][]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		rows = append(rows, []string{
			entry.StudentName,
			entry.StudentEmail,
			entry.CourseTitle,
			entry.Assignment,
			entry.Status,
			formatScore(entry.Score),
			strconv.FormatFloat(entry.MaxScore, 'f', -1, 64),
			formatScore(entry.Percentage),
			entry.DueDate.UTC().Format(time.RFC3339),
			formatTime(entry.SubmittedAt),
			formatTime(entry.GradedAt),
			strconv.FormatBool(entry.IsLate),
			entry.Feedback,
		})
	}

	if err := export.WriteCSV(w, headers, rows, export.Options{IncludeBOM: s.opts.IncludeBOM}); err != nil {
		return "", err
	}

	return export.Filename("gradebook", s.now()), nil
}

// loadCourses fans out per-course loading with bounded concurrency. In strict
// mode the first failure aborts the whole aggregation; otherwise failed
// courses are skipped and reported so callers can surface which courses are
// missing rather than silently showing partial data.
func (s *gradebookService) loadCourses(ctx context.Context, courseID *uint) ([]courseData, []dto.CourseLoadError, error) {
	var courses []models.Course
	if courseID != nil {
		course, err := s.courses.GetByID(ctx, *courseID)
		if err != nil {
			return nil, nil, err
		}
		courses = []models.Course{course}
	} else {
		all, err := s.courses.List(ctx)
		if err != nil {
			return nil, nil, err
		}
		courses = all
	}

	results := make([]*courseData, len(courses))
	errs := make([]error, len(courses))

	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup
	for i := range courses {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := s.loadCourse(ctx, courses[idx])
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = &data
		}(i)
	}
	wg.Wait()

	loaded := make([]courseData, 0, len(courses))
	failed := make([]dto.CourseLoadError, 0)
	for i, course := range courses {
		if errs[i] != nil {
			observability.GradebookLoadFailures().Inc()
			if s.opts.StrictLoad {
				return nil, nil, fmt.Errorf("loading course %d: %w", course.ID, errs[i])
			}
			s.logger.Warn().Err(errs[i]).Uint("course_id", course.ID).Msg("skipping course after load failure")
			failed = append(failed, dto.CourseLoadError{
				CourseID:    course.ID,
				CourseTitle: course.Title,
				Error:       errs[i].Error(),
			})
			continue
		}
		loaded = append(loaded, *results[i])
	}

	return loaded, failed, nil
}

func (s *gradebookService) loadCourse(ctx context.Context, course models.Course) (courseData, error) {
	enrollments, err := s.enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return courseData{}, err
	}

	id := course.ID
	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{CourseID: &id})
	if err != nil {
		return courseData{}, err
	}

	submissions, err := s.submissions.ListByCourse(ctx, course.ID)
	if err != nil {
		return courseData{}, err
	}

	return courseData{
		course:      course,
		enrollments: enrollments,
		assignments: assignments,
		submissions: submissions,
	}, nil
}

func (s *gradebookService) buildSummaries(data courseData, now time.Time) []dto.AssignmentSubmissionSummary {
	submissionLookup := indexSubmissions(data.submissions)

	summaries := make([]dto.AssignmentSubmissionSummary, 0, len(data.assignments))
	for _, assignment := range data.assignments {
		summary := dto.AssignmentSubmissionSummary{
			AssignmentID:    assignment.ID,
			AssignmentTitle: assignment.Title,
			CourseID:        data.course.ID,
			CourseTitle:     data.course.Title,
			DueDate:         assignment.DueDate,
			TotalStudents:   len(data.enrollments),
			Submissions:     make([]dto.StudentSubmissionView, 0, len(data.enrollments)),
		}

		for _, enrollment := range data.enrollments {
			view := buildSubmissionView(assignment, enrollment, submissionLookup, now)
			switch view.Status {
			case dto.EntryStatusGraded:
				summary.GradedCount++
				summary.SubmittedCount++
			case dto.EntryStatusSubmitted:
				summary.SubmittedCount++
			case dto.EntryStatusOverdue:
				summary.OverdueCount++
			}
			summary.Submissions = append(summary.Submissions, view)
		}

		summary.Priority = summaryPriority(summary)
		summaries = append(summaries, summary)
	}

	return summaries
}

func (s *gradebookService) buildEntries(data courseData, now time.Time) []dto.GradebookEntry {
	submissionLookup := indexSubmissions(data.submissions)

	entries := make([]dto.GradebookEntry, 0, len(data.assignments)*len(data.enrollments))
	for _, assignment := range data.assignments {
		maxScore := assignment.MaxScore
		if maxScore <= 0 {
			maxScore = 100
		}

		for _, enrollment := range data.enrollments {
			view := buildSubmissionView(assignment, enrollment, submissionLookup, now)

			entry := dto.GradebookEntry{
				StudentID:    enrollment.StudentID,
				StudentName:  enrollment.Student.DisplayName(),
				StudentEmail: enrollment.Student.Email,
				AssignmentID: assignment.ID,
				Assignment:   assignment.Title,
				CourseID:     data.course.ID,
				CourseTitle:  data.course.Title,
				MaxScore:     maxScore,
				Status:       view.Status,
				DueDate:      assignment.DueDate,
				SubmittedAt:  view.SubmittedAt,
				IsLate:       view.IsLate,
				LastActivity: view.LastActivity,
			}

			if submission, ok := submissionLookup[submissionKey{assignment.ID, enrollment.StudentID}]; ok {
				entry.Feedback = submission.Feedback
				entry.GradedAt = submission.GradedAt
				if submission.Grade != nil {
					score := *submission.Grade
					percentage := (score / maxScore) * 100
					entry.Score = &score
					entry.Percentage = &percentage
				}
			}

			entries = append(entries, entry)
		}
	}

	return entries
}

type submissionKey struct {
	assignmentID uint
	studentID    uint
}

func indexSubmissions(submissions []models.Submission) map[submissionKey]models.Submission {
	lookup := make(map[submissionKey]models.Submission, len(submissions))
	for _, submission := range submissions {
		key := submissionKey{submission.AssignmentID, submission.StudentID}
		if _, exists := lookup[key]; !exists {
			lookup[key] = submission
		}
	}
	return lookup
}

func buildSubmissionView(assignment models.Assignment, enrollment models.Enrollment, lookup map[submissionKey]models.Submission, now time.Time) dto.StudentSubmissionView {
	view := dto.StudentSubmissionView{
		StudentID:     enrollment.StudentID,
		StudentName:   enrollment.Student.DisplayName(),
		StudentEmail:  enrollment.Student.Email,
		StudentAvatar: enrollment.Student.AvatarURL,
		LastActivity:  enrollment.LastActivity,
	}

	submission, ok := lookup[submissionKey{assignment.ID, enrollment.StudentID}]
	if !ok {
		if assignment.IsPastDue(now) {
			view.Status = dto.EntryStatusOverdue
		} else {
			view.Status = dto.EntryStatusPending
		}
		return view
	}

	submittedAt := submission.CreatedAt
	view.SubmittedAt = &submittedAt
	view.IsLate = submission.IsLate
	view.AttachmentURL = submission.FileURL
	id := submission.ID
	view.SubmissionID = &id
	view.LastActivity = submission.UpdatedAt

	if submission.IsGraded() {
		view.Status = dto.EntryStatusGraded
	} else {
		view.Status = dto.EntryStatusSubmitted
	}

	return view
}

// summaryPriority derives the assignment-level priority. Overdue dominates:
// any overdue submission makes the assignment urgent regardless of how many
// students already submitted.
func summaryPriority(summary dto.AssignmentSubmissionSummary) string {
	if summary.OverdueCount > 0 {
		return dto.PriorityUrgent
	}
	if summary.SubmittedCount > 0 {
		return dto.PrioritySubmitted
	}
	return dto.PriorityPending
}

func filterSummaries(summaries []dto.AssignmentSubmissionSummary, query dto.GradebookQuery) []dto.AssignmentSubmissionSummary {
	status := normalizePriority(query.Status)
	search := strings.ToLower(strings.TrimSpace(query.Search))

	filtered := make([]dto.AssignmentSubmissionSummary, 0, len(summaries))
	for _, summary := range summaries {
		if query.CourseID != nil && summary.CourseID != *query.CourseID {
			continue
		}
		if status != "" && summary.Priority != status {
			continue
		}
		if search != "" && !summaryMatchesSearch(summary, search) {
			continue
		}
		filtered = append(filtered, summary)
	}
	return filtered
}

func summaryMatchesSearch(summary dto.AssignmentSubmissionSummary, search string) bool {
	if strings.Contains(strings.ToLower(summary.AssignmentTitle), search) {
		return true
	}
	if strings.Contains(strings.ToLower(summary.CourseTitle), search) {
		return true
	}
	for _, view := range summary.Submissions {
		if strings.Contains(strings.ToLower(view.StudentName), search) ||
			strings.Contains(strings.ToLower(view.StudentEmail), search) {
			return true
		}
	}
	return false
}

// filterEntries keeps entries satisfying all three predicates: course match,
// status match and case-insensitive substring search.
func filterEntries(entries []dto.GradebookEntry, query dto.GradebookQuery) []dto.GradebookEntry {
	status := normalizeEntryStatus(query.Status)
	search := strings.ToLower(strings.TrimSpace(query.Search))

	filtered := make([]dto.GradebookEntry, 0, len(entries))
	for _, entry := range entries {
		if query.CourseID != nil && entry.CourseID != *query.CourseID {
			continue
		}
		if status != "" && entry.Status != status {
			continue
		}
		if search != "" && !entryMatchesSearch(entry, search) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

func entryMatchesSearch(entry dto.GradebookEntry, search string) bool {
	return strings.Contains(strings.ToLower(entry.StudentName), search) ||
		strings.Contains(strings.ToLower(entry.StudentEmail), search) ||
		strings.Contains(strings.ToLower(entry.Assignment), search) ||
		strings.Contains(strings.ToLower(entry.CourseTitle), search)
}

// normalizePriority maps the query status onto assignment priorities;
// "urgent" and "overdue" are aliases at summary level.
func normalizePriority(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case dto.PriorityUrgent, dto.EntryStatusOverdue:
		return dto.PriorityUrgent
	case dto.PrioritySubmitted, dto.EntryStatusGraded:
		return dto.PrioritySubmitted
	case dto.PriorityPending:
		return dto.PriorityPending
	default:
		return ""
	}
}

func normalizeEntryStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case dto.PriorityUrgent, dto.EntryStatusOverdue:
		return dto.EntryStatusOverdue
	case dto.EntryStatusSubmitted:
		return dto.EntryStatusSubmitted
	case dto.EntryStatusGraded:
		return dto.EntryStatusGraded
	case dto.EntryStatusPending:
		return dto.EntryStatusPending
	default:
		return ""
	}
}

// averageProgress computes each student's mean completion percentage across
// their enrollments. Students without courses average to zero.
func averageProgress(progressByStudent map[uint][]float64) map[uint]float64 {
	averages := make(map[uint]float64, len(progressByStudent))
	for studentID, values := range progressByStudent {
		if len(values) == 0 {
			averages[studentID] = 0
			continue
		}
		var total float64
		for _, value := range values {
			total += value
		}
		averages[studentID] = total / float64(len(values))
	}
	return averages
}

func sortEntries(entries []dto.GradebookEntry, query dto.GradebookQuery, progress map[uint]float64) {
	less := func(i, j int) bool { return false }

	switch query.SortBy {
	case dto.SortByName:
		less = func(i, j int) bool {
			return strings.ToLower(entries[i].StudentName) < strings.ToLower(entries[j].StudentName)
		}
	case dto.SortByProgress:
		less = func(i, j int) bool {
			return progress[entries[i].StudentID] < progress[entries[j].StudentID]
		}
	case dto.SortByActivity:
		less = func(i, j int) bool {
			return entries[i].LastActivity.Before(entries[j].LastActivity)
		}
	default:
		return
	}

	if strings.EqualFold(query.SortOrder, "desc") {
		original := less
		less = func(i, j int) bool { return original(j, i) }
	}

	sort.SliceStable(entries, less)
}

func formatScore(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', 2, 64)
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
