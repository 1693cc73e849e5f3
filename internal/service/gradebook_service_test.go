package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
)

var gradebookNow = time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)

type gradebookFixture struct {
	courses     []models.Course
	enrollments map[uint][]models.Enrollment
	assignments map[uint][]models.Assignment
	submissions map[uint][]models.Submission
	failCourses map[uint]error
}

type stubCourseRepo struct{ fx *gradebookFixture }

func (s *stubCourseRepo) List(ctx context.Context) ([]models.Course, error) {
	return s.fx.courses, nil
}

func (s *stubCourseRepo) GetByID(ctx context.Context, id uint) (models.Course, error) {
	for _, course := range s.fx.courses {
		if course.ID == id {
			return course, nil
		}
	}
	return models.Course{}, gorm.ErrRecordNotFound
}

func (s *stubCourseRepo) Create(ctx context.Context, course *models.Course) error { return nil }

type stubEnrollmentRepo struct{ fx *gradebookFixture }

func (s *stubEnrollmentRepo) ListByCourse(ctx context.Context, courseID uint) ([]models.Enrollment, error) {
	if err, ok := s.fx.failCourses[courseID]; ok {
		return nil, err
	}
	return s.fx.enrollments[courseID], nil
}

func (s *stubEnrollmentRepo) ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error) {
	return nil, nil
}

func (s *stubEnrollmentRepo) ListWithCourses(ctx context.Context) ([]models.Enrollment, error) {
	return nil, nil
}

func (s *stubEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return nil
}

func (s *stubEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	return nil
}

type stubAssignmentRepo struct{ fx *gradebookFixture }

func (s *stubAssignmentRepo) List(ctx context.Context, filter repository.AssignmentFilter) ([]models.Assignment, error) {
	if filter.CourseID != nil {
		return s.fx.assignments[*filter.CourseID], nil
	}
	var all []models.Assignment
	for _, assignments := range s.fx.assignments {
		all = append(all, assignments...)
	}
	return all, nil
}

func (s *stubAssignmentRepo) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	return models.Assignment{}, gorm.ErrRecordNotFound
}

func (s *stubAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	return nil
}

func (s *stubAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	return nil
}

type stubSubmissionRepo struct{ fx *gradebookFixture }

func (s *stubSubmissionRepo) List(ctx context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	return nil, nil
}

func (s *stubSubmissionRepo) ListByCourse(ctx context.Context, courseID uint) ([]models.Submission, error) {
	return s.fx.submissions[courseID], nil
}

func (s *stubSubmissionRepo) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (s *stubSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	return nil
}

func (s *stubSubmissionRepo) Update(ctx context.Context, submission *models.Submission) error {
	return nil
}

// newGradebookFixture builds two courses: Algebra has one graded and one
// missing-past-due submission, Physics has a single ungraded submission and a
// course with zero configured lessons.
func newGradebookFixture() *gradebookFixture {
	alice := models.Student{ID: 1, Name: "Alice", Email: "alice@example.com"}
	bob := models.Student{ID: 2, Name: "Bob", Email: "bob@example.com"}

	pastDue := gradebookNow.AddDate(0, 0, -3)
	futureDue := gradebookNow.AddDate(0, 0, 4)
	score := 80.0

	return &gradebookFixture{
		courses: []models.Course{
			{ID: 1, Title: "Algebra", TotalLessons: 10},
			{ID: 2, Title: "Physics", TotalLessons: 0},
		},
		enrollments: map[uint][]models.Enrollment{
			1: {
				{CourseID: 1, StudentID: 1, Student: alice, CompletedLessons: 5, Course: models.Course{ID: 1, TotalLessons: 10}, LastActivity: gradebookNow.AddDate(0, 0, -1)},
				{CourseID: 1, StudentID: 2, Student: bob, CompletedLessons: 2, Course: models.Course{ID: 1, TotalLessons: 10}, LastActivity: gradebookNow.AddDate(0, 0, -5)},
			},
			2: {
				{CourseID: 2, StudentID: 1, Student: alice, CompletedLessons: 3, Course: models.Course{ID: 2, TotalLessons: 0}, LastActivity: gradebookNow.AddDate(0, 0, -2)},
			},
		},
		assignments: map[uint][]models.Assignment{
			1: {{ID: 10, CourseID: 1, Title: "Worksheet", DueDate: pastDue, MaxScore: 100}},
			2: {{ID: 20, CourseID: 2, Title: "Lab Report", DueDate: futureDue, MaxScore: 50}},
		},
		submissions: map[uint][]models.Submission{
			1: {{ID: 100, AssignmentID: 10, StudentID: 1, Status: models.SubmissionStatusGraded, Grade: &score, CreatedAt: pastDue.AddDate(0, 0, -1), UpdatedAt: gradebookNow.AddDate(0, 0, -2)}},
			2: {{ID: 200, AssignmentID: 20, StudentID: 1, Status: models.SubmissionStatusSubmitted, CreatedAt: gradebookNow.AddDate(0, 0, -1), UpdatedAt: gradebookNow.AddDate(0, 0, -1)}},
		},
		failCourses: map[uint]error{},
	}
}

func newGradebookService(fx *gradebookFixture, opts GradebookOptions) *gradebookService {
	svc := NewGradebookService(
		&stubCourseRepo{fx: fx},
		&stubEnrollmentRepo{fx: fx},
		&stubAssignmentRepo{fx: fx},
		&stubSubmissionRepo{fx: fx},
		validator.New(validator.WithRequiredStructEnabled()),
		opts,
		testLogger(),
	)
	concrete := svc.(*gradebookService)
	concrete.now = func() time.Time { return gradebookNow }
	return concrete
}

func TestGradebookSummaryPriorityPrecedence(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})

	result, err := svc.Summaries(context.Background(), dto.GradebookQuery{})
	require.NoError(t, err)
	require.False(t, result.Partial)
	require.Len(t, result.Summaries, 2)

	byAssignment := make(map[uint]dto.AssignmentSubmissionSummary)
	for _, summary := range result.Summaries {
		byAssignment[summary.AssignmentID] = summary
	}

	// Bob never submitted the past-due worksheet: one overdue makes the whole
	// assignment urgent even though Alice's work is already graded.
	worksheet := byAssignment[10]
	require.Equal(t, 1, worksheet.OverdueCount)
	require.Equal(t, 1, worksheet.GradedCount)
	require.Equal(t, 1, worksheet.SubmittedCount)
	require.Equal(t, dto.PriorityUrgent, worksheet.Priority)

	lab := byAssignment[20]
	require.Equal(t, 0, lab.OverdueCount)
	require.Equal(t, 1, lab.SubmittedCount)
	require.Equal(t, dto.PrioritySubmitted, lab.Priority)
}

func TestGradebookEntriesScoreAndPercentageTogether(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})

	result, err := svc.Entries(context.Background(), dto.GradebookQuery{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	for _, entry := range result.Entries {
		switch {
		case entry.AssignmentID == 10 && entry.StudentID == 1:
			require.Equal(t, dto.EntryStatusGraded, entry.Status)
			require.NotNil(t, entry.Score)
			require.NotNil(t, entry.Percentage)
			require.InDelta(t, 80.0, *entry.Score, 0.001)
			require.InDelta(t, 80.0, *entry.Percentage, 0.001)
		case entry.AssignmentID == 10 && entry.StudentID == 2:
			require.Equal(t, dto.EntryStatusOverdue, entry.Status)
			require.Nil(t, entry.Score)
			require.Nil(t, entry.Percentage)
		case entry.AssignmentID == 20 && entry.StudentID == 1:
			require.Equal(t, dto.EntryStatusSubmitted, entry.Status)
			require.Nil(t, entry.Score)
			require.Nil(t, entry.Percentage)
		default:
			t.Fatalf("unexpected entry: assignment %d student %d", entry.AssignmentID, entry.StudentID)
		}
	}
}

func TestGradebookFiltersAreConjunctive(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})
	courseID := uint(1)

	result, err := svc.Entries(context.Background(), dto.GradebookQuery{
		CourseID: &courseID,
		Status:   dto.EntryStatusOverdue,
		Search:   "bob",
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, uint(2), result.Entries[0].StudentID)

	// Same course and status but a non-matching search term yields nothing:
	// all three predicates must hold.
	empty, err := svc.Entries(context.Background(), dto.GradebookQuery{
		CourseID: &courseID,
		Status:   dto.EntryStatusOverdue,
		Search:   "alice",
	})
	require.NoError(t, err)
	require.Empty(t, empty.Entries)
}

func TestGradebookUrgentFilterSelectsOverdueCourseOnly(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})

	result, err := svc.Summaries(context.Background(), dto.GradebookQuery{Status: dto.PriorityUrgent})
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)
	require.Equal(t, uint(1), result.Summaries[0].CourseID)
}

func TestGradebookSortByProgressHandlesZeroLessonCourses(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})

	result, err := svc.Entries(context.Background(), dto.GradebookQuery{
		SortBy:    dto.SortByProgress,
		SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)

	// Alice averages (50% + 0%) / 2 = 25%, Bob 20%. The zero-lesson Physics
	// enrollment contributes zero instead of dividing by zero.
	require.Equal(t, uint(1), result.Entries[0].StudentID)
}

func TestGradebookSortByActivityUsesTimestamps(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})

	result, err := svc.Entries(context.Background(), dto.GradebookQuery{
		SortBy:    dto.SortByActivity,
		SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 3)
	for i := 1; i < len(result.Entries); i++ {
		require.False(t, result.Entries[i-1].LastActivity.Before(result.Entries[i].LastActivity))
	}
}

func TestGradebookBestEffortReportsFailedCourses(t *testing.T) {
	fx := newGradebookFixture()
	fx.failCourses[2] = errors.New("connection reset")
	svc := newGradebookService(fx, GradebookOptions{Concurrency: 2})

	result, err := svc.Summaries(context.Background(), dto.GradebookQuery{})
	require.NoError(t, err)
	require.True(t, result.Partial)
	require.Len(t, result.FailedCourses, 1)
	require.Equal(t, uint(2), result.FailedCourses[0].CourseID)
	require.Equal(t, "Physics", result.FailedCourses[0].CourseTitle)
	require.Contains(t, result.FailedCourses[0].Error, "connection reset")

	// The healthy course still comes through.
	require.Len(t, result.Summaries, 1)
	require.Equal(t, uint(1), result.Summaries[0].CourseID)
}

func TestGradebookStrictLoadFailsWhole(t *testing.T) {
	fx := newGradebookFixture()
	fx.failCourses[2] = errors.New("connection reset")
	svc := newGradebookService(fx, GradebookOptions{Concurrency: 2, StrictLoad: true})

	_, err := svc.Summaries(context.Background(), dto.GradebookQuery{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "course 2")
}

func TestGradebookExportCSVWritesFilteredRows(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2, IncludeBOM: true})

	var buf bytes.Buffer
	courseID := uint(1)
	filename, err := svc.ExportCSV(context.Background(), dto.GradebookQuery{CourseID: &courseID}, &buf)
	require.NoError(t, err)
	require.Equal(t, "gradebook_2024-04-15.csv", filename)

	payload := buf.String()
	require.True(t, strings.HasPrefix(payload, "\ufeff"))

	reader := csv.NewReader(strings.NewReader(strings.TrimPrefix(payload, "\ufeff")))
	rows, err := reader.ReadAll()
	require.NoError(t, err)

	// Header plus the two Algebra rows; the Physics entry is filtered out.
	require.Len(t, rows, 3)
	require.Equal(t, "Student", rows[0][0])
	for _, row := range rows[1:] {
		require.Equal(t, "Algebra", row[2])
	}
}

func TestGradebookRejectsInvalidQuery(t *testing.T) {
	svc := newGradebookService(newGradebookFixture(), GradebookOptions{Concurrency: 2})

	_, err := svc.Entries(context.Background(), dto.GradebookQuery{Status: "bogus"})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}
