package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/models"
)

type stubLessonRepo struct {
	sessions   map[uint]models.LessonSession
	attendance []models.AttendanceRecord
	nextID     uint
}

func newStubLessonRepo(sessions ...models.LessonSession) *stubLessonRepo {
	repo := &stubLessonRepo{sessions: make(map[uint]models.LessonSession), nextID: 1}
	for _, session := range sessions {
		repo.sessions[session.ID] = session
		if session.ID >= repo.nextID {
			repo.nextID = session.ID + 1
		}
	}
	return repo
}

func (s *stubLessonRepo) ListSessions(ctx context.Context, courseID *uint) ([]models.LessonSession, error) {
	sessions := make([]models.LessonSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if courseID != nil && session.CourseID != *courseID {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *stubLessonRepo) GetSession(ctx context.Context, id uint) (models.LessonSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return models.LessonSession{}, gorm.ErrRecordNotFound
	}
	return session, nil
}

func (s *stubLessonRepo) CreateSession(ctx context.Context, session *models.LessonSession) error {
	session.ID = s.nextID
	s.nextID++
	s.sessions[session.ID] = *session
	return nil
}

func (s *stubLessonRepo) GetAttendance(ctx context.Context, sessionID, studentID uint) (models.AttendanceRecord, error) {
	for _, record := range s.attendance {
		if record.SessionID == sessionID && record.StudentID == studentID {
			return record, nil
		}
	}
	return models.AttendanceRecord{}, gorm.ErrRecordNotFound
}

func (s *stubLessonRepo) CreateAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	record.ID = s.nextID
	s.nextID++
	s.attendance = append(s.attendance, *record)
	return nil
}

func (s *stubLessonRepo) UpdateAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	for i := range s.attendance {
		if s.attendance[i].ID == record.ID {
			s.attendance[i] = *record
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *stubLessonRepo) ListAttendance(ctx context.Context, sessionID uint) ([]models.AttendanceRecord, error) {
	records := make([]models.AttendanceRecord, 0)
	for _, record := range s.attendance {
		if record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	return records, nil
}

func newLessonService(repo *stubLessonRepo) LessonService {
	return NewLessonService(repo, validator.New(validator.WithRequiredStructEnabled()), testLogger())
}

func TestLessonCheckInIsIdempotent(t *testing.T) {
	repo := newStubLessonRepo(models.LessonSession{ID: 1, CourseID: 2})
	svc := newLessonService(repo)
	ctx := context.Background()

	first, err := svc.CheckIn(ctx, 1, 7)
	require.NoError(t, err)
	require.True(t, first.Present)

	second, err := svc.CheckIn(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, first.JoinedAt, second.JoinedAt)

	records, err := svc.ListAttendance(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestLessonCheckOutTwiceFails(t *testing.T) {
	repo := newStubLessonRepo(models.LessonSession{ID: 1, CourseID: 2})
	svc := newLessonService(repo)
	ctx := context.Background()

	_, err := svc.CheckIn(ctx, 1, 7)
	require.NoError(t, err)

	left, err := svc.CheckOut(ctx, 1, 7)
	require.NoError(t, err)
	require.False(t, left.Present)
	require.NotNil(t, left.LeftAt)

	_, err = svc.CheckOut(ctx, 1, 7)
	require.ErrorIs(t, err, ErrAlreadyCheckedOut)
}

func TestLessonBreakoutRoomsAreBalanced(t *testing.T) {
	repo := newStubLessonRepo(models.LessonSession{ID: 1, CourseID: 2})
	svc := newLessonService(repo)
	ctx := context.Background()

	for student := uint(1); student <= 11; student++ {
		_, err := svc.CheckIn(ctx, 1, student)
		require.NoError(t, err)
	}
	// A student who already left is not assigned to a room.
	_, err := svc.CheckOut(ctx, 1, 11)
	require.NoError(t, err)

	assignment, err := svc.AssignBreakouts(ctx, 1, dto.BreakoutAssignmentRequest{Rooms: 3})
	require.NoError(t, err)
	require.Len(t, assignment.Rooms, 3)

	seen := make(map[uint]bool)
	minSize, maxSize := len(assignment.Rooms[0].Students), len(assignment.Rooms[0].Students)
	for _, room := range assignment.Rooms {
		size := len(room.Students)
		if size < minSize {
			minSize = size
		}
		if size > maxSize {
			maxSize = size
		}
		for _, student := range room.Students {
			require.False(t, seen[student], "student assigned twice")
			seen[student] = true
		}
	}

	require.Len(t, seen, 10)
	require.False(t, seen[11])
	require.LessOrEqual(t, maxSize-minSize, 1)
}

func TestLessonBreakoutAssignmentIsConcurrencySafe(t *testing.T) {
	repo := newStubLessonRepo(models.LessonSession{ID: 1, CourseID: 2})
	svc := newLessonService(repo)
	ctx := context.Background()

	for student := uint(1); student <= 12; student++ {
		_, err := svc.CheckIn(ctx, 1, student)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assignment, err := svc.AssignBreakouts(ctx, 1, dto.BreakoutAssignmentRequest{Rooms: 4})
			if err != nil {
				errs <- err
				return
			}
			total := 0
			for _, room := range assignment.Rooms {
				total += len(room.Students)
			}
			if total != 12 {
				errs <- fmt.Errorf("expected 12 assigned students, got %d", total)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestLessonBreakoutWithoutAttendeesFails(t *testing.T) {
	repo := newStubLessonRepo(models.LessonSession{ID: 1, CourseID: 2})
	svc := newLessonService(repo)

	_, err := svc.AssignBreakouts(context.Background(), 1, dto.BreakoutAssignmentRequest{Rooms: 2})
	require.ErrorIs(t, err, ErrNoAttendees)
}

func TestLessonCreateSessionValidates(t *testing.T) {
	repo := newStubLessonRepo()
	svc := newLessonService(repo)

	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	_, err := svc.CreateSession(context.Background(), dto.LessonSessionCreateRequest{
		CourseID: 2,
		Title:    "Live Q&A",
		StartsAt: start,
		EndsAt:   start.Add(-time.Hour),
	})
	require.Error(t, err)

	session, err := svc.CreateSession(context.Background(), dto.LessonSessionCreateRequest{
		CourseID: 2,
		Title:    "Live Q&A",
		StartsAt: start,
		EndsAt:   start.Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotZero(t, session.ID)
}
