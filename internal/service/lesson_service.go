package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
)

// ErrAlreadyCheckedOut indicates the student already left the session.
var ErrAlreadyCheckedOut = errors.New("student already checked out")

// ErrNoAttendees indicates no students are checked in to split into rooms.
var ErrNoAttendees = errors.New("no checked-in students for breakout assignment")

// LessonService manages live lesson sessions, attendance and breakout rooms.
type LessonService interface {
	CreateSession(ctx context.Context, payload dto.LessonSessionCreateRequest) (dto.LessonSessionResponse, error)
	ListSessions(ctx context.Context, courseID *uint) ([]dto.LessonSessionResponse, error)
	CheckIn(ctx context.Context, sessionID, studentID uint) (dto.AttendanceResponse, error)
	CheckOut(ctx context.Context, sessionID, studentID uint) (dto.AttendanceResponse, error)
	ListAttendance(ctx context.Context, sessionID uint) ([]dto.AttendanceResponse, error)
	AssignBreakouts(ctx context.Context, sessionID uint, payload dto.BreakoutAssignmentRequest) (dto.BreakoutAssignmentResponse, error)
}

type lessonService struct {
	repo      repository.LessonRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewLessonService constructs a lesson service.
func NewLessonService(repo repository.LessonRepository, validate *validator.Validate, logger zerolog.Logger) LessonService {
	return &lessonService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "lesson_service").Logger(),
		now:       time.Now,
	}
}

func (s *lessonService) CreateSession(ctx context.Context, payload dto.LessonSessionCreateRequest) (dto.LessonSessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.LessonSessionResponse{}, err
	}

	session := models.LessonSession{
		CourseID: payload.CourseID,
		Title:    payload.Title,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
	}

	if err := s.repo.CreateSession(ctx, &session); err != nil {
		return dto.LessonSessionResponse{}, err
	}

	s.logger.Info().Uint("session_id", session.ID).Uint("course_id", session.CourseID).Msg("lesson session scheduled")

	return dto.NewLessonSessionResponse(session), nil
}

func (s *lessonService) ListSessions(ctx context.Context, courseID *uint) ([]dto.LessonSessionResponse, error) {
	sessions, err := s.repo.ListSessions(ctx, courseID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.LessonSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, dto.NewLessonSessionResponse(session))
	}
	return responses, nil
}

// CheckIn is idempotent: a second check-in returns the existing record.
func (s *lessonService) CheckIn(ctx context.Context, sessionID, studentID uint) (dto.AttendanceResponse, error) {
	if _, err := s.repo.GetSession(ctx, sessionID); err != nil {
		return dto.AttendanceResponse{}, err
	}

	existing, err := s.repo.GetAttendance(ctx, sessionID, studentID)
	if err == nil {
		return dto.NewAttendanceResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AttendanceResponse{}, err
	}

	record := models.AttendanceRecord{
		SessionID: sessionID,
		StudentID: studentID,
		JoinedAt:  s.now(),
	}
	if err := s.repo.CreateAttendance(ctx, &record); err != nil {
		return dto.AttendanceResponse{}, err
	}

	return dto.NewAttendanceResponse(record), nil
}

func (s *lessonService) CheckOut(ctx context.Context, sessionID, studentID uint) (dto.AttendanceResponse, error) {
	record, err := s.repo.GetAttendance(ctx, sessionID, studentID)
	if err != nil {
		return dto.AttendanceResponse{}, err
	}

	if record.LeftAt != nil {
		return dto.AttendanceResponse{}, ErrAlreadyCheckedOut
	}

	leftAt := s.now()
	record.LeftAt = &leftAt
	if err := s.repo.UpdateAttendance(ctx, &record); err != nil {
		return dto.AttendanceResponse{}, err
	}

	return dto.NewAttendanceResponse(record), nil
}

func (s *lessonService) ListAttendance(ctx context.Context, sessionID uint) ([]dto.AttendanceResponse, error) {
	records, err := s.repo.ListAttendance(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AttendanceResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewAttendanceResponse(record))
	}
	return responses, nil
}

// AssignBreakouts shuffles the currently present students and deals them
// round-robin across rooms, so room sizes differ by at most one.
func (s *lessonService) AssignBreakouts(ctx context.Context, sessionID uint, payload dto.BreakoutAssignmentRequest) (dto.BreakoutAssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BreakoutAssignmentResponse{}, err
	}

	records, err := s.repo.ListAttendance(ctx, sessionID)
	if err != nil {
		return dto.BreakoutAssignmentResponse{}, err
	}

	present := make([]uint, 0, len(records))
	for _, record := range records {
		if record.Present() {
			present = append(present, record.StudentID)
		}
	}

	if len(present) == 0 {
		return dto.BreakoutAssignmentResponse{}, ErrNoAttendees
	}

	// The package-level shuffle serializes access to its source, so
	// concurrent assignment requests do not race on PRNG state.
	rand.Shuffle(len(present), func(i, j int) {
		present[i], present[j] = present[j], present[i]
	})

	rooms := make([]dto.BreakoutRoom, payload.Rooms)
	for i := range rooms {
		rooms[i] = dto.BreakoutRoom{Room: i + 1, Students: []uint{}}
	}
	for i, studentID := range present {
		room := i % payload.Rooms
		rooms[room].Students = append(rooms[room].Students, studentID)
	}

	return dto.BreakoutAssignmentResponse{SessionID: sessionID, Rooms: rooms}, nil
}
