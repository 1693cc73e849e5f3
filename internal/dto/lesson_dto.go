package dto

import (
	"time"

	"github.com/noah-isme/eduport-api/internal/models"
)

// LessonSessionCreateRequest schedules a live lesson for a course.
type LessonSessionCreateRequest struct {
	CourseID uint      `json:"course_id" validate:"required,gt=0"`
	Title    string    `json:"title" validate:"required,min=3,max=255"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// LessonSessionResponse serializes a scheduled session.
type LessonSessionResponse struct {
	ID        uint      `json:"id"`
	CourseID  uint      `json:"course_id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceResponse serializes an attendance record.
type AttendanceResponse struct {
	SessionID uint       `json:"session_id"`
	StudentID uint       `json:"student_id"`
	Name      string     `json:"name"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at"`
	Present   bool       `json:"present"`
}

// BreakoutAssignmentRequest splits checked-in students across rooms.
type BreakoutAssignmentRequest struct {
	Rooms int `json:"rooms" validate:"required,gte=2,lte=50"`
}

// BreakoutRoom is one group produced by round-robin assignment.
type BreakoutRoom struct {
	Room     int    `json:"room"`
	Students []uint `json:"students"`
}

// BreakoutAssignmentResponse lists the produced rooms.
type BreakoutAssignmentResponse struct {
	SessionID uint           `json:"session_id"`
	Rooms     []BreakoutRoom `json:"rooms"`
}

// NewLessonSessionResponse converts a session model into a DTO.
func NewLessonSessionResponse(model models.LessonSession) LessonSessionResponse {
	return LessonSessionResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		Title:     model.Title,
		StartsAt:  model.StartsAt,
		EndsAt:    model.EndsAt,
		CreatedAt: model.CreatedAt,
	}
}

// NewAttendanceResponse converts an attendance record into a DTO.
func NewAttendanceResponse(model models.AttendanceRecord) AttendanceResponse {
	return AttendanceResponse{
		SessionID: model.SessionID,
		StudentID: model.StudentID,
		Name:      model.Student.DisplayName(),
		JoinedAt:  model.JoinedAt,
		LeftAt:    model.LeftAt,
		Present:   model.Present(),
	}
}
