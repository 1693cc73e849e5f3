package models

import "time"

// LessonSession represents a scheduled live lesson for a course.
type LessonSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	StartsAt  time.Time `gorm:"index;not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null" json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Course    Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
}

// AttendanceRecord tracks a student's presence in a live lesson session.
type AttendanceRecord struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	SessionID uint       `gorm:"index:idx_attendance_session_student,unique;not null" json:"session_id"`
	StudentID uint       `gorm:"index:idx_attendance_session_student,unique;not null" json:"student_id"`
	JoinedAt  time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt    *time.Time `json:"left_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Student   Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// Present reports whether the student is currently checked in.
func (a AttendanceRecord) Present() bool {
	return a.LeftAt == nil
}
