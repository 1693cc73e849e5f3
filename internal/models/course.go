package models

import "time"

// Course represents a sellable course with a fixed lesson count.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	Price        float64   `gorm:"not null;default:0" json:"price"`
	TotalLessons int       `gorm:"not null;default:0" json:"total_lessons"`
	TeacherID    uint      `gorm:"index" json:"teacher_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Enrollment links a student to a course and tracks lesson progress.
type Enrollment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CourseID         uint      `gorm:"index:idx_enrollment_course_student,unique;not null" json:"course_id"`
	StudentID        uint      `gorm:"index:idx_enrollment_course_student,unique;not null" json:"student_id"`
	CompletedLessons int       `gorm:"not null;default:0" json:"completed_lessons"`
	LastActivity     time.Time `json:"last_activity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Course           Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	Student          Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// ProgressPercent reports lesson completion as a percentage. Courses without
// lessons contribute zero rather than dividing by zero.
func (e Enrollment) ProgressPercent() float64 {
	if e.Course.TotalLessons <= 0 {
		return 0
	}
	return (float64(e.CompletedLessons) / float64(e.Course.TotalLessons)) * 100
}
