package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/models"
)

// LessonRepository persists live lesson sessions and attendance records.
type LessonRepository interface {
	ListSessions(ctx context.Context, courseID *uint) ([]models.LessonSession, error)
	GetSession(ctx context.Context, id uint) (models.LessonSession, error)
	CreateSession(ctx context.Context, session *models.LessonSession) error
	GetAttendance(ctx context.Context, sessionID, studentID uint) (models.AttendanceRecord, error)
	CreateAttendance(ctx context.Context, record *models.AttendanceRecord) error
	UpdateAttendance(ctx context.Context, record *models.AttendanceRecord) error
	ListAttendance(ctx context.Context, sessionID uint) ([]models.AttendanceRecord, error)
}

type lessonRepository struct {
	db *gorm.DB
}

// NewLessonRepository instantiates the repository.
func NewLessonRepository(db *gorm.DB) LessonRepository {
	return &lessonRepository{db: db}
}

func (r *lessonRepository) ListSessions(ctx context.Context, courseID *uint) ([]models.LessonSession, error) {
	query := r.db.WithContext(ctx).Model(&models.LessonSession{})
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var sessions []models.LessonSession
	if err := query.Order("starts_at ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *lessonRepository) GetSession(ctx context.Context, id uint) (models.LessonSession, error) {
	var session models.LessonSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return models.LessonSession{}, err
	}
	return session, nil
}

func (r *lessonRepository) CreateSession(ctx context.Context, session *models.LessonSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *lessonRepository) GetAttendance(ctx context.Context, sessionID, studentID uint) (models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("student_id = ?", studentID).
		First(&record).Error; err != nil {
		return models.AttendanceRecord{}, err
	}
	return record, nil
}

func (r *lessonRepository) CreateAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	if record.JoinedAt.IsZero() {
		record.JoinedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *lessonRepository) UpdateAttendance(ctx context.Context, record *models.AttendanceRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *lessonRepository) ListAttendance(ctx context.Context, sessionID uint) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
