package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/models"
)

// AnalyticsRepository exposes the aggregate queries behind the dashboard.
type AnalyticsRepository interface {
	CountActiveStudents(ctx context.Context) (int64, error)
	ListSubmissionsWithAssignments(ctx context.Context) ([]models.Submission, error)
	ListEnrollmentsWithCourses(ctx context.Context) ([]models.Enrollment, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) CountActiveStudents(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *analyticsRepository) ListSubmissionsWithAssignments(ctx context.Context) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Assignment").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *analyticsRepository) ListEnrollmentsWithCourses(ctx context.Context) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}
