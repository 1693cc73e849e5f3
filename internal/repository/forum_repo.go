package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduport-api/internal/models"
)

// ForumRepository persists forum threads and replies.
type ForumRepository interface {
	ListThreads(ctx context.Context, limit, offset int) ([]models.ForumThread, error)
	GetThread(ctx context.Context, id uint) (models.ForumThread, error)
	GetThreadWithReplies(ctx context.Context, id uint) (models.ForumThread, error)
	CreateThread(ctx context.Context, thread *models.ForumThread) error
	UpdateThread(ctx context.Context, thread *models.ForumThread) error
	DeleteThread(ctx context.Context, id uint) error
	VoteThread(ctx context.Context, id uint, column string) (models.ForumThread, error)
	CreateReply(ctx context.Context, reply *models.ForumReply) error
	GetReply(ctx context.Context, id uint) (models.ForumReply, error)
	UpdateReply(ctx context.Context, reply *models.ForumReply) error
	ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]models.ForumReply, error)
	VoteReply(ctx context.Context, id uint, column string) (models.ForumReply, error)
}

type forumRepository struct {
	db *gorm.DB
}

// NewForumRepository constructs a GORM-backed repository.
func NewForumRepository(db *gorm.DB) ForumRepository {
	return &forumRepository{db: db}
}

func (r *forumRepository) ListThreads(ctx context.Context, limit, offset int) ([]models.ForumThread, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var threads []models.ForumThread
	if err := r.db.WithContext(ctx).
		Order("pinned DESC, updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&threads).Error; err != nil {
		return nil, err
	}

	return threads, nil
}

func (r *forumRepository) GetThread(ctx context.Context, id uint) (models.ForumThread, error) {
	var thread models.ForumThread
	if err := r.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return models.ForumThread{}, err
	}
	return thread, nil
}

func (r *forumRepository) GetThreadWithReplies(ctx context.Context, id uint) (models.ForumThread, error) {
	var thread models.ForumThread
	if err := r.db.WithContext(ctx).Preload("Replies", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&thread, id).Error; err != nil {
		return models.ForumThread{}, err
	}
	return thread, nil
}

func (r *forumRepository) CreateThread(ctx context.Context, thread *models.ForumThread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *forumRepository) UpdateThread(ctx context.Context, thread *models.ForumThread) error {
	return r.db.WithContext(ctx).Save(thread).Error
}

func (r *forumRepository) DeleteThread(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ForumThread{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// VoteThread atomically increments the given counter column ("upvotes" or
// "downvotes") and returns the updated thread.
func (r *forumRepository) VoteThread(ctx context.Context, id uint, column string) (models.ForumThread, error) {
	result := r.db.WithContext(ctx).Model(&models.ForumThread{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return models.ForumThread{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.ForumThread{}, gorm.ErrRecordNotFound
	}

	return r.GetThread(ctx, id)
}

func (r *forumRepository) CreateReply(ctx context.Context, reply *models.ForumReply) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(reply).Error; err != nil {
			return err
		}

		return tx.Model(&models.ForumThread{}).
			Where("id = ?", reply.ThreadID).
			UpdateColumn("updated_at", reply.CreatedAt).
			Error
	})
}

func (r *forumRepository) GetReply(ctx context.Context, id uint) (models.ForumReply, error) {
	var reply models.ForumReply
	if err := r.db.WithContext(ctx).First(&reply, id).Error; err != nil {
		return models.ForumReply{}, err
	}
	return reply, nil
}

func (r *forumRepository) UpdateReply(ctx context.Context, reply *models.ForumReply) error {
	return r.db.WithContext(ctx).Save(reply).Error
}

func (r *forumRepository) ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]models.ForumReply, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var replies []models.ForumReply
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&replies).Error; err != nil {
		return nil, err
	}

	return replies, nil
}

// VoteReply atomically increments the given counter column and returns the
// updated reply.
func (r *forumRepository) VoteReply(ctx context.Context, id uint, column string) (models.ForumReply, error) {
	result := r.db.WithContext(ctx).Model(&models.ForumReply{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return models.ForumReply{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.ForumReply{}, gorm.ErrRecordNotFound
	}

	return r.GetReply(ctx, id)
}
