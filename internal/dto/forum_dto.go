package dto

import (
	"time"

	"github.com/noah-isme/eduport-api/internal/models"
)

// ForumThreadCreateRequest describes the payload for opening a thread.
type ForumThreadCreateRequest struct {
	Title    string   `json:"title" validate:"required,min=3,max=255"`
	Body     string   `json:"body" validate:"omitempty,max=20000"`
	CourseID *uint    `json:"course_id" validate:"omitempty,gt=0"`
	Tags     []string `json:"tags" validate:"omitempty,max=10,dive,min=1,max=32"`
}

// ForumThreadUpdateRequest carries optional thread mutations.
type ForumThreadUpdateRequest struct {
	Title *string   `json:"title" validate:"omitempty,min=3,max=255"`
	Body  *string   `json:"body" validate:"omitempty,max=20000"`
	Tags  *[]string `json:"tags" validate:"omitempty,max=10,dive,min=1,max=32"`
}

// ForumReplyCreateRequest describes the payload for replying to a thread.
type ForumReplyCreateRequest struct {
	ThreadID uint   `json:"thread_id" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,min=1,max=20000"`
}

// ForumThreadResponse serializes a thread with derived vote score.
type ForumThreadResponse struct {
	ID        uint                   `json:"id"`
	CourseID  *uint                  `json:"course_id"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	AuthorID  string                 `json:"author_id"`
	IsPinned  bool                   `json:"is_pinned"`
	IsLocked  bool                   `json:"is_locked"`
	Upvotes   int                    `json:"upvotes"`
	Downvotes int                    `json:"downvotes"`
	Score     int                    `json:"score"`
	Tags      []string               `json:"tags"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Replies   []ForumReplyResponse   `json:"replies,omitempty"`
}

// ForumReplyResponse serializes a reply with derived vote score.
type ForumReplyResponse struct {
	ID         uint      `json:"id"`
	ThreadID   uint      `json:"thread_id"`
	AuthorID   string    `json:"author_id"`
	Content    string    `json:"content"`
	IsAccepted bool      `json:"is_accepted"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewForumThreadResponse converts a thread model into a DTO.
func NewForumThreadResponse(model models.ForumThread) ForumThreadResponse {
	response := ForumThreadResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		Title:     model.Title,
		Body:      model.Body,
		AuthorID:  model.AuthorID,
		IsPinned:  model.Pinned,
		IsLocked:  model.Locked,
		Upvotes:   model.Upvotes,
		Downvotes: model.Downvotes,
		Score:     model.NetScore(),
		Tags:      model.Tags,
		Metadata:  model.Metadata,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if response.Tags == nil {
		response.Tags = []string{}
	}

	if len(model.Replies) > 0 {
		response.Replies = NewForumReplyResponseSlice(model.Replies)
	}

	return response
}

// NewForumThreadResponseSlice converts thread models into DTOs.
func NewForumThreadResponseSlice(threads []models.ForumThread) []ForumThreadResponse {
	responses := make([]ForumThreadResponse, 0, len(threads))
	for _, thread := range threads {
		responses = append(responses, NewForumThreadResponse(thread))
	}
	return responses
}

// NewForumReplyResponse converts a reply model into a DTO.
func NewForumReplyResponse(model models.ForumReply) ForumReplyResponse {
	return ForumReplyResponse{
		ID:         model.ID,
		ThreadID:   model.ThreadID,
		AuthorID:   model.AuthorID,
		Content:    model.Content,
		IsAccepted: model.Accepted,
		Upvotes:    model.Upvotes,
		Downvotes:  model.Downvotes,
		Score:      model.NetScore(),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// NewForumReplyResponseSlice converts reply models into DTOs.
func NewForumReplyResponseSlice(replies []models.ForumReply) []ForumReplyResponse {
	responses := make([]ForumReplyResponse, 0, len(replies))
	for _, reply := range replies {
		responses = append(responses, NewForumReplyResponse(reply))
	}
	return responses
}
