package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/eduport-api/internal/dto"
	"github.com/noah-isme/eduport-api/internal/models"
	"github.com/noah-isme/eduport-api/internal/repository"
)

// ErrForumForbidden indicates the user attempted an operation they are not allowed to perform.
var ErrForumForbidden = errors.New("insufficient permissions for forum operation")

// ErrThreadLocked indicates a write was attempted against a locked thread.
var ErrThreadLocked = errors.New("thread is locked")

// ErrInvalidVote indicates an unsupported vote direction.
var ErrInvalidVote = errors.New("invalid vote direction")

// NotificationPublisher exposes the subset of notification service needed by the forum.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// ForumService exposes forum thread and reply use-cases.
type ForumService interface {
	ListThreads(ctx context.Context, limit, offset int) ([]dto.ForumThreadResponse, error)
	GetThread(ctx context.Context, id uint, includeReplies bool) (dto.ForumThreadResponse, error)
	CreateThread(ctx context.Context, authorID, role string, payload dto.ForumThreadCreateRequest) (dto.ForumThreadResponse, error)
	UpdateThread(ctx context.Context, id uint, authorID, role string, payload dto.ForumThreadUpdateRequest) (dto.ForumThreadResponse, error)
	DeleteThread(ctx context.Context, id uint, authorID, role string) error
	SetPinned(ctx context.Context, id uint, role string, pinned bool) (dto.ForumThreadResponse, error)
	SetLocked(ctx context.Context, id uint, role string, locked bool) (dto.ForumThreadResponse, error)
	VoteThread(ctx context.Context, id uint, direction string) (dto.ForumThreadResponse, error)
	ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]dto.ForumReplyResponse, error)
	CreateReply(ctx context.Context, authorID, role string, payload dto.ForumReplyCreateRequest) (dto.ForumReplyResponse, error)
	VoteReply(ctx context.Context, id uint, direction string) (dto.ForumReplyResponse, error)
	SetReplyAccepted(ctx context.Context, id uint, actorID, role string, accepted bool) (dto.ForumReplyResponse, error)
}

type forumService struct {
	repo           repository.ForumRepository
	notifications  NotificationPublisher
	validator      *validator.Validate
	logger         zerolog.Logger
	tracer         trace.Tracer
	sanitizer      *bluemonday.Policy
	mentionPattern *regexp.Regexp
	now            func() time.Time
}

// NewForumService constructs a forum service.
func NewForumService(repo repository.ForumRepository, notifications NotificationPublisher, validate *validator.Validate, logger zerolog.Logger) ForumService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &forumService{
		repo:           repo,
		notifications:  notifications,
		validator:      validate,
		logger:         logger.With().Str("component", "forum_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/eduport-api/internal/service/forum"),
		sanitizer:      policy,
		mentionPattern: regexp.MustCompile(`@([a-zA-Z0-9_\-:]+)`),
		now:            time.Now,
	}
}

func (s *forumService) ListThreads(ctx context.Context, limit, offset int) ([]dto.ForumThreadResponse, error) {
	threads, err := s.repo.ListThreads(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewForumThreadResponseSlice(threads), nil
}

func (s *forumService) GetThread(ctx context.Context, id uint, includeReplies bool) (dto.ForumThreadResponse, error) {
	var (
		thread models.ForumThread
		err    error
	)

	if includeReplies {
		thread, err = s.repo.GetThreadWithReplies(ctx, id)
	} else {
		thread, err = s.repo.GetThread(ctx, id)
	}
	if err != nil {
		return dto.ForumThreadResponse{}, err
	}

	return dto.NewForumThreadResponse(thread), nil
}

func (s *forumService) CreateThread(ctx context.Context, authorID, role string, payload dto.ForumThreadCreateRequest) (dto.ForumThreadResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ForumThreadResponse{}, err
	}

	sanitizedTitle := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	if sanitizedTitle == "" {
		return dto.ForumThreadResponse{}, errors.New("thread title empty after sanitization")
	}

	attrs := []attribute.KeyValue{
		attribute.String("forum.author_id", authorID),
		attribute.String("forum.role", role),
	}

	spanCtx, span := s.tracer.Start(ctx, "forum.create_thread", trace.WithAttributes(attrs...))
	defer span.End()

	thread := models.ForumThread{
		Title:    sanitizedTitle,
		Body:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Body)),
		AuthorID: authorID,
		CourseID: payload.CourseID,
		Tags:     payload.Tags,
		Metadata: datatypes.JSONMap{"created_by_role": role},
	}

	if err := s.repo.CreateThread(spanCtx, &thread); err != nil {
		span.RecordError(err)
		return dto.ForumThreadResponse{}, err
	}

	s.logger.Info().Uint("thread_id", thread.ID).Str("author_id", authorID).Msg("forum thread created")

	return dto.NewForumThreadResponse(thread), nil
}

func (s *forumService) UpdateThread(ctx context.Context, id uint, authorID, role string, payload dto.ForumThreadUpdateRequest) (dto.ForumThreadResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ForumThreadResponse{}, err
	}

	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return dto.ForumThreadResponse{}, err
	}

	if err := s.authorizeMutation(thread.AuthorID, authorID, role); err != nil {
		return dto.ForumThreadResponse{}, err
	}
	if thread.Locked && !isModerator(role) {
		return dto.ForumThreadResponse{}, ErrThreadLocked
	}

	if payload.Title != nil {
		sanitized := strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
		if sanitized == "" {
			return dto.ForumThreadResponse{}, errors.New("thread title empty after sanitization")
		}
		thread.Title = sanitized
	}
	if payload.Body != nil {
		thread.Body = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Body))
	}
	if payload.Tags != nil {
		thread.Tags = *payload.Tags
	}

	if err := s.repo.UpdateThread(ctx, &thread); err != nil {
		return dto.ForumThreadResponse{}, err
	}

	return dto.NewForumThreadResponse(thread), nil
}

func (s *forumService) DeleteThread(ctx context.Context, id uint, authorID, role string) error {
	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorizeMutation(thread.AuthorID, authorID, role); err != nil {
		return err
	}

	return s.repo.DeleteThread(ctx, id)
}

// SetPinned toggles the pinned flag. Pin and lock are independent switches, so
// pinning never touches the locked state and vice versa.
func (s *forumService) SetPinned(ctx context.Context, id uint, role string, pinned bool) (dto.ForumThreadResponse, error) {
	if !isModerator(role) {
		return dto.ForumThreadResponse{}, ErrForumForbidden
	}

	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return dto.ForumThreadResponse{}, err
	}

	thread.Pinned = pinned
	if err := s.repo.UpdateThread(ctx, &thread); err != nil {
		return dto.ForumThreadResponse{}, err
	}

	s.logger.Info().Uint("thread_id", id).Bool("pinned", pinned).Msg("thread pin state changed")

	return dto.NewForumThreadResponse(thread), nil
}

// SetLocked toggles the locked flag independently of pinning.
func (s *forumService) SetLocked(ctx context.Context, id uint, role string, locked bool) (dto.ForumThreadResponse, error) {
	if !isModerator(role) {
		return dto.ForumThreadResponse{}, ErrForumForbidden
	}

	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return dto.ForumThreadResponse{}, err
	}

	thread.Locked = locked
	if err := s.repo.UpdateThread(ctx, &thread); err != nil {
		return dto.ForumThreadResponse{}, err
	}

	s.logger.Info().Uint("thread_id", id).Bool("locked", locked).Msg("thread lock state changed")

	return dto.NewForumThreadResponse(thread), nil
}

// VoteThread bumps one of the two counters. Upvotes and downvotes are tracked
// independently; the net score is derived at serialization time.
func (s *forumService) VoteThread(ctx context.Context, id uint, direction string) (dto.ForumThreadResponse, error) {
	column, err := voteColumn(direction)
	if err != nil {
		return dto.ForumThreadResponse{}, err
	}

	thread, err := s.repo.VoteThread(ctx, id, column)
	if err != nil {
		return dto.ForumThreadResponse{}, err
	}

	return dto.NewForumThreadResponse(thread), nil
}

func (s *forumService) ListReplies(ctx context.Context, threadID uint, limit, offset int) ([]dto.ForumReplyResponse, error) {
	replies, err := s.repo.ListReplies(ctx, threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewForumReplyResponseSlice(replies), nil
}

func (s *forumService) CreateReply(ctx context.Context, authorID, role string, payload dto.ForumReplyCreateRequest) (dto.ForumReplyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ForumReplyResponse{}, err
	}

	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if sanitized == "" {
		return dto.ForumReplyResponse{}, errors.New("reply content empty after sanitization")
	}

	thread, err := s.repo.GetThread(ctx, payload.ThreadID)
	if err != nil {
		return dto.ForumReplyResponse{}, err
	}

	if thread.Locked {
		return dto.ForumReplyResponse{}, ErrThreadLocked
	}

	reply := models.ForumReply{
		ThreadID: payload.ThreadID,
		AuthorID: authorID,
		Content:  sanitized,
	}

	if err := s.repo.CreateReply(ctx, &reply); err != nil {
		return dto.ForumReplyResponse{}, err
	}

	s.dispatchNotifications(ctx, thread, reply)

	return dto.NewForumReplyResponse(reply), nil
}

func (s *forumService) VoteReply(ctx context.Context, id uint, direction string) (dto.ForumReplyResponse, error) {
	column, err := voteColumn(direction)
	if err != nil {
		return dto.ForumReplyResponse{}, err
	}

	reply, err := s.repo.VoteReply(ctx, id, column)
	if err != nil {
		return dto.ForumReplyResponse{}, err
	}

	return dto.NewForumReplyResponse(reply), nil
}

// SetReplyAccepted marks a reply as accepted or clears the mark. Acceptance is
// per reply, so a thread may accumulate several accepted answers.
func (s *forumService) SetReplyAccepted(ctx context.Context, id uint, actorID, role string, accepted bool) (dto.ForumReplyResponse, error) {
	reply, err := s.repo.GetReply(ctx, id)
	if err != nil {
		return dto.ForumReplyResponse{}, err
	}

	thread, err := s.repo.GetThread(ctx, reply.ThreadID)
	if err != nil {
		return dto.ForumReplyResponse{}, err
	}

	if err := s.authorizeMutation(thread.AuthorID, actorID, role); err != nil {
		return dto.ForumReplyResponse{}, err
	}

	reply.Accepted = accepted
	if err := s.repo.UpdateReply(ctx, &reply); err != nil {
		return dto.ForumReplyResponse{}, err
	}

	if accepted && s.notifications != nil && reply.AuthorID != "" && reply.AuthorID != actorID {
		payload := dto.NotificationCreateRequest{
			UserID:  reply.AuthorID,
			Type:    "reply_accepted",
			Message: fmt.Sprintf("Your reply in thread '%s' was accepted", thread.Title),
		}
		if _, err := s.notifications.Publish(ctx, payload); err != nil {
			s.logger.Warn().Err(err).Str("user_id", reply.AuthorID).Msg("failed to publish acceptance notification")
		}
	}

	return dto.NewForumReplyResponse(reply), nil
}

func (s *forumService) authorizeMutation(ownerID, actorID, role string) error {
	if actorID == ownerID {
		return nil
	}
	if isModerator(role) {
		return nil
	}
	return ErrForumForbidden
}

func isModerator(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role == "admin" || role == "teacher"
}

func voteColumn(direction string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up", "upvote":
		return "upvotes", nil
	case "down", "downvote":
		return "downvotes", nil
	default:
		return "", ErrInvalidVote
	}
}

func (s *forumService) dispatchNotifications(ctx context.Context, thread models.ForumThread, reply models.ForumReply) {
	if s.notifications == nil {
		return
	}

	mentions := s.extractMentions(reply.Content)

	targets := make(map[string]struct{})
	if thread.AuthorID != "" && thread.AuthorID != reply.AuthorID {
		targets[thread.AuthorID] = struct{}{}
	}
	for _, mention := range mentions {
		if mention == reply.AuthorID {
			continue
		}
		targets[mention] = struct{}{}
	}

	for userID := range targets {
		message := fmt.Sprintf("New reply in thread '%s'", thread.Title)
		payload := dto.NotificationCreateRequest{
			UserID:  userID,
			Type:    "forum_reply",
			Message: message,
		}
		if _, err := s.notifications.Publish(ctx, payload); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to publish forum notification")
		}
	}
}

func (s *forumService) extractMentions(content string) []string {
	matches := s.mentionPattern.FindAllStringSubmatch(content, -1)
	mentions := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) < 2 {
			continue
		}
		mention := strings.TrimSpace(match[1])
		if mention != "" {
			mentions = append(mentions, mention)
		}
	}
	return mentions
}
