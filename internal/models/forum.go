package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ForumThread represents a forum topic. Pinned and locked are independent
// flags: a thread can be both at the same time.
type ForumThread struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CourseID  *uint             `gorm:"index" json:"course_id"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	Body      string            `gorm:"type:text" json:"body"`
	AuthorID  string            `gorm:"size:64;index" json:"author_id"`
	Pinned    bool              `gorm:"index;not null;default:false" json:"is_pinned"`
	Locked    bool              `gorm:"not null;default:false" json:"is_locked"`
	Upvotes   int               `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int               `gorm:"not null;default:0" json:"downvotes"`
	TagsRaw   string            `gorm:"column:tags;type:text" json:"-"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Tags      []string          `gorm:"-" json:"tags"`
	Replies   []ForumReply      `gorm:"foreignKey:ThreadID" json:"replies"`
}

// BeforeSave normalises tag data before persisting.
func (t *ForumThread) BeforeSave(tx *gorm.DB) error {
	t.TagsRaw = encodeTags(t.Tags)
	return nil
}

// AfterFind restores the tag slice from its stored representation.
func (t *ForumThread) AfterFind(tx *gorm.DB) error {
	t.Tags = decodeTags(t.TagsRaw)
	return nil
}

// NetScore is upvotes minus downvotes, computed at read time. The two
// counters are independent; the same user may have contributed to both.
func (t ForumThread) NetScore() int {
	return t.Upvotes - t.Downvotes
}

// ForumReply represents a reply within a forum thread. Acceptance is a plain
// boolean per reply; multiple replies on one thread may be accepted.
type ForumReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uint      `gorm:"index;not null" json:"thread_id"`
	AuthorID  string    `gorm:"size:64;index" json:"author_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Accepted  bool      `gorm:"not null;default:false" json:"is_accepted"`
	Upvotes   int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0" json:"downvotes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NetScore is upvotes minus downvotes, computed at read time.
func (r ForumReply) NetScore() int {
	return r.Upvotes - r.Downvotes
}

func encodeTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}

func decodeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}
