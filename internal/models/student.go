package models

import "time"

// Student represents a learner enrolled on the platform.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the name used for sorting and display, falling back to
// the email address when the profile has no name.
func (s Student) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}
