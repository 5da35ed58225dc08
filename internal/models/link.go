package models

import (
	"time"
)

// Link is a stored short link. PasswordHash is never serialized.
type Link struct {
	Slug         string     `json:"slug"`
	URL          string     `json:"url"`
	Clicks       int64      `json:"clicks"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	PasswordHash *string    `json:"-"`
}

// IsExpired reports whether the link's expiry lies strictly before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// IsProtected reports whether a password is required to follow the link.
func (l *Link) IsProtected() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// CreateLinkInput carries the creation request into the service. Nil pointers
// mean "not provided".
type CreateLinkInput struct {
	URL        string
	CustomSlug *string
	Password   *string
	ExpiresAt  *time.Time
	ExpiresIn  *int // minutes, used only when ExpiresAt is nil
}

// ShortLink is returned by a successful create.
type ShortLink struct {
	Slug      string     `json:"slug"`
	ShortURL  string     `json:"short_url"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// LinkStats is the public view of a link for stats.
type LinkStats struct {
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}
