package models

import (
	"time"
)

// RoleName enumerates account roles.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleEditor RoleName = "editor"
	RoleViewer RoleName = "viewer"
)

// User represents an authenticated account.
type User struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	Name      string
	Role      RoleName `gorm:"type:varchar(16)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// APIKey is a long-lived credential for headless display clients that cannot
// run an interactive login.
type APIKey struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	UserID     string `gorm:"type:uuid;index"`
	Name       string
	KeyHash    string `gorm:"uniqueIndex"`
	KeyPrefix  string
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the key is past its expiry.
func (k APIKey) IsExpired() bool {
	return time.Now().After(k.ExpiresAt)
}

// IsRevoked reports whether the key has been revoked.
func (k APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// Row is a named, ordered collection of slides sharing one playback
// configuration. The carousel order is the slide Position order.
type Row struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	Name                 string `gorm:"uniqueIndex"`
	Slug                 string `gorm:"uniqueIndex"`
	Description          string `gorm:"type:text"`
	PlaylistDelaySeconds int
	Position             int
	Slides               []Slide `gorm:"foreignKey:RowID"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Slide is one content unit within a row. AudioURL being non-empty is what
// makes a slide playable. Scheduling fields are kept as loosely typed strings
// on purpose: the visibility filter parses them fail-open so a bad value never
// hides content.
type Slide struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	RowID    string `gorm:"type:uuid;index"`
	Position int    `gorm:"index"`
	Title    string
	Body     string `gorm:"type:text"`
	ImageURL string
	AudioURL string

	IsPublished        bool
	PublishTimeStart   string `gorm:"type:varchar(8)"`  // "HH:MM", viewer-local time
	PublishTimeEnd     string `gorm:"type:varchar(8)"`
	PublishDays        string `gorm:"type:varchar(32)"` // comma separated weekday numbers, 0=Sunday
	TempUnpublishUntil *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAudio reports whether the slide carries a playable audio reference.
func (s Slide) HasAudio() bool {
	return s.AudioURL != ""
}

// AmbientTrack is a background "spa" audio loop offered to viewers
// independently of any playlist session.
type AmbientTrack struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Title     string `gorm:"index"`
	AudioURL  string
	Enabled   bool
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayHistory records tracks the playlist coordinator actually started.
type PlayHistory struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	RowID     string `gorm:"type:uuid;index"`
	SlideID   string `gorm:"type:uuid;index"`
	AudioURL  string
	StartedAt time.Time
}
