// Package access obtains time-limited playable URLs for course videos.
package access

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnauthorized  = errors.New("not signed in or session expired")
	ErrForbidden     = errors.New("no active enrollment for this video's course")
	ErrNotFound      = errors.New("video not found")
	ErrNoPlayableURL = errors.New("video has no playable stream")
)

// Video is the metadata returned alongside a grant.
type Video struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Grant is a resolved, time-limited permission to play one video.
type Grant struct {
	PlayableURL string
	EmbedURL    string
	ExpiresIn   time.Duration
	// Expires is when PlayableURL stops working.
	Expires time.Time
	Video   Video
}

// Expired reports whether the grant is past its validity window at now.
func (g Grant) Expired(now time.Time) bool {
	return !g.Expires.IsZero() && !now.Before(g.Expires)
}

// Resolver turns a video ID and an access token into a playback grant.
type Resolver interface {
	Resolve(ctx context.Context, videoID, token string) (Grant, error)
}

// IsAccessError reports whether err is one of the terminal access errors.
func IsAccessError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoPlayableURL)
}
