// Package progress persists watch positions and drives checkpointing during playback.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNegativeProgress is returned by stores asked to save a negative position.
var ErrNegativeProgress = errors.New("progress seconds must not be negative")

// Record is the stored watch position of one user for one video.
// There is at most one per (UserID, VideoID).
type Record struct {
	UserID          string    `json:"user_id,omitempty"`
	VideoID         string    `json:"video_id,omitempty"`
	ProgressSeconds int       `json:"progress_seconds"`
	IsCompleted     bool      `json:"is_completed"`
	LastWatchedAt   time.Time `json:"last_watched_at,omitzero"`
}

func (r Record) String() string {
	if r.IsCompleted {
		return fmt.Sprintf("%s: completed", r.VideoID)
	}
	return fmt.Sprintf("%s: %ds", r.VideoID, r.ProgressSeconds)
}

// Store reads and upserts records. Get on a missing record returns the
// zero position without error. Save must be idempotent.
type Store interface {
	Get(ctx context.Context, userID, videoID string) (Record, error)
	Save(ctx context.Context, userID, videoID string, seconds int, completed bool) error
}

func emptyRecord(userID, videoID string) Record {
	return Record{UserID: userID, VideoID: videoID}
}

func validate(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeProgress, seconds)
	}
	return nil
}
