// Package sync keeps checkpoints that could not be saved and replays them later.
package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/lectern-cli/lectern/filesystem"
	"github.com/lectern-cli/lectern/log"
	"github.com/lectern-cli/lectern/progress"
)

// Queue is an append-only JSON-lines file of failed checkpoints.
type Queue struct {
	path string
	// mu guards the file, replay serializes Reconcile.
	mu     stdsync.Mutex
	replay stdsync.Mutex

	// pause is slept between replayed saves.
	pause func(attempt int) time.Duration
}

// NewQueue returns a queue backed by the file at path. The file is created on
// the first Push.
func NewQueue(path string) *Queue {
	return &Queue{path: path, pause: jitter}
}

func jitter(attempt int) time.Duration {
	backoff := time.Duration(min(attempt, 5)) * 100 * time.Millisecond
	return backoff + time.Duration(rand.IntN(100))*time.Millisecond
}

// Push appends cp to the queue.
func (q *Queue) Push(cp progress.Checkpoint) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	fs := filesystem.API()
	if err := fs.MkdirAll(filepath.Dir(q.path), os.ModePerm); err != nil {
		return err
	}

	f, err := fs.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(cp)
}

// Pending returns the queued checkpoints, keeping only the newest one per
// user and video.
func (q *Queue) Pending() ([]progress.Checkpoint, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read()
}

func (q *Queue) read() ([]progress.Checkpoint, error) {
	f, err := filesystem.API().Open(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	latest := make(map[[2]string]progress.Checkpoint)
	var order [][2]string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var cp progress.Checkpoint
		if err := json.Unmarshal(scanner.Bytes(), &cp); err != nil {
			log.WithError(err).Warn("skip corrupt queued checkpoint")
			continue
		}

		k := [2]string{cp.UserID, cp.VideoID}
		prev, seen := latest[k]
		if !seen {
			order = append(order, k)
		}
		if !seen || !cp.At.Before(prev.At) {
			latest[k] = cp
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make([]progress.Checkpoint, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out, nil
}

func (q *Queue) rewrite(cps []progress.Checkpoint) error {
	fs := filesystem.API()
	if len(cps) == 0 {
		err := fs.Remove(q.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	f, err := fs.OpenFile(q.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, cp := range cps {
		if err := enc.Encode(cp); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile replays queued checkpoints into store. A checkpoint older than
// the stored record is dropped instead of saved. Checkpoints that fail
// again stay queued. It returns how many were saved.
//
// The queue is only locked while the file is read and rewritten, so Push
// never waits for the store.
func (q *Queue) Reconcile(ctx context.Context, store progress.Store) (int, error) {
	q.replay.Lock()
	defer q.replay.Unlock()

	cps, err := q.Pending()
	if err != nil || len(cps) == 0 {
		return 0, err
	}

	var (
		handled = make(map[entryKey]bool)
		saved   int
		ctxErr  error
	)
	for i, cp := range cps {
		if i > 0 {
			select {
			case <-ctx.Done():
				ctxErr = ctx.Err()
			case <-time.After(q.pause(i)):
			}
		}
		if ctxErr != nil {
			break
		}

		entry := log.WithFields(log.Fields{"video": cp.VideoID, "seconds": cp.Seconds})
		if stale(ctx, store, cp) {
			entry.Debug("drop queued checkpoint older than the stored record")
			handled[keyOf(cp)] = true
			continue
		}
		if err := store.Save(ctx, cp.UserID, cp.VideoID, cp.Seconds, cp.Completed); err != nil {
			entry.WithError(err).Warn("replay checkpoint")
			continue
		}
		handled[keyOf(cp)] = true
		saved++
	}

	return saved, errors.Join(ctxErr, q.forget(handled))
}

// stale reports whether the store already holds a newer write than cp.
func stale(ctx context.Context, store progress.Store, cp progress.Checkpoint) bool {
	rec, err := store.Get(ctx, cp.UserID, cp.VideoID)
	if err != nil || rec.LastWatchedAt.IsZero() {
		return false
	}
	return rec.LastWatchedAt.After(cp.At)
}

type entryKey struct {
	user, video string
	seconds     int
	at          int64
}

func keyOf(cp progress.Checkpoint) entryKey {
	return entryKey{cp.UserID, cp.VideoID, cp.Seconds, cp.At.UnixNano()}
}

// forget rewrites the queue without the handled checkpoints, keeping
// anything pushed while the replay ran.
func (q *Queue) forget(handled map[entryKey]bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cps, err := q.read()
	if err != nil {
		return err
	}

	rest := cps[:0]
	for _, cp := range cps {
		if !handled[keyOf(cp)] {
			rest = append(rest, cp)
		}
	}
	return q.rewrite(rest)
}

// ReconcileInBackground runs Reconcile without blocking the caller.
func (q *Queue) ReconcileInBackground(ctx context.Context, store progress.Store) {
	go func() {
		n, err := q.Reconcile(ctx, store)
		if err != nil {
			log.WithError(err).Warn("reconcile failed checkpoints")
		}
		if n > 0 {
			log.Infof("replayed %d queued checkpoints", n)
		}
	}()
}
