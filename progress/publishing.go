package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lectern-cli/lectern/log"
	"github.com/nats-io/nats.go"
)

// Event is published after every successful save.
type Event struct {
	EventID         string    `json:"event_id"`
	UserID          string    `json:"user_id"`
	VideoID         string    `json:"video_id"`
	ProgressSeconds int       `json:"progress_seconds"`
	IsCompleted     bool      `json:"is_completed"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type asyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publishing decorates a Store and announces each saved checkpoint on a
// JetStream subject. Publishing never fails a save.
type Publishing struct {
	Store
	js      asyncPublisher
	subject string
	now     func() time.Time
}

// NewPublishing connects to NATS. The returned function drains the connection.
func NewPublishing(store Store, natsURL, subject string) (*Publishing, func(), error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("lectern"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect %s: %w", natsURL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	closer := func() {
		select {
		case <-js.PublishAsyncComplete():
		case <-time.After(2 * time.Second):
		}
		_ = nc.Drain()
	}
	return newPublishing(store, js, subject), closer, nil
}

func newPublishing(store Store, js asyncPublisher, subject string) *Publishing {
	return &Publishing{Store: store, js: js, subject: subject, now: time.Now}
}

func (p *Publishing) Save(ctx context.Context, userID, videoID string, seconds int, completed bool) error {
	if err := p.Store.Save(ctx, userID, videoID, seconds, completed); err != nil {
		return err
	}

	evt := Event{
		EventID:         uuid.NewString(),
		UserID:          userID,
		VideoID:         videoID,
		ProgressSeconds: seconds,
		IsCompleted:     completed,
		OccurredAt:      p.now().UTC(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return nil
	}

	if _, err := p.js.PublishAsync(p.subject, data, nats.MsgId(evt.EventID)); err != nil {
		log.WithError(err).WithField("subject", p.subject).Warn("publish checkpoint event")
	}
	return nil
}
