package progress

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/lectern-cli/lectern/filesystem"
	"github.com/metafates/gache"
)

// Local keeps records in a JSON file on disk. It serves offline use and
// single-user setups without the platform API.
type Local struct {
	mu     sync.Mutex
	cacher *gache.Cache[map[string]Record]
	now    func() time.Time
}

// NewLocal returns a Store kept in a JSON file at path.
func NewLocal(path string) *Local {
	return &Local{
		cacher: filesystem.Cache[map[string]Record](path, 0),
		now: time.Now,
	}
}

func localKey(userID, videoID string) string {
	return userID + "/" + videoID
}

func (l *Local) load() (map[string]Record, error) {
	cached, expired, err := l.cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]Record), nil
	}
	return cached, nil
}

func (l *Local) Get(_ context.Context, userID, videoID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return Record{}, err
	}

	if rec, ok := records[localKey(userID, videoID)]; ok {
		return rec, nil
	}
	return emptyRecord(userID, videoID), nil
}

func (l *Local) Save(_ context.Context, userID, videoID string, seconds int, completed bool) error {
	if err := validate(seconds); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return err
	}

	records[localKey(userID, videoID)] = Record{
		UserID:          userID,
		VideoID:         videoID,
		ProgressSeconds: seconds,
		IsCompleted:     completed,
		LastWatchedAt:   l.now().UTC(),
	}
	return l.cacher.Set(records)
}

// All returns every stored record of a user, most recently watched first.
func (l *Local) All(userID string) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		return b.LastWatchedAt.Compare(a.LastWatchedAt)
	})
	return out, nil
}
