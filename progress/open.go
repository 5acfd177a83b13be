package progress

import (
	"context"
	"fmt"

	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/network"
	"github.com/lectern-cli/lectern/where"
	"github.com/spf13/viper"
)

const (
	BackendAPI      = "api"
	BackendLocal    = "local"
	BackendPostgres = "postgres"
)

// AvailableBackends lists the values accepted for the progress backend.
func AvailableBackends() []string {
	return []string{BackendAPI, BackendLocal, BackendPostgres}
}

// Open builds the store selected by progress.backend, wrapped with event
// publishing when events.nats_url is set. The returned function releases
// connections and is never nil.
func Open(ctx context.Context, token string) (Store, func(), error) {
	var (
		store   Store
		closers []func()
	)

	switch backend := viper.GetString(key.ProgressBackend); backend {
	case BackendAPI, "":
		api := NewAPI(viper.GetString(key.APIBaseURL), token)
		api.Client = network.WithTimeout(viper.GetDuration(key.APITimeout))
		store = api
	case BackendLocal:
		store = NewLocal(where.Progress())
	case BackendPostgres:
		pg, closer, err := OpenPostgres(ctx, viper.GetString(key.ProgressPostgresDSN))
		if err != nil {
			return nil, func() {}, err
		}
		store = pg
		closers = append(closers, closer)
	default:
		return nil, func() {}, fmt.Errorf("unknown progress backend %q, available: %v", backend, AvailableBackends())
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if natsURL := viper.GetString(key.EventsNATSURL); natsURL != "" {
		pub, closer, err := NewPublishing(store, natsURL, viper.GetString(key.EventsNATSSubject))
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		store = pub
		closers = append(closers, closer)
	}

	return store, closeAll, nil
}
