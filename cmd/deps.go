package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/auth"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/internal/sync"
	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/log"
	"github.com/lectern-cli/lectern/media"
	"github.com/lectern-cli/lectern/where"
	"github.com/spf13/viper"
)

// identify returns the stored token and the user it was issued to. Without
// a token, an explicit user id is accepted for backends that do not need one.
func identify(userFlag string) (token, userID string, err error) {
	token, id, err := auth.Current()
	switch {
	case err == nil:
		if id.Expired(time.Now()) {
			log.WithField("expired", id.Expires).Warn("access token expired")
		}
		return token, id.UserID, nil
	case errors.Is(err, auth.ErrNotSignedIn) && userFlag != "":
		return "", userFlag, nil
	default:
		return "", "", err
	}
}

// tokenForAccess returns the stored token, which only the platform
// resolver requires.
func tokenForAccess() (string, error) {
	token, err := auth.GetToken()
	if err != nil && viper.GetString(key.AccessMode) == access.ModeDirect {
		return "", nil
	}
	return token, err
}

func failureQueue() *sync.Queue {
	return sync.NewQueue(where.FailedCheckpoints())
}

func engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.InitialBandwidth = float64(viper.GetInt(key.EngineInitialBandwidth))
	cfg.MaxRetries = viper.GetInt(key.EngineMaxRetries)
	cfg.MaxMediaRecoveries = viper.GetInt(key.EngineMaxMediaRecoveries)
	return cfg
}

func newElement(title string) *media.MPV {
	return media.NewMPV(
		viper.GetString(key.PlayerBinary),
		media.WithNativeHLS(viper.GetBool(key.PlayerNativeHLS)),
		media.WithSocketDir(where.Sockets()),
		media.WithTitle(title),
	)
}

func requestContext() (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration(key.APITimeout)
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
