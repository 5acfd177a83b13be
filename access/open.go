package access

import (
	"fmt"

	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/network"
	"github.com/spf13/viper"
)

const (
	ModeAPI    = "api"
	ModeDirect = "direct"
)

// FromConfig returns the resolver selected by access.mode.
func FromConfig() (Resolver, error) {
	switch mode := viper.GetString(key.AccessMode); mode {
	case ModeAPI, "":
		c := NewClient(viper.GetString(key.APIBaseURL))
		c.HTTP = network.WithTimeout(viper.GetDuration(key.APITimeout))
		return c, nil
	case ModeDirect:
		return NewDirect(
			viper.GetString(key.BunnyTokenKey),
			viper.GetString(key.BunnyCDNHost),
			viper.GetString(key.BunnyLibraryID),
			viper.GetDuration(key.BunnyURLTTL),
		), nil
	default:
		return nil, fmt.Errorf("unknown access mode %q, available: %s, %s", mode, ModeAPI, ModeDirect)
	}
}
