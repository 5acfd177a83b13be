// Package where resolves the directories and files lectern keeps on disk.
package where

import (
	"os"
	"path/filepath"

	"github.com/lectern-cli/lectern/constant"
	"github.com/lectern-cli/lectern/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath overrides the configuration directory.
const EnvConfigPath = "LECTERN_CONFIG_PATH"

func mkdir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config is the configuration directory, $XDG_CONFIG_HOME/lectern unless overridden.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return mkdir(custom)
	}

	return mkdir(filepath.Join(lo.Must(os.UserConfigDir()), constant.Lectern))
}

// Cache is the cache directory. It falls back to ./cache when the platform has none.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(".", "cache")
	}
	return mkdir(filepath.Join(base, constant.Lectern))
}

// Logs is the directory for daily log files.
func Logs() string {
	return mkdir(filepath.Join(Config(), "logs"))
}

// Progress is the file used by the local progress backend.
func Progress() string {
	return filepath.Join(Config(), "progress.json")
}

// FailedCheckpoints holds checkpoints that could not be delivered and wait for `progress sync`.
func FailedCheckpoints() string {
	return filepath.Join(Cache(), "failed_checkpoints.json")
}

// Sockets is where media player IPC sockets are created.
func Sockets() string {
	return mkdir(filepath.Join(Temp(), "ipc"))
}

// Temp is the scratch directory for runtime files.
func Temp() string {
	return mkdir(filepath.Join(os.TempDir(), constant.Lectern))
}
