// Package config registers every setting with its default and loads them
// through viper from the environment and the config file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lectern-cli/lectern/constant"
	"github.com/lectern-cli/lectern/filesystem"
	"github.com/lectern-cli/lectern/where"
	"github.com/spf13/viper"
)

// EnvKeyReplacer maps keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Path is where the config file lives.
func Path() string {
	return filepath.Join(where.Config(), constant.Lectern+".toml")
}

// Setup loads defaults and environment overrides, then the config file when one exists.
func Setup() error {
	viper.SetConfigName(constant.Lectern)
	viper.SetConfigType("toml")
	viper.SetFs(filesystem.API())
	viper.AddConfigPath(where.Config())

	viper.SetEnvPrefix(constant.Lectern)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	for _, env := range EnvExposed {
		viper.MustBindEnv(env)
	}

	viper.SetTypeByDefaultValue(true)
	for name, field := range Default {
		viper.SetDefault(name, field.Value)
	}

	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Validate checks every effective value and joins all problems.
func Validate() error {
	var errs []error
	for _, f := range Sorted() {
		if err := f.Check(viper.Get(f.Key)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write persists the in-memory values, creating the file when missing.
func Write() error {
	err := viper.WriteConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return viper.SafeWriteConfig()
	}
	return err
}
