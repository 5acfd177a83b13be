// Package log wraps logrus with a switch that keeps the terminal UI clean: nothing is emitted unless logs.write is on.
package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lectern-cli/lectern/filesystem"
	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/where"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	dayLayout     = "2006-01-02"
	retentionDays = 14
)

var (
	enabled bool
	discard = newDiscard()
)

// Fields is an alias so callers don't need to import logrus for structured context.
type Fields = logrus.Fields

func newDiscard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Setup opens today's log file under where.Logs and configures format and level.
func Setup() error {
	enabled = viper.GetBool(key.LogsWrite)
	if !enabled {
		return nil
	}

	dir := where.Logs()
	if dir == "" {
		return errors.New("log directory path is empty")
	}

	now := time.Now()
	if err := prune(dir, now.AddDate(0, 0, -retentionDays)); err != nil {
		return fmt.Errorf("prune logs: %w", err)
	}

	path := filepath.Join(dir, now.Format(dayLayout)+".log")
	f, err := filesystem.API().OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(f)

	if viper.GetBool(key.LogsJson) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(viper.GetString(key.LogsLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	return nil
}

// prune removes daily log files older than cutoff.
func prune(dir string, cutoff time.Time) error {
	entries, err := filesystem.API().ReadDir(dir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		day, err := time.ParseInLocation(dayLayout, strings.TrimSuffix(e.Name(), ".log"), time.Local)
		if err != nil || e.IsDir() || !day.Before(cutoff) {
			continue
		}
		if err := filesystem.API().Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Enabled reports whether log output is written anywhere.
func Enabled() bool {
	return enabled
}

// WithFields returns an entry carrying the given context.
// When logging is off the entry writes to io.Discard.
func WithFields(fields Fields) *logrus.Entry {
	if !enabled {
		return logrus.NewEntry(discard).WithFields(fields)
	}
	return logrus.WithFields(fields)
}

// WithField is shorthand for WithFields with a single key.
func WithField(key string, value any) *logrus.Entry {
	return WithFields(Fields{key: value})
}

// WithError is shorthand for WithFields with the "error" key set.
func WithError(err error) *logrus.Entry {
	return WithFields(Fields{logrus.ErrorKey: err})
}

func Error(args ...any) {
	if enabled {
		logrus.Error(args...)
	}
}

func Errorf(format string, args ...any) {
	if enabled {
		logrus.Errorf(format, args...)
	}
}

func Warn(args ...any) {
	if enabled {
		logrus.Warn(args...)
	}
}

func Warnf(format string, args ...any) {
	if enabled {
		logrus.Warnf(format, args...)
	}
}

func Info(args ...any) {
	if enabled {
		logrus.Info(args...)
	}
}

func Infof(format string, args ...any) {
	if enabled {
		logrus.Infof(format, args...)
	}
}

func Debug(args ...any) {
	if enabled {
		logrus.Debug(args...)
	}
}

func Debugf(format string, args ...any) {
	if enabled {
		logrus.Debugf(format, args...)
	}
}

func Tracef(format string, args ...any) {
	if enabled {
		logrus.Tracef(format, args...)
	}
}
