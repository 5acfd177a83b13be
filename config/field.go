package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lectern-cli/lectern/constant"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Kind is how a raw value for a field is parsed.
type Kind int

const (
	String Kind = iota
	Int
	Bool
	Duration
	URL
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Duration:
		return "duration"
	case URL:
		return "url"
	default:
		return "string"
	}
}

// Field is one registered setting.
type Field struct {
	Key         string
	Value       any
	Description string
	Kind        Kind
	// Options lists the accepted values of an enumerated string field.
	Options []string
	// Secret fields are masked when printed.
	Secret bool
}

type option func(*Field)

func oneOf(options ...string) option {
	return func(f *Field) { f.Options = options }
}

func kind(k Kind) option {
	return func(f *Field) { f.Kind = k }
}

func secret(f *Field) { f.Secret = true }

func kindOf(v any) Kind {
	switch v.(type) {
	case int:
		return Int
	case bool:
		return Bool
	default:
		return String
	}
}

// Env returns the environment variable name for this field.
func (f Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Lectern + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// Current is the effective value, masked for secrets.
func (f Field) Current() any {
	return f.display(viper.Get(f.Key))
}

func (f Field) display(v any) any {
	if f.Secret && cast.ToString(v) != "" {
		return "********"
	}
	return v
}

// Parse converts a command-line value and checks it.
func (f Field) Parse(raw string) (any, error) {
	var v any
	switch f.Kind {
	case Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", f.Key, raw)
		}
		v = n
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid boolean %q", f.Key, raw)
		}
		v = b
	default:
		v = raw
	}

	return v, f.Check(v)
}

// Check reports whether v is acceptable for the field.
func (f Field) Check(v any) error {
	switch f.Kind {
	case Int:
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Key, err)
		}
		if n < 0 {
			return fmt.Errorf("%s: must not be negative, got %d", f.Key, n)
		}
	case Duration:
		d, err := time.ParseDuration(cast.ToString(v))
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q, use values like 10s or 2h", f.Key, cast.ToString(v))
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive, got %s", f.Key, d)
		}
	case URL:
		s := cast.ToString(v)
		if s == "" {
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%s: invalid URL %q", f.Key, s)
		}
	}

	if len(f.Options) > 0 && !lo.Contains(f.Options, cast.ToString(v)) {
		return fmt.Errorf("%s: %q is not one of %s", f.Key, cast.ToString(v), strings.Join(f.Options, ", "))
	}
	return nil
}

// MarshalJSON includes the current and default values.
func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string   `json:"key"`
		Value       any      `json:"value"`
		Default     any      `json:"default"`
		Description string   `json:"description"`
		Type        string   `json:"type"`
		Options     []string `json:"options,omitempty"`
		Env         string   `json:"env"`
	}{
		Key:         f.Key,
		Value:       f.Current(),
		Default:     f.display(f.Value),
		Description: f.Description,
		Type:        f.Kind.String(),
		Options:     f.Options,
		Env:         f.Env(),
	})
}
