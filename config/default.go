package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/key"
	"github.com/lectern-cli/lectern/style"
	"github.com/samber/lo"
)

// Default holds every registered field by key.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	register := func(k string, v any, desc string, opts ...option) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc, Kind: kindOf(v)}
		for _, opt := range opts {
			opt(&f)
		}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	// Platform
	register(key.APIBaseURL, "http://localhost:3000", "Base URL of the course platform API", kind(URL))
	register(key.APITimeout, "15s", "Timeout for a single request to the course platform", kind(Duration))
	register(key.AccessMode, "api", "How playable URLs are obtained.\ndirect signs Bunny CDN URLs locally and skips the enrollment check", oneOf("api", "direct"))

	// Bunny
	register(key.BunnyTokenKey, "", "Bunny Stream token authentication key, direct access only.\nURLs are unsigned when empty", secret)
	register(key.BunnyCDNHost, "", "Bunny Stream CDN hostname, e.g. vz-abc123.b-cdn.net")
	register(key.BunnyLibraryID, "", "Bunny Stream video library id, used for embed URLs")
	register(key.BunnyURLTTL, "2h", "Validity window of directly signed URLs", kind(Duration))

	// Progress
	register(key.ProgressBackend, "api", "Where watch progress is stored", oneOf("api", "local", "postgres"))
	register(key.ProgressInterval, "10s", "Interval between periodic progress checkpoints while playing", kind(Duration))
	register(key.ProgressPostgresDSN, "", "Postgres connection string for the postgres progress backend", secret)
	register(key.EventsNATSURL, "", "NATS server URL. Checkpoints are published to JetStream when set", kind(URL))
	register(key.EventsNATSSubject, "activity.progress", "JetStream subject for checkpoint events")

	// Player
	register(key.PlayerBinary, "mpv", "Media player executable, must speak the mpv JSON-IPC protocol")
	register(key.PlayerNativeHLS, false, "Let the player handle HLS natively.\nDisables the quality menu and adaptive switching")
	register(key.PlayerAutoplay, false, "Start playing as soon as the video is ready")
	register(key.PlayerControlsHideAfter, "3s", "Idle time after which the controls hide while playing", kind(Duration))
	register(key.PlayerResumeTimeout, "5s", "How long to wait for the saved position before starting at 0", kind(Duration))

	// Engine
	register(key.EngineInitialBandwidth, 2_000_000, "Bandwidth estimate in bits per second used to pick the first quality level")
	register(key.EngineMaxRetries, 4, "Network retries before a streaming error becomes fatal")
	register(key.EngineMaxMediaRecoveries, 2, "Decode error recoveries per session before giving up")

	// Logs
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Log level, from least to most verbose", oneOf("panic", "fatal", "error", "warn", "info", "debug", "trace"))
	register(key.LogsJson, false, "Use json format for logs")

	// CLI
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Check for a newer release when showing help or version")
	register(key.IconsVariant, "plain", "Icons variant, nerd requires a nerd font", oneOf("emoji", "plain", "squares", "nerd"))
}

// Sorted returns the registered fields ordered by key.
func Sorted() []Field {
	fields := lo.Values(Default)
	slices.SortFunc(fields, func(a, b Field) int { return strings.Compare(a.Key, b.Key) })
	return fields
}

// Pretty renders the field for the terminal.
func (f Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

func highlight(v any) string {
	switch value := v.(type) {
	case bool:
		b := strconv.FormatBool(value)
		if value {
			return style.Fg(color.Green)(b)
		}
		return style.Fg(color.Red)(b)
	case string:
		if value == "" {
			return style.Faint("(empty)")
		}
		return style.Fg(color.Yellow)(value)
	default:
		return fmt.Sprint(value)
	}
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":  style.Faint,
	"purple": style.Fg(color.Purple),
	"blue":   style.Fg(color.Blue),
	"hl":     highlight,
	"join":   strings.Join,
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl .Current }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ .Kind }}
{{- if .Options }}
{{ blue "Options:" }} {{ join .Options ", " }}
{{- end }}`))
