// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Platform API - the course platform that issues playable URLs and stores watch history.
const (
	APIBaseURL = "api.base_url"
	APITimeout = "api.timeout"
)

// Access - how playable URLs are obtained.
const (
	AccessMode = "access.mode"
)

// Bunny Stream - direct signing of CDN URLs when access.mode is "direct".
const (
	BunnyTokenKey  = "bunny.token_key"
	BunnyCDNHost   = "bunny.cdn_hostname"
	BunnyLibraryID = "bunny.library_id"
	BunnyURLTTL    = "bunny.url_ttl"
)

// Watch Progress - where and how often playback position is persisted.
const (
	ProgressBackend     = "progress.backend"
	ProgressInterval    = "progress.interval"
	ProgressPostgresDSN = "progress.postgres_dsn"
)

// Events - optional publishing of checkpoints to a message broker.
const (
	EventsNATSURL     = "events.nats_url"
	EventsNATSSubject = "events.nats_subject"
)

// Media Playback - the external player process and controller behaviour.
const (
	PlayerBinary            = "player.binary"
	PlayerNativeHLS         = "player.native_hls"
	PlayerAutoplay          = "player.autoplay"
	PlayerControlsHideAfter = "player.controls_hide_after"
	PlayerResumeTimeout     = "player.resume_timeout"
)

// Streaming Engine - adaptive bitrate and recovery tuning.
const (
	EngineInitialBandwidth   = "engine.initial_bandwidth"
	EngineMaxRetries         = "engine.max_retries"
	EngineMaxMediaRecoveries = "engine.max_media_recoveries"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics and auditing system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
	IconsVariant    = "icons.variant"
)
