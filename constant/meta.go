// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Lectern is the canonical application identifier used for filesystem paths and CLI branding.
	Lectern = "lectern"

	// Version is the current application semantic version string.
	Version = "0.3.0"

	// UserAgent is sent with every request to the course platform and the video CDN.
	UserAgent = Lectern + "/" + Version
)

// Build metadata, injected with -ldflags at release time.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)

// HLSMimeType is the media type of adaptive bitrate manifests.
const HLSMimeType = "application/vnd.apple.mpegurl"
