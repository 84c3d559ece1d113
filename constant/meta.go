// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Nightcrawler is the canonical application identifier used for filesystem paths and CLI branding.
	Nightcrawler = "nightcrawler"

	// Version is the current application semantic version string.
	Version = "0.3.1"

	// Repository is the GitHub owner/name pair releases are published under.
	Repository = "nightcrawler-video/nightcrawler"

	// UserAgent is the default HTTP User-Agent string sent to the catalog backend and segment origins.
	UserAgent = Nightcrawler + "/" + Version
)

// Build metadata, overridden at link time via -ldflags "-X".
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)
