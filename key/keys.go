// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Catalog Backend - these keys locate the asset catalog and storage service.
const (
	CatalogBaseURL  = "catalog.base_url"
	CatalogCacheTTL = "catalog.cache_ttl"
)

// Playback Engine - these keys tune the segmented-stream engine and the session state machine.
const (
	PlaybackEngine            = "playback.engine"
	PlaybackAttachSettleDelay = "playback.attach_settle_delay"
	PlaybackSwitchSettleDelay = "playback.switch_settle_delay"
	PlaybackMaxBufferAhead    = "playback.max_buffer_ahead"
	PlaybackMaxRetries        = "playback.max_retries"
	PlaybackABRSafety         = "playback.abr_safety"
	PlaybackStartLevel        = "playback.start_level"
)

// Media Sink - these keys select and configure the surface the stream is rendered to.
const (
	PlayerSink   = "player.sink"
	PlayerOutput = "player.output"
)

// History Tracking - these keys configure the persistence of watch positions.
const (
	HistorySaveOnWatch = "history.save_on_watch"
)

// Search Interaction - these keys define the catalog filtering behaviour.
const (
	SearchShowQuerySuggestions = "search.show_query_suggestions"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Terminal User Interface (TUI) - these keys define the interactive environment's styling and logic.
const (
	TUIItemSpacing = "tui.item_spacing"
	TUIShowURLs    = "tui.show_urls"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the non-TUI application behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
