// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/nightcrawler-video/nightcrawler/color"
	"github.com/nightcrawler-video/nightcrawler/constant"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string

	checks []Check
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Nightcrawler + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.typeName(),
	})
}

// typeName returns the string representation of the field's underlying value type.
func (f *Field) typeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []int:
		return "[]int"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string, checks ...Check) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc, checks: checks}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	register(key.CatalogBaseURL, "http://localhost:8000/api/v1", "Base URL of the video catalog backend.\nManifests are served from <base>/videos/<id>/master.m3u8", httpURL)
	register(key.CatalogCacheTTL, "10m", "How long the catalog listing is cached on disk.\nSet to 0s to always refetch", duration)
	register(key.PlaybackEngine, "hls", "Segmented-stream engine to use.\nAvailable options are: hls, native (hand the manifest URL to the sink)", oneOf("hls", "native"))
	register(key.PlaybackAttachSettleDelay, "2s", "Delay between session creation and engine attachment", duration)
	register(key.PlaybackSwitchSettleDelay, "2s", "Upper bound to wait for the engine to confirm a quality switch", duration)
	register(key.PlaybackMaxBufferAhead, 30, "Seconds of media the engine buffers ahead of the playhead", between(1, 600))
	register(key.PlaybackMaxRetries, 3, "Segment and playlist fetch retries before a network error becomes fatal", between(0, 20))
	register(key.PlaybackABRSafety, 70, "Percentage of the measured bandwidth automatic quality selection may use. From 1 to 100", between(1, 100))
	register(key.PlaybackStartLevel, -1, "Quality level to pin on start.\n-1 delegates the choice to automatic selection", atLeast(-1))
	register(key.PlayerSink, "mpv", "Media sink to render to.\nAvailable options are: mpv, headless", oneOf("mpv", "headless"))
	register(key.PlayerOutput, "", "File the headless sink records received media to.\nEmpty disables recording")
	register(key.HistorySaveOnWatch, true, "Save the last playback position when a video is closed")
	register(key.SearchShowQuerySuggestions, true, "Show query suggestions when filtering the catalog")
	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)", oneOf("emoji", "kaomoji", "plain", "squares", "nerd"))
	register(key.TUIItemSpacing, 1, "Spacing between items in the TUI", between(0, 5))
	register(key.TUIShowURLs, false, "Show manifest URLs under catalog items")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace", oneOf("panic", "fatal", "error", "warn", "info", "debug", "trace"))
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Enable automatic version check")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(color.Purple),
	"blue":     style.Fg(color.Blue),
	"cyan":     style.Fg(color.Cyan),
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
