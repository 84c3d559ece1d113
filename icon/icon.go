// Package icon renders the symbols used across the CLI and the TUI.
//
// Each symbol has an emoji, nerd-font, plain ASCII, kaomoji and Unicode
// squares rendering; the active one is picked by icons.variant.
package icon

import (
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/spf13/viper"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	kaomoji = "kaomoji"
	squares = "squares"
)

// AvailableVariants returns every icon style that icons.variant accepts.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, kaomoji, squares}
}

// Icon identifies a symbol in the registry.
type Icon int

const (
	Play Icon = iota
	Pause
	Loading
	Fail
	Success
	Warn
	Upload
	Quality
	Auto
	Video
	Mark
)

type iconDef map[string]string

func (d iconDef) get(variant string) string {
	return d[variant]
}

var icons = map[Icon]iconDef{
	Play:    {emoji: "▶️", nerd: "", plain: ">", kaomoji: "(ﾉ◕ヮ◕)ﾉ", squares: "▶"},
	Pause:   {emoji: "⏸️", nerd: "", plain: "||", kaomoji: "(￣ー￣)", squares: "⏸"},
	Loading: {emoji: "⏳", nerd: "", plain: "...", kaomoji: "(・_・;)", squares: "◰"},
	Fail:    {emoji: "💀", nerd: "", plain: "X", kaomoji: "(╯°□°)╯", squares: "■"},
	Success: {emoji: "🎉", nerd: "", plain: "OK", kaomoji: "(ᵔᴥᵔ)", squares: "□"},
	Warn:    {emoji: "⚠️", nerd: "", plain: "!", kaomoji: "(°ロ°)", squares: "▲"},
	Upload:  {emoji: "📤", nerd: "", plain: "^", kaomoji: "(ง •̀_•́)ง", squares: "⇧"},
	Quality: {emoji: "🎚️", nerd: "", plain: "Q", kaomoji: "(⌐■_■)", squares: "▤"},
	Auto:    {emoji: "🤖", nerd: "", plain: "A", kaomoji: "(◕‿◕)", squares: "◈"},
	Video:   {emoji: "🎞️", nerd: "", plain: "#", kaomoji: "(☞ﾟヮﾟ)☞", squares: "▣"},
	Mark:    {emoji: "✅", nerd: "", plain: "*", kaomoji: "(•̀ᴗ•́)و", squares: "▪"},
}

// Get renders i in the configured variant. Unknown variants render as "".
func Get(i Icon) string {
	return icons[i].get(viper.GetString(key.IconsVariant))
}
