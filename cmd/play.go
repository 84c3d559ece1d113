package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/filesystem"
	"github.com/nightcrawler-video/nightcrawler/history"
	"github.com/nightcrawler-video/nightcrawler/inline"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/level"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/playback"
	"github.com/nightcrawler-video/nightcrawler/player"
	"github.com/nightcrawler-video/nightcrawler/query"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("query", "q", "", "Fuzzy filter applied to asset titles")
	playCmd.Flags().StringP("asset", "a", "", "Asset selector applied to the filtered catalog")
	playCmd.Flags().BoolP("continue", "c", false, "Resume from the saved watch position")
	playCmd.Flags().IntP("level", "l", level.Auto, "Pin a quality level once playing (-1 keeps adaptive selection)")
	playCmd.Flags().BoolP("json", "j", false, "Stream session events as JSON lines")
	playCmd.Flags().DurationP("duration", "d", 0, "Stop playback after this long (0 plays to the end)")

	playCmd.Flags().StringP("sink", "s", "", "Media sink to render to (mpv, headless)")
	lo.Must0(viper.BindPFlag(key.PlayerSink, playCmd.Flags().Lookup("sink")))
	lo.Must0(playCmd.RegisterFlagCompletionFunc("sink", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return player.Available, cobra.ShellCompDirectiveNoFileComp
	}))

	playCmd.Flags().StringP("output", "o", "", "File the headless sink records the stream to")
	lo.Must0(viper.BindPFlag(key.PlayerOutput, playCmd.Flags().Lookup("output")))

	lo.Must0(playCmd.RegisterFlagCompletionFunc("query", completionQueries))
}

// playCmd streams one asset without the interactive browser.
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Stream a catalog asset without the interactive browser",
	Long: `Resolve an asset from the catalog and play it, reporting session events as they happen.

Asset selectors:
  first - first asset in the filtered list
  last - last asset in the filtered list
  [number] - select asset by index (starting from 0)
  [id or title] - select the asset with this exact id or title

With --continue and no selector the most recently watched asset is resumed.`,
	Example: "  nightcrawler play -q \"night drive\" -a first --sink headless --json",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		resume := lo.Must(cmd.Flags().GetBool("continue"))
		q := lo.Must(cmd.Flags().GetString("query"))

		picker, err := pickerFromFlags(cmd, resume)
		handleErr(err)

		if viper.GetString(key.PlayerSink) == player.SinkMPV {
			CheckDependencies()
		}

		client := catalog.NewFromViper()
		videos, err := client.List(ctx)
		handleErr(err)

		titles := lo.SliceToMap(videos, func(v catalog.Video) (string, string) {
			return v.ID, v.Title
		})

		sink, err := player.NewSinkFromViper(lo.CoalesceOrEmpty(q, "nightcrawler"))
		handleErr(err)
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warnf("close sink: %v", err)
			}
		}()

		if q != "" {
			_ = query.Remember(q, 1)
		}

		opts := playback.OptionsFromViper()
		opts.Positions = history.Store{Title: func(id string) string { return titles[id] }}

		options := &inline.Options{
			Out:      cmd.OutOrStdout(),
			Catalog:  client,
			Query:    q,
			Picker:   mo.Some(picker),
			Json:     lo.Must(cmd.Flags().GetBool("json")),
			Play:     true,
			Sink:     sink,
			Playback: opts,
			Level:    lo.Must(cmd.Flags().GetInt("level")),
			Continue: resume,
			Duration: lo.Must(cmd.Flags().GetDuration("duration")),
		}

		err = inline.Run(ctx, options)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		handleErr(err)
	},
}

// pickerFromFlags resolves --asset, falling back to the latest history
// record when resuming.
func pickerFromFlags(cmd *cobra.Command, resume bool) (inline.Picker, error) {
	selector := lo.Must(cmd.Flags().GetString("asset"))
	if selector != "" {
		return inline.ParsePicker(selector)
	}

	if !resume {
		return inline.ParsePicker("first")
	}

	recent, err := history.Recent()
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, errors.New("no watch history to continue from")
	}
	return inline.ParsePicker(recent[0].AssetID)
}

// outputWriter opens path through the filesystem layer, or returns stdout.
func outputWriter(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}

	file, err := filesystem.CreateAll(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

func completionQueries(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return query.SuggestMany(toComplete), cobra.ShellCompDirectiveNoFileComp
}
