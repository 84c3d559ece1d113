// Package cmd implements the command-line interface for nightcrawler.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/color"
	"github.com/nightcrawler-video/nightcrawler/constant"
	"github.com/nightcrawler-video/nightcrawler/icon"
	"github.com/nightcrawler-video/nightcrawler/key"
	"github.com/nightcrawler-video/nightcrawler/log"
	"github.com/nightcrawler-video/nightcrawler/player"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/nightcrawler-video/nightcrawler/tui"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/nightcrawler-video/nightcrawler/version"
	"github.com/nightcrawler-video/nightcrawler/where"
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the application version")

	rootCmd.PersistentFlags().StringP("icons", "I", "", "Set the visual icon variant (e.g., nerd, emoji, square)")
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("icons", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return icon.AvailableVariants(), cobra.ShellCompDirectiveDefault
	}))
	lo.Must0(viper.BindPFlag(key.IconsVariant, rootCmd.PersistentFlags().Lookup("icons")))

	rootCmd.PersistentFlags().BoolP("write-history", "H", true, "Persist the playback position of every watched asset")
	lo.Must0(viper.BindPFlag(key.HistorySaveOnWatch, rootCmd.PersistentFlags().Lookup("write-history")))

	rootCmd.PersistentFlags().String("catalog", "", "Base URL of the catalog and streaming backend")
	lo.Must0(viper.BindPFlag(key.CatalogBaseURL, rootCmd.PersistentFlags().Lookup("catalog")))

	rootCmd.Flags().BoolP("continue", "c", false, "Resume the most recently watched asset")

	helpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		helpFunc(cmd, args)
		version.Notify()
	})

	go func() {
		_ = util.Delete(where.Temp())
	}()
}

// rootCmd launches the interactive catalog browser.
var rootCmd = &cobra.Command{
	Use:   constant.Nightcrawler,
	Short: "Browse, stream and upload videos from a NightCrawler catalog",
	Long: constant.Banner + "\n" +
		style.New().Italic(true).Foreground(color.HiRed).Render("    - Adaptive streaming for your own video catalog, right from the terminal"),
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("version") {
			versionCmd.Run(versionCmd, args)
			return
		}

		if viper.GetString(key.PlayerSink) == player.SinkMPV {
			CheckDependencies()
		}

		options := tui.Options{
			Continue: lo.Must(cmd.Flags().GetBool("continue")),
			Client:   catalog.NewFromViper(),
		}
		handleErr(tui.Run(&options))
	},
}

// Execute initializes child command routing and processes the CLI entry point.
func Execute() {
	if viper.GetBool(key.CliColored) {
		cc.Init(&cc.Config{
			RootCmd:       rootCmd,
			Headings:      cc.HiCyan + cc.Bold + cc.Underline,
			Commands:      cc.HiYellow + cc.Bold,
			Example:       cc.Italic,
			ExecName:      cc.Bold,
			Flags:         cc.Bold,
			FlagsDataType: cc.Italic + cc.HiBlue,
		})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func handleErr(err error) {
	if err != nil {
		log.Error(err)
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", icon.Get(icon.Fail), strings.Trim(err.Error(), " \n"))
		os.Exit(1)
	}
}
