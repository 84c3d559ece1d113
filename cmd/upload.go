package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/icon"
	"github.com/nightcrawler-video/nightcrawler/style"
	"github.com/nightcrawler-video/nightcrawler/util"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringP("title", "t", "", "Title of the new asset (defaults to the file name)")
	uploadCmd.Flags().StringP("description", "d", "", "Description of the new asset")
}

var uploadCmd = &cobra.Command{
	Use:     "upload [file]",
	Short:   "Add a video file to the catalog",
	Args:    cobra.ExactArgs(1),
	Example: "  nightcrawler upload ./harbor.mp4 -t \"Harbor at dawn\"",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		file := args[0]
		title := lo.CoalesceOrEmpty(lo.Must(cmd.Flags().GetString("title")), util.FileStem(file))
		job := catalog.NewUploadJob(file, title, lo.Must(cmd.Flags().GetString("description")))

		var (
			mu      sync.Mutex
			erase   = func() {}
			percent = -1
		)
		progress := func(j catalog.UploadJob) {
			mu.Lock()
			defer mu.Unlock()

			p := int(j.Percent() * 100)
			if p == percent {
				return
			}
			percent = p

			erase()
			erase = util.PrintErasable(fmt.Sprintf(
				"%s Uploading %s %3d%% (%s / %s)",
				icon.Get(icon.Upload),
				style.Fg(style.AccentColor)(j.Title),
				p,
				humanize.Bytes(uint64(j.BytesSent)),
				humanize.Bytes(uint64(j.TotalBytes)),
			))
		}

		client := catalog.NewFromViper()
		err := client.Upload(ctx, job, progress)

		mu.Lock()
		erase()
		mu.Unlock()
		handleErr(err)

		cmd.Printf("%s Uploaded %s\n", icon.Get(icon.Success), style.Bold(job.Title))
		if job.Video != nil {
			cmd.Println(style.Faint(job.Video.ID))
		}

		if _, err := client.Refresh(ctx); err != nil {
			cmd.PrintErrf("%s catalog refresh failed: %v\n", icon.Get(icon.Warn), err)
		}
	},
}
