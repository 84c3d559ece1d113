package cmd

import (
	"github.com/nightcrawler-video/nightcrawler/catalog"
	"github.com/nightcrawler-video/nightcrawler/inline"
	"github.com/nightcrawler-video/nightcrawler/query"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("query", "q", "", "Fuzzy filter applied to asset titles")
	listCmd.Flags().StringP("asset", "a", "", "Asset selector applied to the filtered catalog")
	listCmd.Flags().BoolP("json", "j", false, "Format the output as a JSON object")
	listCmd.Flags().BoolP("refresh", "r", false, "Bypass the cached catalog listing")
	listCmd.Flags().StringP("output", "o", "", "Write the output to this file")

	lo.Must0(listCmd.RegisterFlagCompletionFunc("query", completionQueries))
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the assets of the catalog",
	Run: func(cmd *cobra.Command, args []string) {
		client := catalog.NewFromViper()
		if lo.Must(cmd.Flags().GetBool("refresh")) {
			_, err := client.Refresh(cmd.Context())
			handleErr(err)
		}

		out, closeOut, err := outputWriter(cmd, lo.Must(cmd.Flags().GetString("output")))
		handleErr(err)
		defer closeOut()

		picker := mo.None[inline.Picker]()
		if selector := lo.Must(cmd.Flags().GetString("asset")); selector != "" {
			fn, err := inline.ParsePicker(selector)
			handleErr(err)
			picker = mo.Some(fn)
		}

		q := lo.Must(cmd.Flags().GetString("query"))
		if q != "" {
			_ = query.Remember(q, 1)
		}

		handleErr(inline.Run(cmd.Context(), &inline.Options{
			Out:     out,
			Catalog: client,
			Query:   q,
			Picker:  picker,
			Json:    lo.Must(cmd.Flags().GetBool("json")),
		}))
	},
}
