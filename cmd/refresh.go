package cmd

import (
	"fmt"

	"github.com/mateconpizza/rotato"
	"github.com/spf13/cobra"

	"github.com/mateconpizza/hsearch/internal/config"
	"github.com/mateconpizza/hsearch/internal/history"
)

var purgeFaviconsFlag bool

// refreshCmd re-extracts today's visits from the selected browsers.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-extract today's visits from installed browsers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sel, err := history.ParseSelection(config.App.Flags.Browser)
		if err != nil {
			return err
		}

		r, teardown, err := openRepo(cmd.Context())
		if err != nil {
			return err
		}
		defer teardown()

		sp := rotato.New(
			rotato.WithMesg("refreshing history..."),
			rotato.WithMesgColor(rotato.ColorYellow),
			rotato.WithSpinnerColor(rotato.ColorBrightMagenta),
		)
		sp.Start()

		page, err := r.Refresh(cmd.Context(), sel, purgeFaviconsFlag)
		if err != nil {
			sp.Fail("failed")
			return err
		}

		sp.Done("done!")
		fmt.Fprintf(cmd.OutOrStdout(), "%d records on the first page\n", len(page))

		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&purgeFaviconsFlag, "purge-favicons", false, "delete all cached favicons first")
	Root.AddCommand(refreshCmd)
}
