package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mateconpizza/hsearch/internal/config"
)

// dbCmd groups cache database management.
var dbCmd = &cobra.Command{
	Use:     "db",
	Short:   "Cache database management",
	Aliases: []string{"database"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

// dbInfoCmd prints diagnostic row counts for the cache.
var dbInfoCmd = &cobra.Command{
	Use:     "info",
	Short:   "Show cache row counts",
	Aliases: []string{"i"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, teardown, err := openRepo(cmd.Context())
		if err != nil {
			return err
		}
		defer teardown()

		historyRows, faviconRows := r.Validate(cmd.Context())

		w := cmd.OutOrStdout()
		if config.App.Flags.JSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")

			return enc.Encode(map[string]any{
				"path":     config.App.DBPath(),
				"history":  historyRows,
				"favicons": faviconRows,
			})
		}

		fmt.Fprintf(w, "path:     %s\n", config.App.DBPath())
		fmt.Fprintf(w, "history:  %d\n", historyRows)
		fmt.Fprintf(w, "favicons: %d\n", faviconRows)

		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbInfoCmd)
	Root.AddCommand(dbCmd)
}
