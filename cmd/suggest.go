package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suggestLimitFlag int

// suggestCmd prints autocomplete candidates for a query prefix.
var suggestCmd = &cobra.Command{
	Use:     "suggest <prefix>",
	Short:   "Suggest search terms from past queries",
	Args:    cobra.ExactArgs(1),
	Aliases: []string{"sg"},
	RunE: func(cmd *cobra.Command, args []string) error {
		r, teardown, err := openRepo(cmd.Context())
		if err != nil {
			return err
		}
		defer teardown()

		terms, err := r.Suggestions(cmd.Context(), args[0], suggestLimitFlag)
		if err != nil {
			return err
		}

		for _, term := range terms {
			fmt.Fprintln(cmd.OutOrStdout(), term)
		}

		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimitFlag, "limit", "n", 10, "maximum suggestions")
	Root.AddCommand(suggestCmd)
}
