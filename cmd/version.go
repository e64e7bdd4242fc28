package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mateconpizza/hsearch/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", config.App.Name, config.Version())
	},
}

func init() {
	Root.AddCommand(versionCmd)
}
