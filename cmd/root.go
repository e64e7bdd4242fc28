// Package cmd wires the command line interface around the history
// repository.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mateconpizza/hsearch/internal/config"
	"github.com/mateconpizza/hsearch/internal/history"
)

var limitFlag int

// Root searches the aggregated history cache. The first run extracts
// recent visits from every installed browser.
var Root = &cobra.Command{
	Use:           config.App.Cmd + " [query]...",
	Short:         "Search aggregated browser history",
	Long:          "Aggregate recent visits from locally installed browsers into one searchable cache.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	RunE:          searchFunc,
}

// Execute runs the root command.
func Execute() {
	if err := Root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", config.App.Name, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	f := config.App.Flags
	pf := Root.PersistentFlags()
	pf.CountVarP(&f.Verbose, "verbose", "v", "increase logging verbosity")
	pf.BoolVarP(&f.JSON, "json", "j", false, "output in JSON format")
	pf.StringVarP(&f.Browser, "browser", "b", "", "restrict to one browser [chrome|thorium|zen]")
	pf.BoolVar(&f.NoNetwork, "no-fetch", false, "skip favicon fetching")

	Root.Flags().IntVarP(&limitFlag, "limit", "n", 0, "cap the number of results printed")
}

func initConfig() {
	config.SetVerbosity(config.App.Flags.Verbose)

	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", config.App.Name, err)
		os.Exit(1)
	}
}

func searchFunc(cmd *cobra.Command, args []string) error {
	sel, err := history.ParseSelection(config.App.Flags.Browser)
	if err != nil {
		return err
	}

	r, teardown, err := openRepo(cmd.Context())
	if err != nil {
		return err
	}
	defer teardown()

	if err := r.Bootstrap(cmd.Context()); err != nil {
		return err
	}

	r.SetSelection(sel)

	query := joinArgs(args)
	items := r.Search(query)

	if query != "" && len(items) > 0 {
		if err := r.RecordQuery(cmd.Context(), query); err != nil {
			return err
		}
	}

	if limitFlag > 0 && len(items) > limitFlag {
		items = items[:limitFlag]
	}

	// let any favicon fetches started by the bootstrap land in the cache
	r.Wait()

	return printItems(cmd.OutOrStdout(), items)
}
