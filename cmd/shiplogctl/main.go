// Command shiplogctl is a manual smoke-test harness: it builds a
// single writer from a YAML config file (internal/config) and tails
// stdin into it, one line per message. It is intentionally outside
// the tested core (spec.md §1 draws the same line around the
// reference adapters) and exists only so a human can point it at a
// real or local AWS endpoint and watch messages land.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "shiplogctl",
	Short: "Manual smoke-test client for the shiplog writer core",
	Long: `shiplogctl builds a single shiplog writer from a YAML config file and
feeds it lines read from stdin, one log message per line.

It is a development tool, not a supported adapter: production
integrations build a writer.Core directly and wire it to whatever
framework they forward from.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "shiplog.yml", "path to the writer config file")
	rootCmd.AddCommand(newTailCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
