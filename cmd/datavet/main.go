// Command datavet is the CLI for validating datasets against quality rules
// and running the quality monitoring server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datavet-systems/datavet/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "datavet",
		Short: "Rule-based data quality validation and monitoring",
		Long: `Datavet validates tabular datasets against declarative quality rules,
scores them across five quality dimensions, and watches scores over
time with threshold and trend alerting.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewValidateCmd(),
		commands.NewRulesCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
