package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datavet-systems/datavet/internal/rules"
)

// NewRulesCmd creates the rules command.
func NewRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in rule catalog",
		Run: func(cmd *cobra.Command, args []string) {
			printCatalog()
		},
	}
}

func printCatalog() {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	_, _ = bold.Println("\nBuilt-in rules:")
	for _, doc := range rules.Catalog() {
		fmt.Println()
		_, _ = bold.Printf("  %-16s", doc.Kind)
		fmt.Println(doc.Summary)
		detail := "columns: " + doc.Columns
		if doc.Params != "" {
			detail += "; params: " + doc.Params
		}
		fmt.Printf("  %16s%s\n", "", faint.Sprint(detail))
	}
	fmt.Println()
}
