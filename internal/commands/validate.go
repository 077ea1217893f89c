package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datavet-systems/datavet/internal/engine"
	"github.com/datavet-systems/datavet/internal/quality"
	"github.com/datavet-systems/datavet/internal/rules"
	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

const validateTimeout = 5 * time.Minute

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var (
		rulesFile   string
		inputFile   string
		datasetName string
		withQuality bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a dataset against quality rules",
		Long: `Validate loads records from a JSON file, runs the given rules against
them, and prints a per-rule report. With --quality the five quality
dimensions and the aggregate score are printed as well.

The command exits non-zero when the dataset fails validation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runValidate(rulesFile, inputFile, datasetName, withQuality)
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "Rule file (YAML)")
	cmd.Flags().StringVar(&inputFile, "input", "", "Input data file (JSON array or JSON Lines)")
	cmd.Flags().StringVar(&datasetName, "dataset", "", "Dataset name (defaults to the rule file's dataset, then the input file name)")
	cmd.Flags().BoolVar(&withQuality, "quality", false, "Also measure quality metrics")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runValidate(rulesFile, inputFile, datasetName string, withQuality bool) error {
	cfg, err := loadOptionalConfig()
	if err != nil {
		return err
	}

	records, err := readRecords(inputFile)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("input %s holds no records", inputFile)
	}

	// An explicit rule file wins over the configured rule directories.
	var specs []types.RuleSpec
	if rulesFile != "" {
		rf, err := rules.LoadFile(rulesFile)
		if err != nil {
			return err
		}
		if datasetName == "" {
			datasetName = rf.Dataset
		}
		specs = rf.Rules
	}
	if datasetName == "" {
		datasetName = strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	}
	if rulesFile == "" && cfg != nil {
		for _, dir := range cfg.RuleDirs {
			dirSpecs, err := rules.LoadDir(dir, datasetName)
			if err != nil {
				return err
			}
			specs = append(specs, dirSpecs...)
		}
	}
	if len(specs) == 0 {
		return fmt.Errorf("no rules to run: pass --rules or configure ruleDirs in datavet.yaml")
	}

	exec := engine.New(rules.NewRegistry())
	if cfg != nil {
		applyEngineConfig(exec, cfg.Engine)
	}

	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	ds := dataset.FromRecords(datasetName, records)
	result, err := exec.Execute(ctx, ds, specs)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	printValidationResult(result)

	if withQuality {
		var qcfg *types.QualityConfig
		if cfg != nil {
			qcfg = cfg.Quality
		}
		calc, err := quality.NewFromConfig(qcfg)
		if err != nil {
			return err
		}
		metrics, err := calc.Measure(ds, result)
		if err != nil {
			return fmt.Errorf("measuring quality: %w", err)
		}
		printQualityMetrics(metrics)
	}

	if !result.Valid {
		return fmt.Errorf("validation failed: %d failed, %d errored of %d rules", result.Failed, result.Errored, result.TotalRules)
	}
	return nil
}

func printValidationResult(result *types.ValidationResult) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("\nDataset: %s (%d rules)\n", result.Dataset, result.TotalRules)

	if result.Valid {
		color.Green("Verdict: VALID ✓")
	} else {
		color.Red("Verdict: INVALID ✗")
	}

	fmt.Println("\nRule outcomes:")
	for _, o := range result.Outcomes {
		switch o.State {
		case types.OutcomePassed:
			color.Green("  ✓ %s: passed (%d rows)", o.Rule.Label(), o.RowsEvaluated)
		case types.OutcomeFailed:
			color.Red("  ✗ %s: failed %d of %d rows", o.Rule.Label(), o.FailedRows, o.RowsEvaluated)
			sample := o.Sample
			if len(sample) > 3 {
				sample = sample[:3]
			}
			for _, f := range sample {
				fmt.Printf("      row %d: %v\n", f.Row, f.Value)
			}
		case types.OutcomeErrored:
			color.Yellow("  ○ %s: errored (%s)", o.Rule.Label(), o.Err)
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d errored\n\n", result.Passed, result.Failed, result.Errored)
}

func printQualityMetrics(m types.QualityMetrics) {
	bold := color.New(color.Bold)
	_, _ = bold.Println("Quality metrics:")
	for _, dim := range []struct {
		name  string
		value float64
	}{
		{"completeness", m.Completeness},
		{"uniqueness", m.Uniqueness},
		{"validity", m.Validity},
		{"consistency", m.Consistency},
		{"timeliness", m.Timeliness},
	} {
		fmt.Printf("  %-14s %s\n", dim.name, formatScore(dim.value))
	}
	fmt.Printf("  %-14s %s\n", "quality score", formatScore(m.Score))
	fmt.Println()
}

// formatScore colors a [0,1] metric: green at 0.95 and above, yellow at 0.8,
// red below.
func formatScore(v float64) string {
	s := fmt.Sprintf("%.4f", v)
	switch {
	case v >= 0.95:
		return color.GreenString(s)
	case v >= 0.8:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}
