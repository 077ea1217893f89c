package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datavet-systems/datavet/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new datavet project",
		Long:  "Init scaffolds a project directory with a starter config, an example rule file, and sample data.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runInit(args[0])
		},
	}
}

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing datavet project: %s\n\n", projectName)

	for _, dir := range []string{"rules", "data"} {
		path := filepath.Join(projectName, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(projectName, config.FileName), starterConfig},
		{filepath.Join(projectName, "rules", "orders.yaml"), starterRules},
		{filepath.Join(projectName, "data", "orders.json"), starterData},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		color.Green("  ✓ %s", f.path)
	}

	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  datavet validate --rules rules/orders.yaml --input data/orders.json --quality")
	fmt.Println("  datavet serve")
	return nil
}

// The sample data ships with deliberate defects so the first validate run
// shows failures: a bad email, a negative amount, an unknown status, and a
// null customer id.
const starterConfig = `store: memory
# store: redis
# redis:
#   addr: localhost:6379
#   keyPrefix: "datavet:"

server:
  addr: ":8080"

engine:
  severityThreshold: HIGH

quality:
  keyColumns: [order_id]
  freshnessSla: 24h

monitor:
  conditions:
    - metric: completeness
      operator: "<"
      threshold: 0.95
      severity: HIGH
    - metric: quality_score
      operator: "<"
      threshold: 0.9
      severity: MEDIUM
  cooldown: 30m
  retention: 720h
  trend:
    enabled: true
    window: 20
    sigmas: 3

ruleDirs:
  - ./rules

alerts:
  - type: console
`

const starterRules = `dataset: orders
rules:
  - kind: not-null
    columns: [order_id, customer_id]
    severity: CRITICAL
  - kind: unique
    columns: [order_id]
    severity: HIGH
  - kind: range
    columns: [amount]
    params:
      min: 0
    severity: HIGH
  - kind: email
    columns: [customer_email]
    severity: MEDIUM
  - kind: in-set
    columns: [status]
    params:
      values: [pending, shipped, delivered, cancelled]
    severity: HIGH
`

const starterData = `[
  {"order_id": 1001, "customer_id": 7, "customer_email": "ana@example.com", "amount": 120.5, "status": "shipped"},
  {"order_id": 1002, "customer_id": 9, "customer_email": "li@example.com", "amount": 89.99, "status": "pending"},
  {"order_id": 1003, "customer_id": 7, "customer_email": "not-an-email", "amount": 42.0, "status": "delivered"},
  {"order_id": 1004, "customer_id": 12, "customer_email": "kim@example.com", "amount": -5.0, "status": "returned"},
  {"order_id": 1005, "customer_id": null, "customer_email": "raj@example.com", "amount": 310.75, "status": "shipped"}
]
`
