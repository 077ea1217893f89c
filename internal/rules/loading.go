package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/datavet-systems/datavet/pkg/types"
)

// RuleFile is the on-disk YAML shape for a declarative rule set. The optional
// dataset field scopes the file to one dataset name; empty means any.
type RuleFile struct {
	Dataset string           `yaml:"dataset,omitempty"`
	Rules   []types.RuleSpec `yaml:"rules"`
}

// LoadFile reads one rule YAML file and validates its shape. Severity defaults
// to MEDIUM when unset, matching programmatic specs.
func LoadFile(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rule file %s has no rules", path)
	}

	for i := range rf.Rules {
		r := &rf.Rules[i]
		if r.Kind == "" {
			return nil, fmt.Errorf("rule %d in %s has no kind", i, path)
		}
		if len(r.Columns) == 0 {
			return nil, fmt.Errorf("rule %d (%s) in %s has no columns", i, r.Kind, path)
		}
		if r.Severity == "" {
			r.Severity = types.SeverityMedium
		} else {
			sev, err := types.ParseSeverity(string(r.Severity))
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s) in %s: %w", i, r.Kind, path, err)
			}
			r.Severity = sev
		}
	}
	return &rf, nil
}

// LoadDir loads every rule YAML file from a directory and concatenates the
// specs. Files scoped to other datasets are filtered out when dataset is
// non-empty.
func LoadDir(dir, dataset string) ([]types.RuleSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rule dir %s: %w", dir, err)
	}

	var specs []types.RuleSpec
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		rf, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading rules %s: %w", name, err)
		}
		if dataset != "" && rf.Dataset != "" && rf.Dataset != dataset {
			continue
		}
		specs = append(specs, rf.Rules...)
	}
	return specs, nil
}
