package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Registry holds the catalog of rule kinds. The zero value is not usable;
// NewRegistry returns one with the built-in catalog installed.
type Registry struct {
	mu       sync.RWMutex
	checkers map[types.RuleKind]Checker
}

// NewRegistry creates a registry preloaded with the built-in rule kinds.
func NewRegistry() *Registry {
	r := &Registry{checkers: make(map[types.RuleKind]Checker)}
	registerBuiltins(r)
	return r
}

// Resolve returns the checker for a kind, or ErrUnknownRuleKind.
func (r *Registry) Resolve(kind types.RuleKind) (Checker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.checkers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuleKind, kind)
	}
	return c, nil
}

// Register adds a custom rule kind. Registering an existing kind fails with
// ErrDuplicateRuleKind so built-ins are not shadowed by accident.
func (r *Registry) Register(kind types.RuleKind, c Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checkers[kind]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRuleKind, kind)
	}
	r.checkers[kind] = c
	return nil
}

// RegisterOverride adds or replaces a rule kind unconditionally.
func (r *Registry) RegisterOverride(kind types.RuleKind, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[kind] = c
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []types.RuleKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.RuleKind, 0, len(r.checkers))
	for k := range r.checkers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func registerBuiltins(r *Registry) {
	r.checkers[types.RuleNotNull] = checkNotNull
	r.checkers[types.RuleUnique] = checkUnique
	r.checkers[types.RuleRange] = checkRange
	r.checkers[types.RulePattern] = checkPattern
	r.checkers[types.RuleInSet] = checkInSet
	r.checkers[types.RuleCompare] = checkCompare
	r.checkers[types.RuleLength] = checkLength
	r.checkers[types.RuleDateNotFuture] = checkDateNotFuture
	r.checkers[types.RuleDateNotPast] = checkDateNotPast
	r.checkers[types.RuleDateRange] = checkDateRange
	r.checkers[types.RuleEmail] = checkEmail
	r.checkers[types.RulePhone] = checkPhone
	r.checkers[types.RuleURL] = checkURL
}
