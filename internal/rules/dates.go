package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

// Date checkers accept time.Time cells plus the textual layouts in
// timeLayouts. A non-null cell that parses as none of them fails the rule.

func checkDateNotFuture(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	now := time.Now()
	return checkDates(ctx, ds, rule, limit, func(t time.Time) bool {
		return !t.After(now)
	})
}

func checkDateNotPast(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	now := time.Now()
	return checkDates(ctx, ds, rule, limit, func(t time.Time) bool {
		return !t.Before(now)
	})
}

func checkDateRange(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	min, hasMin, err := paramTime(rule.Params, "min")
	if err != nil {
		return nil, err
	}
	max, hasMax, err := paramTime(rule.Params, "max")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, fmt.Errorf("date-range rule needs a min and/or max param")
	}

	return checkDates(ctx, ds, rule, limit, func(t time.Time) bool {
		if hasMin && t.Before(min) {
			return false
		}
		if hasMax && t.After(max) {
			return false
		}
		return true
	})
}

func checkDates(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int, ok func(time.Time) bool) (*CheckResult, error) {
	col, err := singleColumn(ds, rule)
	if err != nil {
		return nil, err
	}

	s := newSampler(limit)
	evaluated := 0
	for r := 0; r < ds.Rows(); r++ {
		if err := checkCancel(ctx, r); err != nil {
			return nil, err
		}
		if col[r] == nil {
			continue
		}
		evaluated++
		t, parsed := coerceTime(col[r])
		if !parsed || !ok(t) {
			s.fail(r, col[r])
		}
	}
	return s.result(evaluated), nil
}
