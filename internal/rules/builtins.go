package rules

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/datavet-systems/datavet/pkg/dataset"
	"github.com/datavet-systems/datavet/pkg/types"
)

// Built-in checker semantics: not-null fails on nil cells; every other kind
// evaluates only non-null cells, and a non-null value the kind cannot
// interpret (non-numeric for range, unparseable date) counts as a failing
// row, not an error.

func checkNotNull(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	cols, err := targetColumns(ds, rule, 1)
	if err != nil {
		return nil, err
	}

	s := newSampler(limit)
	rows := ds.Rows()
	for r := 0; r < rows; r++ {
		if err := checkCancel(ctx, r); err != nil {
			return nil, err
		}
		for _, col := range cols {
			if col[r] == nil {
				s.fail(r, nil)
				break
			}
		}
	}
	return s.result(rows), nil
}

func checkUnique(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	cols, err := targetColumns(ds, rule, 1)
	if err != nil {
		return nil, err
	}

	s := newSampler(limit)
	seen := make(map[string]struct{}, ds.Rows())
	evaluated := 0
	for r := 0; r < ds.Rows(); r++ {
		if err := checkCancel(ctx, r); err != nil {
			return nil, err
		}
		if anyNil(cols, r) {
			continue
		}
		evaluated++
		key := compositeKey(cols, r)
		if _, dup := seen[key]; dup {
			s.fail(r, sampleValue(cols, r))
		} else {
			seen[key] = struct{}{}
		}
	}
	return s.result(evaluated), nil
}

func checkRange(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	min, hasMin, err := paramFloat(rule.Params, "min")
	if err != nil {
		return nil, err
	}
	max, hasMax, err := paramFloat(rule.Params, "max")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, fmt.Errorf("range rule needs a min and/or max param")
	}

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
		v, err := cast.ToFloat64E(col[r])
		if err != nil || (hasMin && v < min) || (hasMax && v > max) {
			s.fail(r, col[r])
		}
	}
	return s.result(evaluated), nil
}

func checkPattern(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	pattern, err := paramString(rule.Params, "pattern")
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("param pattern: %w", err)
	}
	return matchPattern(ctx, ds, rule, re, limit)
}

// Fixed patterns behind the email/phone/url preset kinds.
var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	urlRegex   = regexp.MustCompile(`^https?://[^\s<>"{}|\\^` + "`" + `\[\]]+$`)
)

func checkEmail(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	return matchPattern(ctx, ds, rule, emailRegex, limit)
}

func checkPhone(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	return matchPattern(ctx, ds, rule, phoneRegex, limit)
}

func checkURL(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	return matchPattern(ctx, ds, rule, urlRegex, limit)
}

func matchPattern(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, re *regexp.Regexp, limit int) (*CheckResult, error) {
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
		str, err := cast.ToStringE(col[r])
		if err != nil || !re.MatchString(str) {
			s.fail(r, col[r])
		}
	}
	return s.result(evaluated), nil
}

func checkInSet(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	values, err := paramSlice(rule.Params, "values")
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[display(v)] = struct{}{}
	}

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
		if _, ok := allowed[display(col[r])]; !ok {
			s.fail(r, col[r])
		}
	}
	return s.result(evaluated), nil
}

func checkCompare(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	op, err := paramString(rule.Params, "operator")
	if err != nil {
		return nil, err
	}
	cmp, err := comparator(op)
	if err != nil {
		return nil, err
	}

	if len(rule.Columns) >= 2 {
		return compareColumns(ctx, ds, rule, cmp, limit)
	}

	constant, ok, err := paramFloat(rule.Params, "value")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("compare rule needs a second column or a value param")
	}

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
		v, err := cast.ToFloat64E(col[r])
		if err != nil || !cmp(v, constant) {
			s.fail(r, col[r])
		}
	}
	return s.result(evaluated), nil
}

// compareColumns asserts Columns[0] op Columns[1] row by row. Rows where
// either side is null are skipped.
func compareColumns(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, cmp func(a, b float64) bool, limit int) (*CheckResult, error) {
	cols, err := targetColumns(ds, rule, 2)
	if err != nil {
		return nil, err
	}
	left, right := cols[0], cols[1]

	s := newSampler(limit)
	evaluated := 0
	for r := 0; r < ds.Rows(); r++ {
		if err := checkCancel(ctx, r); err != nil {
			return nil, err
		}
		if left[r] == nil || right[r] == nil {
			continue
		}
		evaluated++
		a, errA := cast.ToFloat64E(left[r])
		b, errB := cast.ToFloat64E(right[r])
		if errA != nil || errB != nil || !cmp(a, b) {
			s.fail(r, []any{left[r], right[r]})
		}
	}
	return s.result(evaluated), nil
}

func checkLength(ctx context.Context, ds *dataset.Dataset, rule types.RuleSpec, limit int) (*CheckResult, error) {
	min, hasMin, err := paramInt(rule.Params, "min")
	if err != nil {
		return nil, err
	}
	max, hasMax, err := paramInt(rule.Params, "max")
	if err != nil {
		return nil, err
	}
	if !hasMin && !hasMax {
		return nil, fmt.Errorf("length rule needs a min and/or max param")
	}

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
		str, err := cast.ToStringE(col[r])
		if err != nil {
			s.fail(r, col[r])
			continue
		}
		n := utf8.RuneCountInString(str)
		if (hasMin && n < min) || (hasMax && n > max) {
			s.fail(r, col[r])
		}
	}
	return s.result(evaluated), nil
}

func comparator(op string) (func(a, b float64) bool, error) {
	switch op {
	case "<":
		return func(a, b float64) bool { return a < b }, nil
	case "<=":
		return func(a, b float64) bool { return a <= b }, nil
	case ">":
		return func(a, b float64) bool { return a > b }, nil
	case ">=":
		return func(a, b float64) bool { return a >= b }, nil
	case "==":
		return func(a, b float64) bool { return a == b }, nil
	case "!=":
		return func(a, b float64) bool { return a != b }, nil
	default:
		return nil, fmt.Errorf("unknown comparison operator %q", op)
	}
}

// targetColumns fetches every target column, requiring at least min of them.
func targetColumns(ds *dataset.Dataset, rule types.RuleSpec, min int) ([][]any, error) {
	if len(rule.Columns) < min {
		return nil, fmt.Errorf("%s rule needs at least %d column(s)", rule.Kind, min)
	}
	cols := make([][]any, len(rule.Columns))
	for i, name := range rule.Columns {
		c, err := ds.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// singleColumn fetches the column for kinds that read exactly one.
func singleColumn(ds *dataset.Dataset, rule types.RuleSpec) ([]any, error) {
	if len(rule.Columns) != 1 {
		return nil, fmt.Errorf("%s rule takes exactly one column, got %d", rule.Kind, len(rule.Columns))
	}
	return ds.Column(rule.Columns[0])
}

func anyNil(cols [][]any, row int) bool {
	for _, col := range cols {
		if col[row] == nil {
			return true
		}
	}
	return false
}

// compositeKey joins one row's values into a collision-safe map key.
func compositeKey(cols [][]any, row int) string {
	key := ""
	for i, col := range cols {
		if i > 0 {
			key += "\x1f"
		}
		key += display(col[row])
	}
	return key
}

func sampleValue(cols [][]any, row int) any {
	if len(cols) == 1 {
		return cols[0][row]
	}
	vals := make([]any, len(cols))
	for i, col := range cols {
		vals[i] = col[row]
	}
	return vals
}

func display(v any) string {
	return fmt.Sprintf("%v", v)
}
