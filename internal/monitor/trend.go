package monitor

import (
	"fmt"
	"math"

	"github.com/datavet-systems/datavet/pkg/types"
)

// Trend detection defaults.
const (
	defaultTrendWindow = 10
	defaultTrendSigmas = 3.0
	defaultMinHistory  = 3
)

// TrendAnomaly flags a metric whose latest value sits unusually far from its
// recent history.
type TrendAnomaly struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stdDev"`
	Deviation float64 `json:"deviation"` // distance from the mean in sigma units
}

// trendCheck is one metric's trend evaluation. Skipped checks (short history,
// zero variance) trigger nothing and resolve nothing.
type trendCheck struct {
	metric    string
	condition string
	skipped   bool
	anomaly   *TrendAnomaly
	bound     float64 // the mean±Nσ limit on the latest value's side
}

func trendWindow(cfg types.TrendConfig) int {
	if cfg.Window > 0 {
		return cfg.Window
	}
	return defaultTrendWindow
}

// trendCondition is the stable condition string shared by every alert in one
// metric's trend lineage.
func trendCondition(metric string, sigmas float64) string {
	return fmt.Sprintf("%s deviates >%.1fσ from trend", metric, sigmas)
}

// runTrendChecks evaluates each quality metric of the latest snapshot against
// the mean and standard deviation of its history window. hist must exclude the
// latest snapshot and be ordered newest first.
func runTrendChecks(cfg types.TrendConfig, latest types.QualityMetrics, hist []types.QualityMetrics) []trendCheck {
	sigmas := cfg.Sigmas
	if sigmas <= 0 {
		sigmas = defaultTrendSigmas
	}
	minHistory := cfg.MinHistory
	if minHistory <= 0 {
		minHistory = defaultMinHistory
	}
	if window := trendWindow(cfg); len(hist) > window {
		hist = hist[:window]
	}

	var checks []trendCheck
	for _, name := range types.MetricNames() {
		check := trendCheck{metric: name, condition: trendCondition(name, sigmas)}

		latestValue, _ := latest.Dimension(name)
		values := make([]float64, 0, len(hist))
		for _, h := range hist {
			if v, ok := h.Dimension(name); ok {
				values = append(values, v)
			}
		}
		if len(values) < minHistory {
			check.skipped = true
			checks = append(checks, check)
			continue
		}

		mean, stddev := meanStdDev(values)
		if stddev == 0 {
			check.skipped = true
			checks = append(checks, check)
			continue
		}

		if latestValue < mean {
			check.bound = mean - sigmas*stddev
		} else {
			check.bound = mean + sigmas*stddev
		}
		if deviation := math.Abs(latestValue-mean) / stddev; deviation > sigmas {
			check.anomaly = &TrendAnomaly{
				Metric:    name,
				Value:     latestValue,
				Mean:      mean,
				StdDev:    stddev,
				Deviation: deviation,
			}
		}
		checks = append(checks, check)
	}
	return checks
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}
