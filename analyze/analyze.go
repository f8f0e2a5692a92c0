// Package analyze decides whether a proposed price is a deal relative to the
// recent history of the same search definition. The detector is built on
// median and MAD rather than mean and stddev so a handful of scrape glitches
// cannot shift the baseline.
package analyze

import (
	"fmt"
	"math"
	"sort"
)

// Config holds the detector thresholds.
type Config struct {
	MinHistorySamples int
	RobustZThreshold  float64 // deal when robust z is at or below this
	NewLowMarginPct   float64 // new low when within this percent of the historical minimum
}

// DefaultConfig matches the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinHistorySamples: 10,
		RobustZThreshold:  -1.5,
		NewLowMarginPct:   2,
	}
}

// Result is the full detector output. Both z-scores are reported even when
// the price is not a deal so callers can log and rank.
type Result struct {
	IsDeal       bool
	Reason       string
	RobustZ      float64
	TraditionalZ float64
	Percentile   float64 // rank of the price within history, 0..100, lower is cheaper
	Median       float64
	Min          float64
	IsNewLow     bool
}

// Analyze runs the detector for one price against its history.
func Analyze(price float64, history []float64, cfg Config) Result {
	if len(history) < cfg.MinHistorySamples {
		return Result{
			Reason: fmt.Sprintf("Insufficient history (%d of %d samples)",
				len(history), cfg.MinHistorySamples),
		}
	}

	med := median(history)
	mad := medianAbsDeviation(history, med)

	// The scaling floor keeps a flat history from producing infinite z.
	scaledMAD := math.Max(1.4826*mad, math.Max(0.01*med, 1.0))
	robustZ := (price - med) / scaledMAD

	mean, stddev := meanStddev(history)
	traditionalZ := 0.0
	if stddev > 0 {
		traditionalZ = (price - mean) / stddev
	}

	minPrice := history[0]
	below := 0
	for _, x := range history {
		if x < minPrice {
			minPrice = x
		}
		if x < price {
			below++
		}
	}
	percentile := 100 * float64(below) / float64(len(history))
	newLow := price <= minPrice*(1+cfg.NewLowMarginPct/100)

	r := Result{
		RobustZ:      robustZ,
		TraditionalZ: traditionalZ,
		Percentile:   percentile,
		Median:       med,
		Min:          minPrice,
		IsNewLow:     newLow,
	}

	switch {
	case newLow:
		r.IsDeal = true
		r.Reason = fmt.Sprintf("New low: %.2f vs previous low %.2f", price, minPrice)
	case robustZ <= cfg.RobustZThreshold:
		r.IsDeal = true
		r.Reason = fmt.Sprintf("Well below typical: robust z %.2f (median %.2f)", robustZ, med)
	default:
		r.Reason = fmt.Sprintf("Within normal range: robust z %.2f", robustZ)
	}
	return r
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func medianAbsDeviation(xs []float64, med float64) float64 {
	devs := make([]float64, len(xs))
	for i, x := range xs {
		devs[i] = math.Abs(x - med)
	}
	return median(devs)
}

func meanStddev(xs []float64) (float64, float64) {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	varSum := 0.0
	for _, x := range xs {
		varSum += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(varSum / float64(len(xs)))
}
