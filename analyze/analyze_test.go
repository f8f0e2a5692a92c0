package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func smallHistoryConfig() Config {
	cfg := DefaultConfig()
	cfg.MinHistorySamples = 4
	return cfg
}

func TestInsufficientHistory(t *testing.T) {
	r := Analyze(150, []float64{200, 300}, DefaultConfig())
	assert.False(t, r.IsDeal)
	assert.Contains(t, r.Reason, "Insufficient history")
}

func TestNewLowFires(t *testing.T) {
	r := Analyze(150, []float64{200, 300, 250, 280}, smallHistoryConfig())
	assert.True(t, r.IsDeal)
	assert.True(t, r.IsNewLow)
	assert.Contains(t, r.Reason, "New low")
	assert.LessOrEqual(t, r.Percentile, 20.0)
}

func TestNewLowMargin(t *testing.T) {
	// Within 2% of the historical minimum still counts as a new low.
	history := []float64{200, 300, 250, 280}
	r := Analyze(203, history, smallHistoryConfig())
	assert.True(t, r.IsNewLow)

	r = Analyze(205, history, smallHistoryConfig())
	assert.False(t, r.IsNewLow)
}

func TestRobustZDetection(t *testing.T) {
	// Tight cluster around 500 with one candidate far below.
	history := []float64{495, 500, 505, 498, 502, 500, 497, 503, 501, 499}
	r := Analyze(430, history, DefaultConfig())
	assert.True(t, r.IsDeal)
	assert.Less(t, r.RobustZ, -1.5)
}

func TestOutlierResistance(t *testing.T) {
	// One absurd scrape in the history must not mask a real deal. A
	// mean-based detector would be dragged up by the 9000.
	history := []float64{500, 510, 505, 495, 500, 9000, 505, 498, 502, 500}
	r := Analyze(440, history, DefaultConfig())
	assert.True(t, r.IsDeal, "robust detector ignores the outlier")
}

func TestNormalPriceNotADeal(t *testing.T) {
	history := []float64{495, 500, 505, 498, 502, 500, 497, 503, 501, 499}
	r := Analyze(510, history, DefaultConfig())
	assert.False(t, r.IsDeal)
	assert.Contains(t, r.Reason, "Within normal range")
}

func TestRobustZMonotonic(t *testing.T) {
	history := []float64{400, 420, 410, 430, 415, 425, 405, 435, 418, 422}
	prev := Analyze(300, history, DefaultConfig()).RobustZ
	for _, p := range []float64{320, 350, 380, 400, 420, 450} {
		z := Analyze(p, history, DefaultConfig()).RobustZ
		assert.Greater(t, z, prev, "robust z must increase with price")
		prev = z
	}
}

func TestFlatHistoryDoesNotDivideByZero(t *testing.T) {
	history := []float64{500, 500, 500, 500, 500, 500, 500, 500, 500, 500}
	r := Analyze(500, history, DefaultConfig())
	assert.False(t, r.IsDeal)
	assert.Zero(t, r.TraditionalZ)
	// scaled MAD floors at max(0.01 * median, 1.0) = 5.
	assert.InDelta(t, 0, r.RobustZ, 1e-9)

	low := Analyze(480, history, DefaultConfig())
	assert.InDelta(t, -4.0, low.RobustZ, 1e-9)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 250.0, median([]float64{200, 300, 250}))
	assert.Equal(t, 265.0, median([]float64{200, 300, 250, 280}))
}
