package extract

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultListPage = `<html><body>
<ul class="Rk10dc">
  <li class="pIav2d">
    <div class="sSHqwe tPgKwe ogfYpf"><span>Air New Zealand</span></div>
    <div class="gvkrdb">3 hr 35 min</div>
    <div class="EfT7Ae"><span class="ogfYpf">Nonstop</span></div>
    <div class="YMlIz"><span>NZ$489</span></div>
  </li>
  <li class="pIav2d">
    <div class="sSHqwe tPgKwe ogfYpf"><span>Qantas</span></div>
    <div class="gvkrdb">5 hr 10 min</div>
    <div class="EfT7Ae"><span class="ogfYpf">1 stop</span></div>
    <span aria-label="Layover at Sydney (SYD)">2 hr layover SYD</span>
    <div class="YMlIz"><span>NZ$612</span></div>
  </li>
</ul>
</body></html>`

func TestExtractRowBased(t *testing.T) {
	e := New(nil)
	flights, err := e.Extract(resultListPage)
	require.NoError(t, err)
	require.Len(t, flights, 2)

	first := flights[0]
	assert.Equal(t, 489.0, first.Price)
	assert.Equal(t, "Air New Zealand", first.Airline)
	assert.Equal(t, 0, first.Stops)
	assert.Equal(t, 3*60+35, first.DurationMinutes)
	assert.Equal(t, MethodPerRow, first.ExtractionMethod)
	assert.Equal(t, CorrelationStructural, first.CorrelationConfidence)
	assert.GreaterOrEqual(t, first.OverallConfidence, 0.6)

	second := flights[1]
	assert.Equal(t, 612.0, second.Price)
	assert.Equal(t, 1, second.Stops)
	assert.Equal(t, []string{"SYD"}, second.LayoverAirports)
}

func TestExtractRowFieldByField(t *testing.T) {
	e := New(nil)
	flights, err := e.Extract(resultListPage)
	require.NoError(t, err)
	require.Len(t, flights, 2)

	got := flights[0]
	overall := got.OverallConfidence
	got.OverallConfidence = 0

	want := FlightData{
		Price:                 489,
		PriceConfidence:       0.90,
		PriceStrategy:         "price-class/symbol-prefixed",
		Airline:               "Air New Zealand",
		AirlineConfidence:     0.90,
		Stops:                 0,
		StopsConfidence:       0.90,
		DurationMinutes:       215,
		DurationConfidence:    0.90,
		CorrelationConfidence: CorrelationStructural,
		ExtractionMethod:      MethodPerRow,
	}
	if diff := deep.Equal(got, want); diff != nil {
		t.Error(diff)
	}
	// All four fields at 0.90, structural correlation, no penalty.
	assert.InDelta(t, 0.4*0.90+0.6*CorrelationStructural, overall, 1e-9)
}

func TestExtractAriaFallback(t *testing.T) {
	page := `<html><body>
	<ul role="list">
	  <li role="listitem">
	    <span>Jetstar</span> 4 hr 5 min, 1 stop, from $321
	  </li>
	</ul>
	</body></html>`

	e := New(nil)
	flights, err := e.Extract(page)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, 321.0, flights[0].Price)
	assert.Equal(t, CorrelationAria, flights[0].CorrelationConfidence)
	assert.Equal(t, MethodPerRow, flights[0].ExtractionMethod)
}

func TestExtractPageLevelFallback(t *testing.T) {
	// No row structure at all, just a price buried in prose.
	page := `<html><body><main><p>Deals start at NZ$799 return.</p></main></body></html>`

	e := New(nil)
	flights, err := e.Extract(page)
	require.NoError(t, err)
	require.Len(t, flights, 1)
	assert.Equal(t, 799.0, flights[0].Price)
	assert.Equal(t, MethodPageLevel, flights[0].ExtractionMethod)
	assert.Equal(t, CorrelationPageLevel, flights[0].CorrelationConfidence)
	// Without locality the overall confidence must stay below the deal gate.
	assert.Less(t, flights[0].OverallConfidence, 0.6)
}

func TestExtractNothingOnLayoutChange(t *testing.T) {
	page := `<html><body><div>Loading flights…</div></body></html>`

	e := New(nil)
	flights, err := e.Extract(page)
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestBareNumbersNeverMatch(t *testing.T) {
	// Flight numbers and years must not be read as prices.
	page := `<html><body>
	<ul role="list"><li role="listitem">NZ102 departs 2026, gate 45</li></ul>
	</body></html>`

	e := New(nil)
	flights, err := e.Extract(page)
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestPriceValidator(t *testing.T) {
	v := NewPriceValidator()

	assert.True(t, v.Valid(489))
	assert.True(t, v.Valid(1050.50))
	assert.False(t, v.Valid(5), "below envelope")
	assert.False(t, v.Valid(99999), "above envelope")
	assert.False(t, v.Valid(1000), "suspicious round constant")
	assert.False(t, v.Valid(10000), "suspicious round constant")
	assert.True(t, v.Valid(1000.50), "non-integer near a constant is fine")
}

func TestCrossValidationPenalty(t *testing.T) {
	f := FlightData{
		Price: 500, PriceConfidence: 0.9,
		Stops: 0, StopsConfidence: 0.9,
		DurationMinutes: 25 * 60, DurationConfidence: 0.9,
		CorrelationConfidence: CorrelationStructural,
	}
	penalty := crossValidate(&f)
	assert.Greater(t, penalty, 0.0, "nonstop over 20h is penalized")

	sane := FlightData{
		Price: 500, PriceConfidence: 0.9,
		Stops: 1, StopsConfidence: 0.9,
		DurationMinutes: 8 * 60, DurationConfidence: 0.9,
	}
	assert.Zero(t, crossValidate(&sane))
}

func TestOverallConfidenceFormula(t *testing.T) {
	f := FlightData{
		Price: 500, PriceConfidence: 0.9,
		AirlineConfidence:     0.8,
		StopsConfidence:       0.9,
		DurationConfidence:    0.9,
		CorrelationConfidence: 0.95,
	}
	fieldAvg := (0.9 + 0.8 + 0.9 + 0.9) / 4
	want := 0.4*fieldAvg + 0.6*0.95
	assert.InDelta(t, want, overallConfidence(&f, 0), 1e-9)

	// Penalty subtracts directly.
	assert.InDelta(t, want-0.2, overallConfidence(&f, 0.2), 1e-9)

	// No correlation signal: field average only.
	noCorr := FlightData{Price: 500, PriceConfidence: 0.9}
	assert.InDelta(t, 0.9, overallConfidence(&noCorr, 0), 1e-9)

	// Clamped at zero.
	assert.Zero(t, overallConfidence(&noCorr, 2.0))
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"3 hr 35 min", 215, true},
		{"12 hr", 720, true},
		{"1h 5m", 65, true},
		{"55 min", 55, true},
		{"no duration here", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseDuration(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		if ok {
			assert.Equal(t, tc.want, got, tc.text)
		}
	}
}

func TestParseStops(t *testing.T) {
	n, ok := parseStops("Nonstop")
	assert.True(t, ok)
	assert.Equal(t, 0, n)

	n, ok = parseStops("2 stops")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = parseStops("no info")
	assert.False(t, ok)
}
