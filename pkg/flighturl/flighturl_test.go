package flighturl

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryPhrase(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("q")
}

func TestBuildRoundTrip(t *testing.T) {
	raw := Build(Params{
		Origin:        "akl",
		Destination:   "NRT",
		DepartureDate: time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		ReturnDate:    time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC),
		Adults:        1,
		Currency:      "NZD",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.google.com", u.Host)
	assert.Equal(t, "/travel/flights", u.Path)
	assert.Equal(t, "NZD", u.Query().Get("curr"))
	assert.Equal(t, "nz", u.Query().Get("gl"))

	phrase := queryPhrase(t, raw)
	assert.Equal(t, "Flights from AKL to NRT on 2026-10-12 returning 2026-10-26", phrase)
}

func TestBuildOneWayOmitsReturn(t *testing.T) {
	raw := Build(Params{
		Origin:        "AKL",
		Destination:   "SYD",
		DepartureDate: time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC),
	})
	assert.NotContains(t, queryPhrase(t, raw), "returning")
}

func TestBuildCabinAndStops(t *testing.T) {
	raw := Build(Params{
		Origin:        "AKL",
		Destination:   "LAX",
		DepartureDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CabinClass:    "business",
		Stops:         "nonstop",
	})
	phrase := queryPhrase(t, raw)
	assert.Contains(t, phrase, "business class")
	assert.Contains(t, phrase, "nonstop")
}

func TestBuildStopsVocabulary(t *testing.T) {
	cases := []struct {
		stops  string
		phrase string
	}{
		{"nonstop", " nonstop"},
		{"one_or_fewer", " 1 stop or fewer"},
		{"two_or_fewer", " 2 stops or fewer"},
	}
	for _, tc := range cases {
		raw := Build(Params{
			Origin:        "AKL",
			Destination:   "SYD",
			DepartureDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			Stops:         tc.stops,
		})
		assert.Contains(t, queryPhrase(t, raw), tc.phrase, tc.stops)
	}

	unfiltered := Build(Params{
		Origin:        "AKL",
		Destination:   "SYD",
		DepartureDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		Stops:         "any",
	})
	assert.NotContains(t, queryPhrase(t, unfiltered), "stop")
}

func TestBuildPassengerPhrases(t *testing.T) {
	raw := Build(Params{
		Origin:        "AKL",
		Destination:   "NAN",
		DepartureDate: time.Date(2026, 12, 19, 0, 0, 0, 0, time.UTC),
		Adults:        2,
		Children:      1,
		InfantsOnLap:  1,
	})
	phrase := queryPhrase(t, raw)
	assert.Contains(t, phrase, "2 adults")
	assert.Contains(t, phrase, "1 child")
	assert.Contains(t, phrase, "1 infant")

	// A single adult with no minors adds no passenger phrase at all.
	solo := Build(Params{
		Origin:        "AKL",
		Destination:   "NAN",
		DepartureDate: time.Date(2026, 12, 19, 0, 0, 0, 0, time.UTC),
		Adults:        1,
	})
	assert.NotContains(t, queryPhrase(t, solo), "adult")
}

func TestBuildDefaults(t *testing.T) {
	raw := Build(Params{
		Origin:        "AKL",
		Destination:   "MEL",
		DepartureDate: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
	})
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "NZD", u.Query().Get("curr"))
	assert.Equal(t, "nz", u.Query().Get("gl"))
	assert.Equal(t, "en", u.Query().Get("hl"))
}
