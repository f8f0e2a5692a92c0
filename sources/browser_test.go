package sources

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jesposito/walkabout/config"
)

func TestSpecStopsName(t *testing.T) {
	cases := []struct {
		stops int
		want  string
	}{
		{-1, "any"},
		{0, "nonstop"},
		{1, "one_or_fewer"},
		{2, "two_or_fewer"},
		{7, "any"},
	}
	for _, tc := range cases {
		s := Spec{Stops: tc.stops}
		assert.Equal(t, tc.want, s.StopsName(), "stops %d", tc.stops)
	}
}

func TestBrowserBuildURLCarriesStopsFilter(t *testing.T) {
	b := NewBrowser(config.BrowserConfig{Enabled: true}, t.TempDir(), nil, nil)

	spec := testSpec()
	spec.Stops = 1
	spec.CabinClass = "business"

	u, err := url.Parse(b.buildURL(spec))
	require.NoError(t, err)
	phrase := u.Query().Get("q")
	assert.Contains(t, phrase, "1 stop or fewer")
	assert.Contains(t, phrase, "business class")
	assert.Contains(t, phrase, "AKL to NRT")
	assert.Equal(t, "NZD", u.Query().Get("curr"))

	// Round trips carry the return date through.
	ret := time.Date(2026, 9, 24, 0, 0, 0, 0, time.UTC)
	spec.ReturnDate = &ret
	u, err = url.Parse(b.buildURL(spec))
	require.NoError(t, err)
	assert.Contains(t, u.Query().Get("q"), "returning 2026-09-24")
}
