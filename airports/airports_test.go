package airports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBack(t *testing.T) {
	c, err := Load("/nonexistent/airports.csv")
	require.NoError(t, err)
	assert.Greater(t, c.Count(), 50)
	assert.NotNil(t, c.Lookup("AKL"))
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "airports.csv")
	csv := "code,name,city,country,region,lat,lon\n" +
		"AKL,Auckland Airport,Auckland,New Zealand,Oceania,-37.0081,174.7917\n" +
		"WLG,Wellington Airport,Wellington,New Zealand,Oceania,-41.3272,174.8053\n" +
		"NRT,Narita International Airport,Tokyo,Japan,Asia,35.7647,140.3864\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Count())

	nrt := c.Lookup("nrt")
	require.NotNil(t, nrt)
	assert.Equal(t, "Tokyo", nrt.City)
	assert.Equal(t, "Japan", nrt.Country)
}

func TestLookupUnknown(t *testing.T) {
	c := fromAirports(fallbackAirports)
	assert.Nil(t, c.Lookup("XXX"))
	assert.Nil(t, c.Lookup(""))
}

func TestSearchExactCodeFirst(t *testing.T) {
	c := fromAirports(fallbackAirports)

	results := c.Search("SYD", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "SYD", results[0].Code)
}

func TestSearchCityPrefix(t *testing.T) {
	c := fromAirports(fallbackAirports)

	results := c.Search("auck", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "AKL", results[0].Code)
}

func TestSearchTransliterates(t *testing.T) {
	c := fromAirports(fallbackAirports)

	// "São Paulo" should match a plain-ASCII query.
	results := c.Search("sao paulo", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "GRU", results[0].Code)
}

func TestSearchLimit(t *testing.T) {
	c := fromAirports(fallbackAirports)

	results := c.Search("a", 3)
	assert.LessOrEqual(t, len(results), 3)

	assert.Nil(t, c.Search("", 5))
	assert.Nil(t, c.Search("auckland", 0))
}

func TestNearby(t *testing.T) {
	c := fromAirports(fallbackAirports)

	// Wellington and Christchurch are within 1000 km of Auckland; Sydney is not.
	nearby := c.Nearby("AKL", 1000)
	codes := make([]string, 0, len(nearby))
	for _, n := range nearby {
		codes = append(codes, n.Airport.Code)
	}
	assert.Contains(t, codes, "WLG")
	assert.Contains(t, codes, "CHC")
	assert.NotContains(t, codes, "SYD")
	assert.NotContains(t, codes, "AKL")

	// Sorted closest first.
	for i := 1; i < len(nearby); i++ {
		assert.LessOrEqual(t, nearby[i-1].DistanceKm, nearby[i].DistanceKm)
	}
}

func TestNearbyUnknownAnchor(t *testing.T) {
	c := fromAirports(fallbackAirports)
	assert.Nil(t, c.Nearby("XXX", 500))
}

func TestByCountry(t *testing.T) {
	c := fromAirports(fallbackAirports)

	nz := c.ByCountry("New Zealand")
	require.NotEmpty(t, nz)
	for _, a := range nz {
		assert.Equal(t, "New Zealand", a.Country)
	}
	assert.Empty(t, c.ByCountry("Atlantis"))
}

func TestPreferredCodeForCity(t *testing.T) {
	c := fromAirports(fallbackAirports)

	assert.Equal(t, "NRT", c.PreferredCodeForCity("Tokyo"))
	assert.Equal(t, "LHR", c.PreferredCodeForCity("London"))
	// Single-airport city falls back to the index.
	assert.Equal(t, "AKL", c.PreferredCodeForCity("Auckland"))
	assert.Equal(t, "", c.PreferredCodeForCity("Atlantis"))
}
