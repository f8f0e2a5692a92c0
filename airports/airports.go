// Package airports provides the static IATA airport catalog: code lookup,
// text search, proximity queries, and country/city indexes. The catalog is
// loaded once at startup from a CSV and falls back to a small built-in table
// when the file is missing.
package airports

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	anyascii "github.com/anyascii/go"

	"github.com/jesposito/walkabout/pkg/geo"
	"github.com/jesposito/walkabout/pkg/logger"
)

// Airport is one catalog entry.
type Airport struct {
	Code    string
	Name    string
	City    string
	Country string
	Region  string
	Lat     float64
	Lon     float64
}

// Catalog is the in-memory airport index. Built once at startup; read-only
// afterwards, so it is safe for concurrent use.
type Catalog struct {
	byCode    map[string]*Airport
	byCity    map[string][]string // normalized city -> codes
	byCountry map[string][]string // normalized country -> codes
	all       []*Airport
}

// Load reads the catalog from a CSV with the header
// code,name,city,country,region,lat,lon. A missing file degrades to the
// built-in fallback table with a warning.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("airport CSV missing, using built-in fallback table",
			"path", path, "error", err)
		return fromAirports(fallbackAirports), nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	// header
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("failed to read airport CSV header: %w", err)
	}

	var airports []Airport
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read airport CSV: %w", err)
		}

		lat, _ := strconv.ParseFloat(record[5], 64)
		lon, _ := strconv.ParseFloat(record[6], 64)
		code := strings.ToUpper(strings.TrimSpace(record[0]))
		if len(code) != 3 {
			continue
		}
		airports = append(airports, Airport{
			Code:    code,
			Name:    record[1],
			City:    record[2],
			Country: record[3],
			Region:  record[4],
			Lat:     lat,
			Lon:     lon,
		})
	}

	logger.Info("airport catalog loaded", "count", len(airports), "path", path)
	return fromAirports(airports), nil
}

func fromAirports(airports []Airport) *Catalog {
	c := &Catalog{
		byCode:    make(map[string]*Airport, len(airports)),
		byCity:    make(map[string][]string),
		byCountry: make(map[string][]string),
	}
	for i := range airports {
		a := &airports[i]
		c.byCode[a.Code] = a
		c.byCity[normalize(a.City)] = append(c.byCity[normalize(a.City)], a.Code)
		c.byCountry[normalize(a.Country)] = append(c.byCountry[normalize(a.Country)], a.Code)
		c.all = append(c.all, a)
	}
	return c
}

// Lookup returns the airport for an IATA code, or nil if unknown.
func (c *Catalog) Lookup(code string) *Airport {
	return c.byCode[strings.ToUpper(strings.TrimSpace(code))]
}

// searchResult pairs an airport with its match score for ranking.
type searchResult struct {
	airport *Airport
	score   int
}

// Search finds airports matching the query across code, city, country, and
// name. Exact code matches rank first, then prefix matches, then substring
// matches.
func (c *Catalog) Search(query string, limit int) []*Airport {
	q := normalize(query)
	if q == "" || limit <= 0 {
		return nil
	}

	var results []searchResult
	for _, a := range c.all {
		score := matchScore(a, q)
		if score > 0 {
			results = append(results, searchResult{airport: a, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].airport.Code < results[j].airport.Code
	})

	if len(results) > limit {
		results = results[:limit]
	}
	airports := make([]*Airport, len(results))
	for i, r := range results {
		airports[i] = r.airport
	}
	return airports
}

func matchScore(a *Airport, q string) int {
	code := strings.ToLower(a.Code)
	city := normalize(a.City)
	country := normalize(a.Country)
	name := normalize(a.Name)

	switch {
	case code == q:
		return 100
	case strings.HasPrefix(city, q):
		return 80
	case strings.HasPrefix(name, q):
		return 70
	case strings.HasPrefix(country, q):
		return 60
	case strings.Contains(city, q):
		return 40
	case strings.Contains(name, q):
		return 30
	case strings.Contains(country, q):
		return 20
	}
	return 0
}

// NearbyAirport pairs an airport with its distance from the query point.
type NearbyAirport struct {
	Airport    *Airport
	DistanceKm float64
}

// Nearby returns airports within radiusKm of the given airport, closest
// first. The anchor airport itself is excluded.
func (c *Catalog) Nearby(code string, radiusKm float64) []NearbyAirport {
	anchor := c.Lookup(code)
	if anchor == nil {
		return nil
	}
	from := geo.Coordinates{Lat: anchor.Lat, Lon: anchor.Lon}
	if !from.IsValid() || from.IsZero() {
		return nil
	}

	var nearby []NearbyAirport
	for _, a := range c.all {
		if a.Code == anchor.Code {
			continue
		}
		to := geo.Coordinates{Lat: a.Lat, Lon: a.Lon}
		if to.IsZero() {
			continue
		}
		d := geo.DistanceBetweenKm(from, to)
		if d <= radiusKm {
			nearby = append(nearby, NearbyAirport{Airport: a, DistanceKm: d})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby
}

// ByCountry returns all airports in a country, by code.
func (c *Catalog) ByCountry(country string) []*Airport {
	codes := c.byCountry[normalize(country)]
	airports := make([]*Airport, 0, len(codes))
	for _, code := range codes {
		airports = append(airports, c.byCode[code])
	}
	sort.Slice(airports, func(i, j int) bool {
		return airports[i].Code < airports[j].Code
	})
	return airports
}

// CodesForCity returns the airport codes serving a city.
func (c *Catalog) CodesForCity(city string) []string {
	codes := c.byCity[normalize(city)]
	result := make([]string, len(codes))
	copy(result, codes)
	sort.Strings(result)
	return result
}

// PreferredCodeForCity returns the curated primary airport for a major city,
// falling back to the first indexed code. Used by the RSS deal parser, which
// sees city names rather than codes.
func (c *Catalog) PreferredCodeForCity(city string) string {
	if code, ok := preferredCityCodes[normalize(city)]; ok {
		return code
	}
	codes := c.CodesForCity(city)
	if len(codes) > 0 {
		return codes[0]
	}
	return ""
}

// Count returns the catalog size.
func (c *Catalog) Count() int {
	return len(c.all)
}

// normalize lowercases, trims, and transliterates to ASCII so queries like
// "sao paulo" match "São Paulo".
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(anyascii.Transliterate(s)))
}
