// Package macros expands destination-type tags used by trip plans into
// concrete airport sets.
//
// Tags are intentionally coarse: a trip plan saying "japan" or "tropical"
// means "any of these airports", and the trip-plan search fans out across
// the expansion. The sets are curated rather than derived from the airport
// catalog, because a good candidate list is about route liquidity, not
// geography.
package macros

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// destinationTypes maps a lowercase tag to its candidate airports.
var destinationTypes = map[string][]string{
	"japan":          {"NRT", "HND", "KIX", "NGO", "FUK", "CTS", "OKA"},
	"south_korea":    {"ICN", "GMP", "PUS"},
	"southeast_asia": {"SIN", "BKK", "KUL", "SGN", "HAN", "MNL", "DPS", "CGK"},
	"tropical":       {"NAN", "RAR", "PPT", "APW", "TBU", "VLI", "DPS", "HNL", "OGG"},
	"pacific":        {"NAN", "RAR", "PPT", "APW", "TBU", "VLI", "NOU"},
	"australia":      {"SYD", "MEL", "BNE", "OOL", "PER", "ADL", "CNS", "HBA"},
	"usa":            {"LAX", "SFO", "HNL", "JFK", "SEA", "DEN", "ORD", "IAH"},
	"north_america":  {"LAX", "SFO", "YVR", "JFK", "SEA", "HNL", "YYZ"},
	"south_america":  {"SCL", "EZE", "GRU", "LIM", "BOG"},
	"europe":         {"LHR", "CDG", "AMS", "FRA", "FCO", "MAD", "BCN", "MUC", "ZRH", "DUB"},
	"uk":             {"LHR", "LGW", "MAN", "EDI"},
	"china":          {"PVG", "PEK", "CAN", "HKG"},
	"india":          {"DEL", "BOM", "BLR", "MAA"},
	"middle_east":    {"DXB", "DOH", "AUH"},
	"africa":         {"JNB", "CPT", "NBO", "CAI"},
	"ski":            {"DEN", "SLC", "YVR", "ZQN", "GVA", "ZRH", "INN"},
	"beach":          {"DPS", "HNL", "OGG", "NAN", "RAR", "PPT", "CUN", "HKT"},
	"city_break":     {"SYD", "MEL", "SIN", "HKG", "NRT", "LAX", "NYC", "LHR"},
}

// airportCodePattern validates IATA airport codes (3 uppercase letters).
var airportCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ExpandDestinationType returns the airport codes for a destination-type tag.
// Returns nil if the tag is not recognized.
func ExpandDestinationType(tag string) []string {
	airports, ok := destinationTypes[normalizeTag(tag)]
	if !ok {
		return nil
	}
	result := make([]string, len(airports))
	copy(result, airports)
	return result
}

// IsDestinationType reports whether tag names a known destination type.
func IsDestinationType(tag string) bool {
	_, ok := destinationTypes[normalizeTag(tag)]
	return ok
}

// AllDestinationTypes returns the supported tags in sorted order.
func AllDestinationTypes() []string {
	tags := make([]string, 0, len(destinationTypes))
	for tag := range destinationTypes {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// SameGroup reports whether two airports appear together in any destination
// type. The trip-plan matcher uses this as its "similar destination" signal.
func SameGroup(a, b string) bool {
	a = strings.ToUpper(strings.TrimSpace(a))
	b = strings.ToUpper(strings.TrimSpace(b))
	if a == "" || b == "" || a == b {
		return a != "" && a == b
	}
	for _, airports := range destinationTypes {
		foundA, foundB := false, false
		for _, code := range airports {
			if code == a {
				foundA = true
			}
			if code == b {
				foundB = true
			}
		}
		if foundA && foundB {
			return true
		}
	}
	return false
}

// ExpandDestinations expands a mixed list of IATA codes and destination-type
// tags into a deduplicated airport list. Unknown tags produce an error so the
// caller can reject bad trip plans at the boundary.
func ExpandDestinations(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	result := make([]string, 0, len(inputs))

	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			result = append(result, code)
		}
	}

	for _, input := range inputs {
		token := strings.TrimSpace(input)
		if token == "" {
			continue
		}
		if airports := ExpandDestinationType(token); airports != nil {
			for _, code := range airports {
				add(code)
			}
			continue
		}
		code := strings.ToUpper(token)
		if !airportCodePattern.MatchString(code) {
			return nil, fmt.Errorf("unknown destination %q: not an IATA code or destination type", input)
		}
		add(code)
	}

	return result, nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), " ", "_"))
}
