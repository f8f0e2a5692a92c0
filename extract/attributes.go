package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	nonstopRe  = regexp.MustCompile(`(?i)\b(?:nonstop|non-stop|direct)\b`)
	stopsRe    = regexp.MustCompile(`(?i)\b(\d)\s*stops?\b`)
	durationRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*h(?:rs?|ours?)?\s*(?:(\d{1,2})\s*m(?:ins?)?)?\b`)
	minOnlyRe  = regexp.MustCompile(`(?i)\b(\d{1,3})\s*min\b`)
	layoverRe  = regexp.MustCompile(`(?i)layover[^A-Z]*\(?([A-Z]{3})\)?`)
	iataParenRe = regexp.MustCompile(`\(([A-Z]{3})\)`)
)

// knownAirlines anchors the text fallback so arbitrary row text is not
// mistaken for a carrier name.
var knownAirlines = []string{
	"Air New Zealand", "Qantas", "Jetstar", "Virgin Australia",
	"Singapore Airlines", "Cathay Pacific", "Emirates", "Qatar Airways",
	"Etihad", "ANA", "Japan Airlines", "Korean Air", "Asiana",
	"China Airlines", "EVA Air", "Thai Airways", "Malaysia Airlines",
	"Vietnam Airlines", "Air Asia", "Scoot", "Fiji Airways", "LATAM",
	"United", "American", "Delta", "Hawaiian Airlines", "Air Canada",
	"British Airways", "Lufthansa", "KLM", "Air France", "Turkish Airlines",
	"China Southern", "China Eastern", "Air China", "Cebu Pacific",
	"Philippine Airlines", "Garuda Indonesia", "Air Tahiti Nui",
	"Aircalin", "Air Vanuatu", "Solomon Airlines",
}

// extractAirline tries dedicated carrier elements first, then scans the row
// text for a known carrier name.
func (e *Extractor) extractAirline(row *goquery.Selection) (string, float64) {
	selectors := []struct {
		selector   string
		confidence float64
	}{
		{"div.sSHqwe.tPgKwe.ogfYpf span", 0.90},
		{"span.h1fkLb span", 0.85},
		{"div[class*='airline'] span", 0.80},
		{"img[alt]", 0.75},
	}
	for _, sel := range selectors {
		var airline string
		row.Find(sel.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				if alt, ok := s.Attr("alt"); ok {
					text = strings.TrimSpace(alt)
				}
			}
			if isAirlineName(text) {
				airline = text
				return false
			}
			return true
		})
		if airline != "" {
			return airline, sel.confidence
		}
	}

	text := row.Text()
	for _, name := range knownAirlines {
		if strings.Contains(text, name) {
			return name, 0.60
		}
	}
	return "", 0
}

func isAirlineName(text string) bool {
	if text == "" || len(text) > 40 {
		return false
	}
	for _, name := range knownAirlines {
		if strings.EqualFold(text, name) {
			return true
		}
	}
	// Multi-word title-case strings from carrier elements are accepted;
	// anything with digits is not a carrier name.
	if strings.ContainsAny(text, "0123456789$€£¥") {
		return false
	}
	return strings.Contains(text, " ") && text[0] >= 'A' && text[0] <= 'Z'
}

// extractStops reads the stop count. Confidence is the signal that a value
// was found; zero stops is a valid result.
func (e *Extractor) extractStops(row *goquery.Selection) (int, float64) {
	selectors := []struct {
		selector   string
		confidence float64
	}{
		{"div.EfT7Ae span.ogfYpf", 0.90},
		{"span[aria-label*='stop']", 0.90},
		{"div[class*='stop']", 0.75},
	}
	for _, sel := range selectors {
		stops := -1
		conf := 0.0
		row.Find(sel.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if label, ok := s.Attr("aria-label"); ok {
				text += " " + label
			}
			if n, ok := parseStops(text); ok {
				stops, conf = n, sel.confidence
				return false
			}
			return true
		})
		if stops >= 0 {
			return stops, conf
		}
	}
	if n, ok := parseStops(row.Text()); ok {
		return n, 0.60
	}
	return 0, 0
}

func parseStops(text string) (int, bool) {
	if nonstopRe.MatchString(text) {
		return 0, true
	}
	if m := stopsRe.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n <= 5 {
			return n, true
		}
	}
	return 0, false
}

// extractDuration reads total travel time in minutes.
func (e *Extractor) extractDuration(row *goquery.Selection) (int, float64) {
	selectors := []struct {
		selector   string
		confidence float64
	}{
		{"div.gvkrdb", 0.90},
		{"div[aria-label*='duration'], span[aria-label*='duration']", 0.90},
		{"div[class*='duration']", 0.75},
	}
	for _, sel := range selectors {
		minutes := 0
		conf := 0.0
		row.Find(sel.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if label, ok := s.Attr("aria-label"); ok {
				text += " " + label
			}
			if m, ok := parseDuration(text); ok {
				minutes, conf = m, sel.confidence
				return false
			}
			return true
		})
		if minutes > 0 {
			return minutes, conf
		}
	}
	if m, ok := parseDuration(row.Text()); ok {
		return m, 0.60
	}
	return 0, 0
}

func parseDuration(text string) (int, bool) {
	if m := durationRe.FindStringSubmatch(text); m != nil {
		hours, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		minutes := 0
		if m[2] != "" {
			minutes, _ = strconv.Atoi(m[2])
		}
		total := hours*60 + minutes
		if total > 0 && total < 5000 {
			return total, true
		}
		return 0, false
	}
	if m := minOnlyRe.FindStringSubmatch(text); m != nil {
		minutes, err := strconv.Atoi(m[1])
		if err == nil && minutes >= 20 && minutes < 600 {
			return minutes, true
		}
	}
	return 0, false
}

// extractLayovers pulls the ordered layover airport codes from a row. The
// origin and destination are parenthesised in other parts of the row, so only
// codes adjacent to layover wording count.
func (e *Extractor) extractLayovers(row *goquery.Selection) []string {
	var codes []string
	seen := make(map[string]bool)

	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	row.Find("span[aria-label*='layover'], span[aria-label*='Layover'], div[aria-label*='layover'], div[aria-label*='Layover']").Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("aria-label")
		for _, m := range layoverRe.FindAllStringSubmatch(label+" "+s.Text(), -1) {
			add(m[1])
		}
		for _, m := range iataParenRe.FindAllStringSubmatch(label, -1) {
			add(m[1])
		}
	})

	if len(codes) == 0 {
		for _, m := range layoverRe.FindAllStringSubmatch(row.Text(), -1) {
			add(m[1])
		}
	}
	return codes
}
