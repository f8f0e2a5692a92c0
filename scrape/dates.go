package scrape

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jesposito/walkabout/db"
)

// GenerateTravelDates picks the (departure, return) pair to scrape for a
// definition on a given day. Rolling searches sample deterministically from
// (search id, today) so the same day always scrapes the same dates while the
// sampled dates drift across the horizon day over day. Fixed-window searches
// use their stored dates verbatim.
func GenerateTravelDates(d *db.SearchDefinition, today time.Time) (time.Time, *time.Time) {
	today = today.Truncate(24 * time.Hour)

	if !d.IsRolling() {
		departure := d.DepartureStart.Time
		if d.TripType == db.TripTypeOneWay {
			return departure, nil
		}
		ret := d.DepartureEnd.Time
		return departure, &ret
	}

	daysMin, daysMax := int(d.DaysFromNowMin.Int32), int(d.DaysFromNowMax.Int32)
	if daysMin <= 0 {
		daysMin = 14
	}
	if daysMax < daysMin {
		daysMax = daysMin
	}

	seed := dateSeed(d.ID, today)
	daysOut := daysMin + int(seed%uint64(daysMax-daysMin+1))
	departure := today.AddDate(0, 0, daysOut)

	if d.TripType == db.TripTypeOneWay {
		return departure, nil
	}

	durMin, durMax := int(d.TripDurationMin.Int32), int(d.TripDurationMax.Int32)
	if durMin <= 0 {
		durMin = 7
	}
	if durMax < durMin {
		durMax = durMin
	}
	tripDays := durMin + int((seed>>16)%uint64(durMax-durMin+1))
	ret := departure.AddDate(0, 0, tripDays)
	return departure, &ret
}

func dateSeed(searchID int64, today time.Time) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", searchID, today.Format("2006-01-02"))
	return h.Sum64()
}
