package extract

// crossValidate applies sanity penalties when extracted fields contradict
// each other. The penalty is subtracted from the overall confidence.
func crossValidate(f *FlightData) float64 {
	penalty := 0.0

	if f.HasStops() && f.HasDuration() {
		// A nonstop flight longer than 20 hours does not exist on any
		// route this service tracks.
		if f.Stops == 0 && f.DurationMinutes > 20*60 {
			penalty += 0.20
		}
		// Three or more stops cannot fit in under two hours.
		if f.Stops >= 3 && f.DurationMinutes < 2*60 {
			penalty += 0.20
		}
		if f.Stops >= 1 && f.DurationMinutes < 60 {
			penalty += 0.15
		}
	}

	if f.HasStops() && len(f.LayoverAirports) > 0 && len(f.LayoverAirports) > f.Stops {
		penalty += 0.10
	}

	if f.Airline != "" && f.AirlineConfidence < 0.5 {
		penalty += 0.05
	}

	return penalty
}

// overallConfidence combines field and correlation confidences.
//
// field_avg is the mean of the non-zero field confidences. When a
// correlation signal exists it dominates: locality is worth more than any
// individual field match. The result is clamped to [0,1].
func overallConfidence(f *FlightData, penalty float64) float64 {
	sum := f.PriceConfidence
	n := 1.0
	if f.AirlineConfidence > 0 {
		sum += f.AirlineConfidence
		n++
	}
	if f.StopsConfidence > 0 {
		sum += f.StopsConfidence
		n++
	}
	if f.DurationConfidence > 0 {
		sum += f.DurationConfidence
		n++
	}
	fieldAvg := sum / n

	var overall float64
	if f.CorrelationConfidence > 0 {
		overall = 0.4*fieldAvg + 0.6*f.CorrelationConfidence - penalty
	} else {
		overall = fieldAvg - penalty
	}

	if overall < 0 {
		return 0
	}
	if overall > 1 {
		return 1
	}
	return overall
}
