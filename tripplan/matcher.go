// Package tripplan expands flexible trip plans into concrete flight
// searches and scores deals against plans.
package tripplan

import (
	"context"
	"math"
	"strings"

	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/macros"
)

// Converter converts an amount between currencies. Implemented by the
// currency service; faked in tests.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// MatchResult is the outcome of scoring a deal against a plan.
type MatchResult struct {
	Score            float64
	OriginMatch      bool
	DestinationMatch bool
	PriceInBudgetCCY float64
}

// ScoreDeal scores a parsed deal against a trip plan on a 0..100 scale.
// Origin and destination must both match for any non-zero score; a price
// more than 20% over budget is a hard reject.
func ScoreDeal(ctx context.Context, deal *db.Deal, plan *db.TripPlan, conv Converter) MatchResult {
	var result MatchResult

	if !deal.Origin.Valid || !deal.Destination.Valid || !deal.Price.Valid {
		return result
	}
	origin := strings.ToUpper(deal.Origin.String)
	destination := strings.ToUpper(deal.Destination.String)

	originScore, originMatch := scoreOrigin(origin, plan)
	destScore, destMatch := scoreDestination(destination, plan)
	result.OriginMatch = originMatch
	result.DestinationMatch = destMatch
	if !originMatch || !destMatch {
		return result
	}

	score := originScore + destScore

	price := deal.Price.Float64
	if deal.Currency.Valid && deal.Currency.String != plan.BudgetCurrency && conv != nil {
		if converted, err := conv.Convert(ctx, price, deal.Currency.String, plan.BudgetCurrency); err == nil {
			price = converted
		}
	}
	result.PriceInBudgetCCY = price

	budgetScore, rejected := scoreBudget(price, plan.BudgetMax)
	if rejected {
		return MatchResult{OriginMatch: originMatch, DestinationMatch: destMatch, PriceInBudgetCCY: price}
	}
	score += budgetScore

	if deal.CabinClass.Valid {
		for _, cabin := range plan.CabinClasses {
			if strings.EqualFold(cabin, deal.CabinClass.String) {
				score += 10
				break
			}
		}
	}

	result.Score = math.Max(0, math.Min(100, score))
	return result
}

// scoreOrigin: exact 30, similar by group 15, unconstrained plan 10,
// otherwise a hard reject.
func scoreOrigin(origin string, plan *db.TripPlan) (float64, bool) {
	if len(plan.Origins) == 0 {
		return 10, true
	}
	for _, o := range plan.Origins {
		if strings.EqualFold(o, origin) {
			return 30, true
		}
	}
	for _, o := range plan.Origins {
		if macros.SameGroup(o, origin) {
			return 15, true
		}
	}
	return 0, false
}

// scoreDestination: exact 30, destination-type tag 25, similar by group 20,
// unconstrained plan 10, otherwise a hard reject.
func scoreDestination(destination string, plan *db.TripPlan) (float64, bool) {
	if len(plan.Destinations) == 0 && len(plan.DestinationTypes) == 0 {
		return 10, true
	}
	for _, d := range plan.Destinations {
		if strings.EqualFold(d, destination) {
			return 30, true
		}
	}
	for _, tag := range plan.DestinationTypes {
		for _, code := range macros.ExpandDestinationType(tag) {
			if code == destination {
				return 25, true
			}
		}
	}
	for _, d := range plan.Destinations {
		if macros.SameGroup(d, destination) {
			return 20, true
		}
	}
	return 0, false
}

// scoreBudget: under budget earns 20 plus up to 20 scaled by the savings
// fraction; up to 20% over loses up to 30; beyond that the deal is rejected.
func scoreBudget(price, budget float64) (float64, bool) {
	if budget <= 0 {
		return 0, false
	}
	if price <= budget {
		savings := (budget - price) / budget
		return 20 + 20*savings, false
	}
	overPct := (price - budget) / budget * 100
	if overPct > 20 {
		return 0, true
	}
	return -30 * (overPct / 20), false
}
