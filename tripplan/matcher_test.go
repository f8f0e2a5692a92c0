package tripplan

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jesposito/walkabout/db"
)

type fixedConverter struct {
	rate float64
}

func (f fixedConverter) Convert(_ context.Context, amount float64, _, _ string) (float64, error) {
	return amount * f.rate, nil
}

func deal(origin, destination string, price float64, currency string) *db.Deal {
	return &db.Deal{
		Origin:      sql.NullString{String: origin, Valid: true},
		Destination: sql.NullString{String: destination, Valid: true},
		Price:       sql.NullFloat64{Float64: price, Valid: true},
		Currency:    sql.NullString{String: currency, Valid: true},
		CabinClass:  sql.NullString{String: "economy", Valid: true},
	}
}

func basePlan() *db.TripPlan {
	return &db.TripPlan{
		ID:             1,
		Origins:        []string{"AKL"},
		Destinations:   []string{"NRT"},
		BudgetMax:      1500,
		BudgetCurrency: "NZD",
		CabinClasses:   []string{"economy"},
	}
}

func TestScoreExactMatchUnderBudget(t *testing.T) {
	r := ScoreDeal(context.Background(), deal("AKL", "NRT", 750, "NZD"), basePlan(), nil)
	assert.True(t, r.OriginMatch)
	assert.True(t, r.DestinationMatch)
	// 30 origin + 30 destination + (20 + 20*0.5) budget + 10 cabin = 100.
	assert.InDelta(t, 100, r.Score, 1e-9)
}

func TestScoreRequiresBothMatches(t *testing.T) {
	// Wrong origin: zero regardless of a perfect destination and price.
	r := ScoreDeal(context.Background(), deal("LAX", "NRT", 500, "NZD"), basePlan(), nil)
	assert.False(t, r.OriginMatch)
	assert.Zero(t, r.Score)

	// Wrong destination.
	r = ScoreDeal(context.Background(), deal("AKL", "JNB", 500, "NZD"), basePlan(), nil)
	assert.False(t, r.DestinationMatch)
	assert.Zero(t, r.Score)
}

func TestScoreSimilarDestinationByGroup(t *testing.T) {
	// HND shares the japan group with NRT: similar, not exact.
	r := ScoreDeal(context.Background(), deal("AKL", "HND", 1500, "NZD"), basePlan(), nil)
	assert.True(t, r.DestinationMatch)
	// 30 + 20 + (20 + 0 savings) + 10 cabin = 80.
	assert.InDelta(t, 80, r.Score, 1e-9)
}

func TestScoreDestinationTypeTag(t *testing.T) {
	plan := basePlan()
	plan.Destinations = nil
	plan.DestinationTypes = []string{"japan"}

	r := ScoreDeal(context.Background(), deal("AKL", "KIX", 1500, "NZD"), plan, nil)
	assert.True(t, r.DestinationMatch)
	// 30 + 25 tag + 20 budget + 10 cabin = 85.
	assert.InDelta(t, 85, r.Score, 1e-9)
}

func TestScoreUnconstrainedPlan(t *testing.T) {
	plan := basePlan()
	plan.Origins = nil
	plan.Destinations = nil
	plan.CabinClasses = nil

	r := ScoreDeal(context.Background(), deal("WLG", "JNB", 1500, "NZD"), plan, nil)
	assert.True(t, r.OriginMatch)
	assert.True(t, r.DestinationMatch)
	// 10 + 10 + 20 budget = 40.
	assert.InDelta(t, 40, r.Score, 1e-9)
}

func TestScoreOverBudgetGraded(t *testing.T) {
	// 10% over budget: -15 out of the -30 band.
	r := ScoreDeal(context.Background(), deal("AKL", "NRT", 1650, "NZD"), basePlan(), nil)
	// 30 + 30 - 15 + 10 = 55.
	assert.InDelta(t, 55, r.Score, 1e-9)
}

func TestScoreHardRejectOver20Percent(t *testing.T) {
	r := ScoreDeal(context.Background(), deal("AKL", "NRT", 1900, "NZD"), basePlan(), nil)
	assert.True(t, r.OriginMatch)
	assert.True(t, r.DestinationMatch)
	assert.Zero(t, r.Score, "more than 20% over budget is a hard reject")
}

func TestScoreConvertsCurrency(t *testing.T) {
	// 600 USD at rate 1.6 = 960 NZD, well under the 1500 budget.
	r := ScoreDeal(context.Background(), deal("AKL", "NRT", 600, "USD"), basePlan(), fixedConverter{rate: 1.6})
	assert.InDelta(t, 960, r.PriceInBudgetCCY, 1e-9)
	assert.Greater(t, r.Score, 0.0)
}

func TestScoreUnparsedDealRejected(t *testing.T) {
	d := &db.Deal{RawTitle: "mystery deal"}
	r := ScoreDeal(context.Background(), d, basePlan(), nil)
	assert.Zero(t, r.Score)
}
