// Package api is the HTTP shell: validation at the boundary, all logic in
// the core packages.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jesposito/walkabout/airports"
	"github.com/jesposito/walkabout/db"
)

// Store is the database surface the handlers use.
type Store interface {
	Ping(ctx context.Context) error

	ListActiveSearchDefinitions(ctx context.Context) ([]*db.SearchDefinition, error)
	GetSearchDefinition(ctx context.Context, id int64) (*db.SearchDefinition, error)
	CreateSearchDefinition(ctx context.Context, d *db.SearchDefinition) (int64, error)
	ReviseSearchDefinition(ctx context.Context, oldID int64, d *db.SearchDefinition) (int64, error)
	DeactivateSearchDefinition(ctx context.Context, id int64) error
	LatestPrices(ctx context.Context, searchDefinitionID int64, limit int) ([]db.FlightPrice, error)
	ListScrapeHealth(ctx context.Context) ([]db.ScrapeHealth, error)

	ListActiveTripPlans(ctx context.Context) ([]*db.TripPlan, error)
	GetTripPlan(ctx context.Context, id int64) (*db.TripPlan, error)
	CreateTripPlan(ctx context.Context, t *db.TripPlan) (int64, error)
	ListTripPlanMatches(ctx context.Context, planID int64) ([]db.TripPlanMatch, error)

	GetUserSettings(ctx context.Context) (*db.UserSettings, error)
	UpdateUserSettings(ctx context.Context, s *db.UserSettings) error
}

// Queue is the trip-search queue surface.
type Queue interface {
	EnqueueTripSearch(ctx context.Context, tripPlanID int64) (string, error)
	Pending(ctx context.Context) (int64, error)
}

// RegisterRoutes wires all endpoints onto the router.
func RegisterRoutes(router *gin.Engine, store Store, q Queue, catalog *airports.Catalog, started time.Time) {
	router.Use(gin.Recovery())

	router.GET("/health", Health(store, q, started))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/searches", ListSearches(store))
		v1.POST("/searches", CreateSearch(store))
		v1.GET("/searches/:id", GetSearch(store))
		v1.PUT("/searches/:id", ReviseSearch(store))
		v1.DELETE("/searches/:id", DeactivateSearch(store))
		v1.GET("/searches/:id/prices", GetSearchPrices(store))

		v1.GET("/trip-plans", ListTripPlans(store))
		v1.POST("/trip-plans", CreateTripPlan(store))
		v1.GET("/trip-plans/:id", GetTripPlan(store))
		v1.POST("/trip-plans/:id/search", TriggerTripSearch(store, q))

		v1.GET("/settings", GetSettings(store))
		v1.PUT("/settings", UpdateSettings(store))

		v1.GET("/airports/search", SearchAirports(catalog))
	}
}
