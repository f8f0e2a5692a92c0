// Package worker runs the scheduled jobs: scrape sweeps, health checks,
// trip-plan searches, deal rating, award checks, and maintenance.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/pkg/logger"
	"github.com/jesposito/walkabout/pkg/notify"
	"github.com/jesposito/walkabout/queue"
	"github.com/jesposito/walkabout/scrape"
	"github.com/jesposito/walkabout/tripplan"
)

// Store is the slice of the database layer the jobs touch.
type Store interface {
	ListActiveSearchDefinitions(ctx context.Context) ([]*db.SearchDefinition, error)
	ListScrapeHealth(ctx context.Context) ([]db.ScrapeHealth, error)
	MarkStaleAlertSent(ctx context.Context, searchDefinitionID int64, at time.Time) error
	ListActiveTripPlans(ctx context.Context) ([]*db.TripPlan, error)
	GetTripPlan(ctx context.Context, id int64) (*db.TripPlan, error)
	ListTripPlanMatches(ctx context.Context, planID int64) ([]db.TripPlanMatch, error)
	UpsertTripPlanMatch(ctx context.Context, m *db.TripPlanMatch) (int64, error)
	ListRecentRelevantDeals(ctx context.Context, since time.Time) ([]db.Deal, error)
	PurgeExpiredMatches(ctx context.Context) (int64, error)
	TrimPriceHistory(ctx context.Context, olderThan time.Time) (int64, error)
	ListActiveTrackedAwardSearches(ctx context.Context) ([]db.TrackedAwardSearch, error)
	LatestAwardHash(ctx context.Context, trackedSearchID int64) (string, error)
}

// Scraper runs one scrape for a search definition.
type Scraper interface {
	ScrapeSearch(ctx context.Context, searchDefinitionID int64) (*scrape.Outcome, error)
}

// PlanSearcher runs one trip-plan search pass.
type PlanSearcher interface {
	Run(ctx context.Context, plan *db.TripPlan) (*tripplan.Summary, error)
}

// TripQueue is the redis-backed trip-search job queue.
type TripQueue interface {
	EnqueueTripSearch(ctx context.Context, tripPlanID int64) (string, error)
	Dequeue(ctx context.Context, block time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, job *queue.Job) error
	Nack(ctx context.Context, job *queue.Job) (bool, error)
}

// Notifier is the alert surface the jobs use.
type Notifier interface {
	NotifySystem(ctx context.Context, key, title, body string, priority notify.Priority) error
	NotifyTripMatch(ctx context.Context, plan *db.TripPlan, match *db.TripPlanMatch) error
}

// Worker owns the cron scheduler and the queue consumer.
type Worker struct {
	store    Store
	scraper  Scraper
	searcher PlanSearcher
	queue    TripQueue
	notifier Notifier
	conv     tripplan.Converter
	cfg      config.SchedulerConfig
	scrape   config.ScrapeConfig
	dataDir  string
	log      *logger.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
	done   chan struct{}

	// last seen award-observation hash per tracked search
	awardHashes map[int64]string

	now func() time.Time
}

func New(store Store, scraper Scraper, searcher PlanSearcher, q TripQueue,
	notifier Notifier, conv tripplan.Converter, cfg *config.Config,
	log *logger.Logger) (*Worker, error) {

	if log == nil {
		log = logger.Default()
	}
	loc := time.UTC
	if cfg.Scheduler.Timezone != "" {
		l, err := time.LoadLocation(cfg.Scheduler.Timezone)
		if err != nil {
			log.Warn("invalid scheduler timezone, using UTC", "timezone", cfg.Scheduler.Timezone)
		} else {
			loc = l
		}
	}

	w := &Worker{
		store:       store,
		scraper:     scraper,
		searcher:    searcher,
		queue:       q,
		notifier:    notifier,
		conv:        conv,
		cfg:         cfg.Scheduler,
		scrape:      cfg.Scrape,
		dataDir:     cfg.DataDir,
		log:         log,
		awardHashes: make(map[int64]string),
		now:         time.Now,
	}

	// A slow job blocks its own next firing instead of stacking up.
	w.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if err := w.register(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) register() error {
	ctx := context.Background()
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"morning_scrape", w.cfg.MorningScrape, w.runScrapeSweep},
		{"evening_scrape", w.cfg.EveningScrape, w.runScrapeSweep},
		{"health_check", w.cfg.HealthCheck, w.runHealthCheck},
		{"trip_plan_search", w.cfg.TripPlanSearch, w.enqueueTripSearches},
		{"deal_rating", w.cfg.DealRating, w.runDealRating},
		{"maintenance", w.cfg.Maintenance, w.runMaintenance},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		j := j
		_, err := w.cron.AddFunc(j.spec, func() {
			w.log.Info("job starting", "job", j.name)
			start := w.now()
			j.run(ctx)
			w.log.Info("job finished", "job", j.name, "duration", w.now().Sub(start).String())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Start launches the cron scheduler and, when a queue is wired, the
// trip-search consumer loop.
func (w *Worker) Start() {
	w.cron.Start()
	if w.queue != nil {
		ctx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		w.done = make(chan struct{})
		go w.consumeTripSearches(ctx)
	}
	w.log.Info("worker started", "timezone", w.cron.Location().String())
}

// Stop halts the scheduler, waits for running jobs, and stops the consumer.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	w.log.Info("worker stopped")
}
