package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jesposito/walkabout/airports"
	"github.com/jesposito/walkabout/api"
	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/extract"
	"github.com/jesposito/walkabout/pkg/ai"
	"github.com/jesposito/walkabout/pkg/currency"
	"github.com/jesposito/walkabout/pkg/logger"
	"github.com/jesposito/walkabout/pkg/notify"
	"github.com/jesposito/walkabout/queue"
	"github.com/jesposito/walkabout/scrape"
	"github.com/jesposito/walkabout/sources"
	"github.com/jesposito/walkabout/tripplan"
	"github.com/jesposito/walkabout/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error(err, "failed to load configuration")
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	log := logger.Default()

	store, err := db.NewPostgres(cfg.PostgresConfig)
	if err != nil {
		log.Fatal(err, "failed to connect to postgres")
	}
	defer store.Close()

	if cfg.InitSchema {
		if err := store.InitSchema(cfg.UseTimescale); err != nil {
			log.Fatal(err, "failed to initialize schema")
		}
	}

	catalog, err := airports.Load(filepath.Join(cfg.DataDir, "airports.csv"))
	if err != nil {
		log.Fatal(err, "failed to load airport catalog")
	}
	log.Info("airport catalog loaded", "airports", catalog.Count())

	// Sources cascade: APIs first, the browser as the last resort. Adapters
	// without credentials report themselves unavailable and are skipped.
	extractor := extract.New(log)
	aiSvc := ai.NewService(ai.Config{
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		Model:    cfg.AI.Model,
		CacheTTL: cfg.AI.CacheTTL,
	})
	entries := []sources.Entry{
		{Source: sources.NewSerpAPI(cfg.SerpAPIConfig, log), Retry: sources.DefaultRetry},
		{Source: sources.NewSkyscanner(cfg.Skyscanner, log), Retry: sources.DefaultRetry},
		{Source: sources.NewAmadeus(cfg.Amadeus, log), Retry: sources.DefaultRetry},
	}
	if cfg.Browser.Enabled {
		entries = append(entries, sources.Entry{
			Source: sources.NewBrowser(cfg.Browser, cfg.DataDir, extractor, log),
			Retry:  sources.RetryConfig{MaxRetries: 0},
		})
	}
	fetcher := sources.NewFetcher(entries, aiSvc, log)

	conv := currency.NewService(currency.Config{
		RateURL: cfg.Currency.RateURL,
		TTL:     cfg.Currency.TTL,
	})

	notifier := notify.New(store, log)
	scrapeSvc := scrape.NewService(store, fetcher, notifier, cfg.Scrape, cfg.Deal, log)
	searcher := tripplan.NewSearcher(store, fetcher, conv, catalog, cfg.TripPlan, log)

	var q *queue.RedisQueue
	if cfg.WorkerEnabled || cfg.APIEnabled {
		q, err = queue.NewRedisQueue(cfg.RedisConfig)
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}
		defer q.Close()
	}

	if cfg.WorkerEnabled {
		w, err := worker.New(store, scrapeSvc, searcher, q, notifier, conv, cfg, log)
		if err != nil {
			log.Fatal(err, "failed to build worker")
		}
		w.Start()
		defer w.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.APIEnabled {
		log.Info("api disabled, running worker only")
		<-ctx.Done()
		return
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.RegisterRoutes(router, store, q, catalog, time.Now())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "http shutdown failed")
	}
}
