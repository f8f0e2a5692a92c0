package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/jesposito/walkabout/pkg/ai"
	"github.com/jesposito/walkabout/pkg/logger"
)

// PreferredAuto means no source preference; the default cascade order runs.
const PreferredAuto = "auto"

// Entry pairs a source with its retry policy in the cascade.
type Entry struct {
	Source Source
	Retry  RetryConfig
}

// FetchResult is the cascade outcome.
type FetchResult struct {
	*Result
	Source       string
	FallbackUsed bool
	Attempts     int

	// Recommendation is optional AI-generated advice; never used for
	// pricing decisions.
	Recommendation string

	// LastFailure carries the last classified browser failure when the
	// cascade is exhausted, so callers can record artifacts.
	LastFailure *Result
}

// Fetcher tries the configured sources in order and returns the first
// success.
type Fetcher struct {
	entries []Entry
	ai      *ai.Service
	log     *logger.Logger
}

// NewFetcher builds a fetcher over the given cascade order.
func NewFetcher(entries []Entry, aiSvc *ai.Service, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Default()
	}
	return &Fetcher{entries: entries, ai: aiSvc, log: log}
}

// Fetch runs the cascade. preferred moves the named source to the front;
// "auto" or an unknown name leaves the default order. Unavailable sources
// are skipped silently. Attempts counts every adapter try including
// retries.
func (f *Fetcher) Fetch(ctx context.Context, spec Spec, preferred string) (*FetchResult, error) {
	ordered := f.order(preferred)
	if len(ordered) == 0 {
		return nil, fmt.Errorf("no price sources available")
	}

	totalAttempts := 0
	var lastErr error
	var lastFailure *Result

	for i, entry := range ordered {
		result, attempts, err := FetchWithRetry(ctx, entry.Source, spec, entry.Retry)
		totalAttempts += attempts

		if err != nil {
			lastErr = err
			f.log.Warn("price source failed",
				"source", entry.Source.Name(), "attempts", attempts, "error", err)
			continue
		}
		if !result.Success {
			lastFailure = result
			lastErr = fmt.Errorf("%s scrape failed: %s", entry.Source.Name(), result.Status)
			continue
		}
		if len(result.Prices) == 0 {
			lastErr = fmt.Errorf("%s returned no prices", entry.Source.Name())
			continue
		}

		fr := &FetchResult{
			Result:       result,
			Source:       entry.Source.Name(),
			FallbackUsed: i > 0,
			Attempts:     totalAttempts,
		}
		f.enrich(ctx, spec, fr)
		return fr, nil
	}

	return &FetchResult{
		Attempts:    totalAttempts,
		LastFailure: lastFailure,
	}, fmt.Errorf("all price sources exhausted: %w", lastErr)
}

// order returns available sources with the preferred one first. A preferred
// source without credentials is treated as unavailable and skipped.
func (f *Fetcher) order(preferred string) []Entry {
	var ordered []Entry
	if preferred != "" && preferred != PreferredAuto {
		for _, e := range f.entries {
			if e.Source.Name() == preferred && e.Source.IsAvailable() {
				ordered = append(ordered, e)
			}
		}
	}
	for _, e := range f.entries {
		if !e.Source.IsAvailable() {
			continue
		}
		if len(ordered) > 0 && e.Source.Name() == ordered[0].Source.Name() {
			continue
		}
		ordered = append(ordered, e)
	}
	return ordered
}

// enrich attaches a short AI note about the cheapest option. Best-effort
// with a tight deadline; failures leave the result untouched.
func (f *Fetcher) enrich(ctx context.Context, spec Spec, fr *FetchResult) {
	if f.ai == nil || len(fr.Prices) == 0 {
		return
	}

	cheapest := fr.Prices[0]
	for _, p := range fr.Prices[1:] {
		if p.Amount < cheapest.Amount {
			cheapest = p
		}
	}

	aiCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(
		"Route %s-%s departing %s, cheapest fare %.0f %s on %s with %d stops. One sentence: is this worth booking now?",
		spec.Origin, spec.Destination, spec.DepartureDate.Format("2006-01-02"),
		cheapest.Amount, cheapest.Currency, cheapest.Airline, cheapest.Stops)
	text, err := f.ai.Complete(aiCtx, prompt,
		"You are a concise flight deal analyst. Answer in one sentence.", 80)
	if err != nil {
		f.log.Debug("ai enrichment skipped", "error", err)
		return
	}
	fr.Recommendation = text
}
