package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/chrome"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jesposito/walkabout/config"
	"github.com/jesposito/walkabout/db"
	"github.com/jesposito/walkabout/extract"
	"github.com/jesposito/walkabout/pkg/flighturl"
	"github.com/jesposito/walkabout/pkg/logger"
)

const browserTag = "browser"

// captchaMarkers and blockMarkers are page-text fragments that classify a
// failed scrape before extraction is attempted.
var captchaMarkers = []string{
	"unusual traffic", "recaptcha", "g-recaptcha", "captcha-form",
	"verify you're not a robot",
}

var blockMarkers = []string{
	"access denied", "has been blocked", "error 403", "rate limited",
}

// priceWaitSelectors is the ranked list of selectors whose appearance means
// results have rendered. Checked in order until the navigation deadline.
var priceWaitSelectors = []string{
	"ul.Rk10dc",
	"div[jsname='IWWDBc']",
	"li[role='listitem']",
	"span[aria-label*='dollars']",
}

// Browser scrapes Google Flights with a headless browser. A fresh browser
// and context are constructed per scrape and always torn down; reuse across
// scrapes cascades failures.
type Browser struct {
	cfg       config.BrowserConfig
	dataDir   string
	extractor *extract.Extractor
	log       *logger.Logger
}

func NewBrowser(cfg config.BrowserConfig, dataDir string, ex *extract.Extractor, log *logger.Logger) *Browser {
	if log == nil {
		log = logger.Default()
	}
	if ex == nil {
		ex = extract.New(log)
	}
	return &Browser{cfg: cfg, dataDir: dataDir, extractor: ex, log: log}
}

func (b *Browser) Name() string { return browserTag }

func (b *Browser) IsAvailable() bool { return b.cfg.Enabled }

// Fetch renders the flight results page and extracts prices. Classified
// failures come back as a non-success Result with a nil error so the health
// tracker records the reason; only setup errors are returned as errors.
func (b *Browser) Fetch(ctx context.Context, spec Spec) (*Result, error) {
	if !b.IsAvailable() {
		return nil, ErrUnavailable
	}

	pageURL := b.buildURL(spec)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("lang", b.cfg.Locale),
		chromedp.UserAgent(b.cfg.UserAgent),
		chromedp.WindowSize(b.cfg.ViewportWidth, b.cfg.ViewportHeight),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	navCtx, cancelNav := context.WithTimeout(browserCtx, b.cfg.NavigationTimeout)
	defer cancelNav()

	if err := chromedp.Run(navCtx, b.importCookies(), chromedp.Navigate(pageURL)); err != nil {
		if navCtx.Err() != nil {
			return b.failure(browserCtx, spec, db.FailureTimeout, "navigation timed out"), nil
		}
		return b.failure(browserCtx, spec, db.FailureNetworkError, err.Error()), nil
	}

	rendered := b.waitForResults(navCtx)

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return b.failure(browserCtx, spec, db.FailureUnknown, "failed to read page"), nil
	}

	lower := strings.ToLower(html)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return b.failure(browserCtx, spec, db.FailureCaptcha, "captcha marker: "+marker), nil
		}
	}
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return b.failure(browserCtx, spec, db.FailureBlocked, "block marker: "+marker), nil
		}
	}
	if !rendered {
		return b.failure(browserCtx, spec, db.FailureTimeout, "no price selector appeared"), nil
	}

	flights, err := b.extractor.Extract(html)
	if err != nil {
		return b.failure(browserCtx, spec, db.FailureUnknown, err.Error()), nil
	}
	if len(flights) == 0 {
		return b.failure(browserCtx, spec, db.FailureLayoutChange, "no flights extracted"), nil
	}

	result := &Result{Success: true, SourceTag: browserTag}
	for _, f := range flights {
		result.Prices = append(result.Prices, Price{
			Amount:          f.Price,
			Currency:        spec.Currency,
			Airline:         f.Airline,
			Stops:           f.Stops,
			DurationMinutes: f.DurationMinutes,
			LayoverAirports: f.LayoverAirports,
			BookingURL:      pageURL,
			SourceTag:       browserTag,
			Confidence:      f.OverallConfidence,
		})
	}
	b.log.Debug("browser scrape complete",
		"origin", spec.Origin, "destination", spec.Destination,
		"flights", len(flights))
	return result, nil
}

func (b *Browser) buildURL(spec Spec) string {
	p := flighturl.Params{
		Origin:        spec.Origin,
		Destination:   spec.Destination,
		DepartureDate: spec.DepartureDate,
		Adults:        spec.Adults,
		Children:      spec.Children,
		InfantsInSeat: spec.InfantsInSeat,
		InfantsOnLap:  spec.InfantsOnLap,
		CabinClass:    spec.CabinClass,
		Stops:         spec.StopsName(),
		Currency:      spec.Currency,
		CountryOfSale: CountryOfSale(spec.Origin),
	}
	if spec.ReturnDate != nil {
		p.ReturnDate = *spec.ReturnDate
	}
	return flighturl.Build(p)
}

// importCookies loads Google cookies from a local browser profile when one
// exists. Best-effort; a server deployment has none.
func (b *Browser) importCookies() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		cookies := kooky.ReadCookies(kooky.Valid, kooky.DomainContains("google"))
		for _, c := range cookies {
			expiry := cdp.TimeSinceEpoch(c.Expires)
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HttpOnly).
				WithExpires(&expiry).
				Do(ctx)
			if err != nil {
				return nil
			}
		}
		return nil
	})
}

// waitForResults polls for the ranked result selectors until the navigation
// deadline. Returns false on timeout.
func (b *Browser) waitForResults(ctx context.Context) bool {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, sel := range priceWaitSelectors {
			var found bool
			script := fmt.Sprintf("document.querySelector(%q) !== null", sel)
			if err := chromedp.Run(ctx, chromedp.Evaluate(script, &found)); err != nil {
				return false
			}
			if found {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// failure writes screenshot and HTML artifacts, then returns the classified
// result. Artifact-write failures never mask the original outcome.
func (b *Browser) failure(ctx context.Context, spec Spec, reason, message string) *Result {
	result := &Result{
		Success:   false,
		SourceTag: browserTag,
		Status:    reason,
	}

	stamp := time.Now().Format("20060102_150405")
	base := fmt.Sprintf("%d_%s_%s", spec.SearchDefinitionID, stamp, reason)
	shotDir := filepath.Join(b.dataDir, "screenshots")
	if err := os.MkdirAll(shotDir, 0o755); err == nil {
		var png []byte
		var html string
		if err := chromedp.Run(ctx,
			chromedp.CaptureScreenshot(&png),
			chromedp.OuterHTML("html", &html),
		); err == nil {
			shotPath := filepath.Join(shotDir, base+".png")
			if err := os.WriteFile(shotPath, png, 0o644); err == nil {
				result.ScreenshotPath = shotPath
			}
			htmlPath := filepath.Join(shotDir, base+".html")
			if err := os.WriteFile(htmlPath, []byte(html), 0o644); err == nil {
				result.HTMLPath = htmlPath
			}
		}
	}

	b.log.Warn("browser scrape failed",
		"search_definition_id", spec.SearchDefinitionID,
		"reason", reason, "message", message,
		"screenshot", result.ScreenshotPath)
	return result
}
