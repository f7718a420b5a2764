package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"

	"periscrape/config"
	"periscrape/models"
)

// Fetcher issues single page requests with bounded retry and
// exponential backoff. The underlying client is shared by every
// category walk, so its transport bounds the total in-flight
// connections for the whole run.
type Fetcher struct {
	cfg     *config.Config
	client  *resty.Client
	metrics *Metrics
}

// NewFetcher builds a fetcher with a connection pool sized to the
// configured concurrency and a per-attempt request timeout.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeaders(map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
	})
	client.SetTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxConnsPerHost:     cfg.ConcurrentRequests,
		MaxIdleConnsPerHost: cfg.ConcurrentRequests,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})
	return &Fetcher{cfg: cfg, client: client, metrics: metrics}
}

// Fetch requests pageURL up to MaxRetries+1 times. Rate limiting,
// non-200 statuses, and transport failures all consume the same
// attempt counter. Exhaustion appends exactly one description to errs.
// The returned outcome is always Success or Exhausted.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, errs *models.ErrorList) models.FetchOutcome {
	var lastStatus int
	var lastFailure string

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.metrics.IncRetries()
		}

		start := time.Now()
		f.metrics.IncRequest("started")
		resp, err := f.client.R().
			SetContext(ctx).
			SetHeader("User-Agent", browser.Random()).
			Get(pageURL)
		f.metrics.ObserveDuration(time.Since(start))

		var classified error
		if err != nil {
			classified = classifyError(err, 0)
		} else {
			lastStatus = resp.StatusCode()
			if lastStatus == http.StatusOK {
				f.metrics.IncRequest("success")
				slog.Debug("fetched page", slog.String("url", pageURL), slog.Int("attempt", attempt+1))
				return models.FetchOutcome{
					Kind:   models.OutcomeSuccess,
					Body:   string(resp.Body()),
					Status: lastStatus,
				}
			}
			classified = classifyError(nil, lastStatus)
		}

		label := errorTypeLabel(classified)
		f.metrics.IncError(label)
		lastFailure = fmt.Sprintf("attempt %d failed for %s: %v", attempt+1, pageURL, classified)
		slog.Warn("fetch attempt failed",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt+1),
			slog.String("category", label),
			slog.Any("error", classified),
		)

		// Rate limiting backs off even on the final attempt; other
		// failures only sleep when another attempt will follow.
		if label == "rate_limited" || attempt < f.cfg.MaxRetries {
			if sleepErr := sleepContext(ctx, f.backoff(attempt)); sleepErr != nil {
				lastFailure = fmt.Sprintf("fetch aborted for %s: %v", pageURL, sleepErr)
				break
			}
		}
	}

	f.metrics.IncRequest("exhausted")
	if errs != nil {
		errs.Append(lastFailure)
	}
	slog.Error("fetch attempts exhausted",
		slog.String("url", pageURL),
		slog.Int("max_retries", f.cfg.MaxRetries),
		slog.String("reason", lastFailure),
	)
	return models.FetchOutcome{
		Kind:   models.OutcomeExhausted,
		Status: lastStatus,
		Reason: lastFailure,
	}
}

// backoff returns base * 2^attempt, capped at BackoffMax.
func (f *Fetcher) backoff(attempt int) time.Duration {
	base := f.cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	delay := base * time.Duration(1<<attempt)
	if max := f.cfg.BackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// sleepContext pauses for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
