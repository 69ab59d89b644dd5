// Package scraper fetches the vendor menu page and extracts its raw
// table rows. Retry policy lives here; the pipeline never retries.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"menuwatch/config"
	"menuwatch/models"
)

// Fetcher retrieves the menu page and returns its table rows in
// document order.
type Fetcher struct {
	cfg       *config.Config
	host      string
	transport http.RoundTripper
	metrics   *Metrics
}

// NewFetcher builds a fetcher for the configured source URL.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("source url must include a host")
	}

	return &Fetcher{
		cfg:  cfg,
		host: parsed.Host,
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		metrics: metrics,
	}, nil
}

// SetTransport overrides the HTTP transport. Tests use it to serve
// canned pages.
func (f *Fetcher) SetTransport(rt http.RoundTripper) {
	f.transport = rt
}

// Fetch retrieves the page and extracts raw rows, retrying transient
// failures with exponential backoff. It returns a *FetchError once the
// attempts are exhausted or the failure is not retryable.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.RawRow, error) {
	var lastErr *FetchError
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			delay := f.backoff(attempt)
			slog.Debug("retrying fetch",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		start := time.Now()
		rows, ferr := f.fetchOnce()
		f.metrics.ObserveFetchDuration(time.Since(start))
		if ferr == nil {
			f.metrics.IncFetch("success")
			return rows, nil
		}

		lastErr = ferr
		f.metrics.IncFetch("error")
		f.metrics.IncFetchError(ferr.Kind)
		slog.Warn("fetch attempt failed",
			slog.String("url", f.cfg.SourceURL),
			slog.String("kind", ferr.Kind),
			slog.Any("error", ferr.Err),
		)
		if !retryable(ferr.Kind) {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce() ([]models.RawRow, *FetchError) {
	collector := colly.NewCollector(
		colly.AllowedDomains(f.host),
		colly.UserAgent(f.cfg.UserAgent),
	)
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)

	// the menu table may be repeated in the markup; rows are deduped
	// through a bounded cache so a repeat never double-counts stock
	seen, _ := lru.New[string, struct{}](f.cfg.DedupeMaxSize)

	var (
		rows    []models.RawRow
		reqErr  error
		reqCode int
	)

	collector.OnHTML("figure table tr", func(e *colly.HTMLElement) {
		row := extractRow(e)
		if len(row.Cells) == 0 {
			return
		}
		key := strings.Join(row.Cells, "\x1f") + "\x1f" + row.Link
		if _, dup := seen.Get(key); dup {
			return
		}
		seen.Add(key, struct{}{})
		rows = append(rows, row)
	})

	collector.OnError(func(r *colly.Response, err error) {
		reqErr = err
		if r != nil {
			reqCode = r.StatusCode
		}
	})

	if err := collector.Visit(f.cfg.SourceURL); err != nil && reqErr == nil {
		reqErr = err
	}
	collector.Wait()

	if reqErr != nil {
		return nil, &FetchError{
			URL:  f.cfg.SourceURL,
			Kind: classifyKind(reqErr, reqCode),
			Err:  reqErr,
		}
	}
	if len(rows) == 0 {
		return nil, &FetchError{
			URL:  f.cfg.SourceURL,
			Kind: kindParse,
			Err:  fmt.Errorf("no menu table rows found"),
		}
	}
	return rows, nil
}

// extractRow collects the cell texts of one table row and the product
// link from the name cell, if any.
func extractRow(e *colly.HTMLElement) models.RawRow {
	var row models.RawRow
	e.ForEach("td", func(i int, td *colly.HTMLElement) {
		row.Cells = append(row.Cells, strings.Join(strings.Fields(td.Text), " "))
		if i == 0 {
			if href := td.ChildAttr("a", "href"); href != "" {
				row.Link = td.Request.AbsoluteURL(href)
			}
		}
	})
	return row
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
