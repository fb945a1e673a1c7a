package colly_fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/utils"
)

// Fetcher loads server-rendered result pages over plain HTTP.
type Fetcher struct {
	base   *colly.Collector
	agents *utils.UserAgents
	logger *slog.Logger
}

// NewFetcher creates a static page fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration, agents *utils.UserAgents, logger *slog.Logger) (repository.PageFetcher, error) {
	if agents == nil {
		agents = utils.NewUserAgents()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(timeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		RandomDelay: time.Second,
	}); err != nil {
		return nil, err
	}

	return &Fetcher{base: c, agents: agents, logger: logger}, nil
}

// FetchPage returns the body of url. Non-2xx responses and transport failures
// are reported as navigation errors, timeouts as ErrPageTimeout.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := f.base.Clone()
	var (
		body     string
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.agents.Next())
		r.Headers.Set("Accept-Language", "en-GB,en;q=0.9")
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = classify(url, r.StatusCode, err)
	})

	start := time.Now()
	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = classify(url, 0, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fetchErr != nil {
		return "", fetchErr
	}

	f.logger.Info("Fetched listing page", "url", url, "bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

func classify(url string, status int, err error) error {
	var netErr net.Error
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout,
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %s: %w", repository.ErrPageTimeout, url, err)
	case status != 0:
		return fmt.Errorf("%w: %s: status %d: %w", repository.ErrNavigationFailed, url, status, err)
	}
	return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
}
