// Package collyfetcher implements analyzer.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/page-analyzer/internal/analyzer"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultUserAgent    = "page-analyzer/1.0"
	defaultMaxBodyBytes = 5 * 1024 * 1024
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Fetcher implements analyzer.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. Zero config values fall back to defaults.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(cfg.MaxBodyBytes),
		colly.UserAgent(cfg.UserAgent),
	)
	transport := newHTTPTransport(cfg.Timeout)
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch issues one GET to address, following redirects. Any received response,
// including 4xx and 5xx, is a successful fetch; transport failures return an
// *analyzer.UnreachableError.
func (f *Fetcher) Fetch(ctx context.Context, address string) (analyzer.FetchResult, error) {
	var (
		result   analyzer.FetchResult
		fetchErr error
	)
	collector := f.buildCollector(&result, &fetchErr)

	if err := f.runCollector(ctx, collector, address, &fetchErr); err != nil {
		return analyzer.FetchResult{}, &analyzer.UnreachableError{
			Address: address,
			Reason:  describeNetError(err),
			Err:     err,
		}
	}
	if result.StatusCode == 0 {
		return analyzer.FetchResult{}, &analyzer.UnreachableError{
			Address: address,
			Reason:  "no response received",
		}
	}
	return result, nil
}

func (f *Fetcher) buildCollector(result *analyzer.FetchResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	f.configureCollectorHooks(collector, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	result *analyzer.FetchResult,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = *r.Headers
		}
		*result = analyzer.FetchResult{
			StatusCode: r.StatusCode,
			SEO:        ExtractSEO(r.Body, bodyContentType(headers)),
			ServerDate: parseDateHeader(headers),
		}
		if r.Request != nil && r.Request.URL != nil {
			result.FinalURL = r.Request.URL.String()
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// bodyContentType returns the content type to use for charset detection.
// Colly already transcodes bodies whose Content-Type names a charset.
func bodyContentType(h http.Header) string {
	contentType := h.Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "charset") {
		return "text/html; charset=utf-8"
	}
	return contentType
}

func parseDateHeader(h http.Header) time.Time {
	raw := h.Get("Date")
	if raw == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func newHTTPTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
