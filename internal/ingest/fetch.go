package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps a single HTTP response body (4 MB).
const maxBodyBytes = 4 << 20

// ErrFetch indicates an HTTP fetch failed or returned a non-200 status.
var ErrFetch = errors.New("fetch failed")

// Article is the readable body extracted from a web page.
type Article struct {
	Title string
	Text  string
}

// Fetcher retrieves feeds and article bodies over HTTP. All requests share
// one rate limiter so ingesting many sources stays polite.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewFetcher creates a fetcher. rps bounds outbound requests per second;
// timeout bounds each request. If logger is nil, slog.Default() is used.
func NewFetcher(rps float64, timeout time.Duration, logger *slog.Logger) (*Fetcher, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("requests per second must be positive, got %v", rps)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}, nil
}

// FetchFeed downloads and parses an RSS or Atom feed.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]Item, error) {
	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	items, err := ParseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", feedURL, err)
	}
	return items, nil
}

// FetchArticle downloads a page and extracts its readable body. Pages whose
// main content cannot be isolated fall back to the bare text of the
// document body.
func (f *Fetcher) FetchArticle(ctx context.Context, pageURL string) (Article, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return Article{}, err
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("parsing URL %q: %w", pageURL, err)
	}

	art, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err == nil && strings.TrimSpace(art.TextContent) != "" {
		return Article{Title: art.Title, Text: strings.TrimSpace(art.TextContent)}, nil
	}

	// Readability found nothing usable: take the raw body text instead.
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Article{}, fmt.Errorf("parsing HTML of %q: %w", pageURL, err)
	}
	doc.Find("script, style, nav, header, footer").Remove()
	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		return Article{}, fmt.Errorf("%w: no readable content at %q", ErrFetch, pageURL)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return Article{Title: title, Text: text}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %q: %w", ErrFetch, rawURL, err)
	}
	req.Header.Set("User-Agent", "coach/1.0")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %q returned %d", ErrFetch, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %q: %w", ErrFetch, rawURL, err)
	}

	f.logger.DebugContext(ctx, "fetched",
		slog.String("url", rawURL),
		slog.Int("bytes", len(body)),
		slog.Duration("elapsed", time.Since(start)))
	return body, nil
}
