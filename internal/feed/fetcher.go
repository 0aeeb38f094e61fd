package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedhive/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/mmcdole/gofeed"
)

const (
	maxFetchRetries        = 2
	initialRetryInterval   = 500 * time.Millisecond
	defaultPerFetchTimeout = 30 * time.Second
)

// Parser is the feed-parsing collaborator consumed by the sync engine: it
// retrieves a source URL and yields a normalized article list.
type Parser interface {
	Parse(ctx context.Context, sourceURL string) (*domain.ParsedFeed, error)
}

// Fetcher retrieves and parses remote feeds via gofeed. Transient network
// failures are retried with exponential backoff; every call carries its own
// timeout so a stuck source fails only itself.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	log     *slog.Logger
}

func NewFetcher(timeout time.Duration, log *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultPerFetchTimeout
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}

	return &Fetcher{
		parser:  parser,
		timeout: timeout,
		log:     log,
	}
}

func (f *Fetcher) Parse(ctx context.Context, sourceURL string) (*domain.ParsedFeed, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, fmt.Errorf("empty source URL: %w", domain.ErrInvalidSource)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var parsed *gofeed.Feed

	operation := func() error {
		var parseErr error
		parsed, parseErr = f.parser.ParseURLWithContext(sourceURL, ctx)
		if parseErr == nil {
			return nil
		}

		classified := classify(parseErr)
		if errors.Is(classified, domain.ErrParse) {
			// Malformed content will not fix itself within this run.
			return backoff.Permanent(classified)
		}

		return classified
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(initialRetryInterval),
		), maxFetchRetries),
		ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("parse feed (URL = %s): %w", sourceURL, err)
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		f.log.WarnContext(ctx, "Empty feed title",
			"sourceURL", sourceURL,
			"fallbackTitle", sourceURL)

		title = sourceURL
	}

	result := &domain.ParsedFeed{
		Title:    title,
		SiteURL:  strings.TrimSpace(parsed.Link),
		Articles: make([]domain.RawArticle, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		result.Articles = append(result.Articles, domain.RawArticle{
			RemoteKey:   remoteKey(item),
			Title:       strings.TrimSpace(item.Title),
			Content:     itemContent(item),
			Link:        strings.TrimSpace(item.Link),
			PublishedAt: itemPublished(item),
		})
	}

	return result, nil
}

// remoteKey picks the stable per-item identifier used for deduplication:
// GUID when the source supplies one, the item link otherwise.
func remoteKey(item *gofeed.Item) string {
	if key := strings.TrimSpace(item.GUID); key != "" {
		return key
	}
	if key := strings.TrimSpace(item.Link); key != "" {
		return key
	}

	return strings.TrimSpace(item.Title)
}

func itemContent(item *gofeed.Item) string {
	if content := strings.TrimSpace(item.Content); content != "" {
		return content
	}

	return strings.TrimSpace(item.Description)
}

func itemPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}

	return time.Time{}
}

// classify maps a gofeed error onto the fetch/parse taxonomy.
func classify(err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("%s: %w", httpErr.Error(), domain.ErrFetchFailed)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Error(), domain.ErrFetchFailed)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", err.Error(), domain.ErrFetchFailed)
	}

	return fmt.Errorf("%s: %w", err.Error(), domain.ErrParse)
}
