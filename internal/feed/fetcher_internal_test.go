package feed

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"feedhive/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

func TestRemoteKeyFallbackChain(t *testing.T) {
	item := &gofeed.Item{
		GUID:  " guid-1 ",
		Link:  "https://example.com/a",
		Title: "Title",
	}

	if key := remoteKey(item); key != "guid-1" {
		t.Fatalf("expected GUID to win, got %q", key)
	}

	item.GUID = ""
	if key := remoteKey(item); key != "https://example.com/a" {
		t.Fatalf("expected link fallback, got %q", key)
	}

	item.Link = "  "
	if key := remoteKey(item); key != "Title" {
		t.Fatalf("expected title fallback, got %q", key)
	}
}

func TestItemContentPrefersFullContent(t *testing.T) {
	item := &gofeed.Item{
		Content:     "full body",
		Description: "summary",
	}

	if got := itemContent(item); got != "full body" {
		t.Fatalf("unexpected content: %q", got)
	}

	item.Content = " "
	if got := itemContent(item); got != "summary" {
		t.Fatalf("expected description fallback, got %q", got)
	}
}

func TestItemPublishedFallsBackToUpdated(t *testing.T) {
	published := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	updated := published.Add(time.Hour)

	item := &gofeed.Item{PublishedParsed: &published, UpdatedParsed: &updated}
	if got := itemPublished(item); !got.Equal(published) {
		t.Fatalf("expected published time, got %v", got)
	}

	item.PublishedParsed = nil
	if got := itemPublished(item); !got.Equal(updated) {
		t.Fatalf("expected updated fallback, got %v", got)
	}

	item.UpdatedParsed = nil
	if got := itemPublished(item); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}

func TestClassifySeparatesFetchFromParse(t *testing.T) {
	httpErr := gofeed.HTTPError{StatusCode: 503, Status: "503 Service Unavailable"}
	if !errors.Is(classify(httpErr), domain.ErrFetchFailed) {
		t.Fatal("HTTP errors are fetch failures")
	}

	netErr := &url.Error{Op: "Get", URL: "https://example.com", Err: errors.New("refused")}
	if !errors.Is(classify(netErr), domain.ErrFetchFailed) {
		t.Fatal("transport errors are fetch failures")
	}

	if !errors.Is(classify(context.DeadlineExceeded), domain.ErrFetchFailed) {
		t.Fatal("timeouts are fetch failures")
	}

	if !errors.Is(classify(errors.New("expected element type <rss>")), domain.ErrParse) {
		t.Fatal("everything else is a parse failure")
	}
}

func TestIconFromDocument(t *testing.T) {
	base, err := url.Parse("https://example.com/blog/")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "absolute icon",
			html:     `<html><head><link rel="icon" href="https://cdn.example.com/i.png"></head></html>`,
			expected: "https://cdn.example.com/i.png",
		},
		{
			name:     "relative icon resolved against base",
			html:     `<html><head><link rel="icon" href="/static/i.png"></head></html>`,
			expected: "https://example.com/static/i.png",
		},
		{
			name:     "apple touch icon",
			html:     `<html><head><link rel="apple-touch-icon" href="touch.png"></head></html>`,
			expected: "https://example.com/blog/touch.png",
		},
		{
			name:     "no icon declared",
			html:     `<html><head><title>x</title></head></html>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			if docErr != nil {
				t.Fatal(docErr)
			}

			if got := iconFromDocument(doc, base); got != tt.expected {
				t.Fatalf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
