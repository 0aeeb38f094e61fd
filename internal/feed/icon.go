package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const iconSelector = `link[rel="icon"], link[rel="shortcut icon"], link[rel="apple-touch-icon"]`

// DiscoverIcon fetches the feed's site page and returns the icon URL it
// declares, falling back to /favicon.ico. The result is absolute.
func (f *Fetcher) DiscoverIcon(ctx context.Context, siteURL string) (string, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return "", fmt.Errorf("empty site URL")
	}

	base, err := url.Parse(siteURL)
	if err != nil {
		return "", fmt.Errorf("parse site URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := f.parser.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch site page: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.log.WarnContext(ctx, "Failed to close response body",
				"error", closeErr,
				"siteURL", siteURL)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch site page: status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse site page: %w", err)
	}

	if icon := iconFromDocument(doc, base); icon != "" {
		return icon, nil
	}

	fallback := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/favicon.ico"}
	return fallback.String(), nil
}

func iconFromDocument(doc *goquery.Document, base *url.URL) string {
	var icon string

	doc.Find(iconSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}

		icon = base.ResolveReference(ref).String()
		return false
	})

	return icon
}
