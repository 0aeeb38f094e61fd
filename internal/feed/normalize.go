package feed

import (
	"fmt"
	"net/url"
	"strings"

	"feedhive/internal/domain"
)

// NormalizeSourceURL canonicalizes a submitted source URL so that trivially
// different spellings of the same source compare equal for the per-account
// duplicate check. Scheme and host are lowercased, default ports and
// fragments are dropped, and a trailing slash on the path is trimmed.
func NormalizeSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL: %w", domain.ErrInvalidSource)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL %q: %w", raw, domain.ErrInvalidSource)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q: %w", u.Scheme, domain.ErrInvalidSource)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q: %w", raw, domain.ErrInvalidSource)
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if (scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Hostname()
	}

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}
