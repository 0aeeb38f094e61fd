// Package subscription validates and registers new feed sources.
package subscription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"feedhive/internal/database"
	"feedhive/internal/domain"
	"feedhive/internal/feed"
	"feedhive/internal/opml"

	"mvdan.cc/xurls/v2"
)

// SyncTrigger is the part of the sync engine the manager needs: one first
// fetch for a freshly created feed.
type SyncTrigger interface {
	SyncFeed(ctx context.Context, feedID int64) error
}

// Fetcher validates sources and discovers their icons.
type Fetcher interface {
	feed.Parser
	DiscoverIcon(ctx context.Context, siteURL string) (string, error)
}

type Manager struct {
	db      *database.Database
	fetcher Fetcher
	syncer  SyncTrigger
	log     *slog.Logger
}

func New(db *database.Database, fetcher Fetcher, syncer SyncTrigger, log *slog.Logger) *Manager {
	return &Manager{
		db:      db,
		fetcher: fetcher,
		syncer:  syncer,
		log:     log,
	}
}

// AddFeed subscribes the account to a source. groupID of zero files the feed
// under the account's default group. The URL is normalized before the
// duplicate check; a malformed URL or an existing subscription fails without
// touching the store. A failed initial fetch returns ErrFetchFailed wrapped,
// but keeps the created feed row so the user can retry via sync.
func (m *Manager) AddFeed(
	ctx context.Context,
	accountID int64,
	groupID int64,
	rawURL string,
) (int64, error) {
	sourceURL, err := feed.NormalizeSourceURL(rawURL)
	if err != nil {
		return 0, err
	}

	exists, err := m.db.FeedExistsBySource(ctx, accountID, sourceURL)
	if err != nil {
		return 0, fmt.Errorf("failed to check subscription: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%s: %w", sourceURL, domain.ErrDuplicateFeed)
	}

	if groupID == 0 {
		groupID, err = m.db.GetOrCreateDefaultGroup(ctx, accountID)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve default group: %w", err)
		}
	}

	parsed, parseErr := m.fetcher.Parse(ctx, sourceURL)

	title := sourceURL
	siteURL := ""
	if parseErr == nil {
		title = parsed.Title
		siteURL = parsed.SiteURL
	}

	feedID, err := m.db.CreateFeed(ctx, accountID, groupID, title, sourceURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create feed: %w", err)
	}

	if parseErr != nil {
		// The row stays so the next sync can retry; surface the cause.
		if recordErr := m.db.RecordSyncError(ctx, feedID, parseErr.Error()); recordErr != nil {
			m.log.ErrorContext(ctx, "Failed to record initial fetch error",
				"error", recordErr,
				"feedID", feedID)
		}

		if errors.Is(parseErr, domain.ErrParse) {
			return feedID, parseErr
		}

		return feedID, fmt.Errorf("%s: %w", parseErr.Error(), domain.ErrFetchFailed)
	}

	if err = m.syncer.SyncFeed(ctx, feedID); err != nil {
		m.log.WarnContext(ctx, "Initial sync failed",
			"error", err,
			"feedID", feedID,
			"sourceURL", sourceURL)
	}

	m.discoverIcon(ctx, feedID, siteURL)

	return feedID, nil
}

// ImportResult reports one entry of a bulk import.
type ImportResult struct {
	SourceURL string
	GroupName string
	FeedID    int64
	Err       error
}

// ImportOPML subscribes every entry of an OPML payload, creating groups named
// by their outlines as needed. Entries fail independently; the per-entry
// outcomes are returned alongside any payload-level error.
func (m *Manager) ImportOPML(
	ctx context.Context,
	accountID int64,
	payload []byte,
) ([]ImportResult, error) {
	entries, err := opml.Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrInvalidSource)
	}

	results := make([]ImportResult, 0, len(entries))
	groupIDs := make(map[string]int64)

	for _, entry := range entries {
		var groupID int64

		if entry.GroupName != "" {
			groupID, err = m.groupByName(ctx, accountID, entry.GroupName, groupIDs)
			if err != nil {
				results = append(results, ImportResult{
					SourceURL: entry.URL,
					GroupName: entry.GroupName,
					Err:       err,
				})

				continue
			}
		}

		feedID, addErr := m.AddFeed(ctx, accountID, groupID, entry.URL)
		results = append(results, ImportResult{
			SourceURL: entry.URL,
			GroupName: entry.GroupName,
			FeedID:    feedID,
			Err:       addErr,
		})
	}

	return results, nil
}

// ImportFromText extracts https:// URLs from free text and subscribes each.
func (m *Manager) ImportFromText(
	ctx context.Context,
	accountID int64,
	groupID int64,
	text string,
) ([]ImportResult, error) {
	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("failed to create regexp: %w", err)
	}

	urls := httpsURLRe.FindAllString(text, -1)

	results := make([]ImportResult, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))

	for _, u := range urls {
		trimmed := strings.TrimSpace(u)
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		feedID, addErr := m.AddFeed(ctx, accountID, groupID, trimmed)
		results = append(results, ImportResult{
			SourceURL: trimmed,
			FeedID:    feedID,
			Err:       addErr,
		})
	}

	return results, nil
}

// ExportOPML renders the account's catalog as an OPML document, with feeds of
// the default group at the top level.
func (m *Manager) ExportOPML(ctx context.Context, accountID int64) ([]byte, error) {
	groups, err := m.db.ListGroupsWithFeeds(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var entries []opml.Entry
	for _, g := range groups {
		groupName := g.Group.Name
		if groupName == database.DefaultGroupName {
			groupName = ""
		}

		for _, f := range g.Feeds {
			entries = append(entries, opml.Entry{
				GroupName: groupName,
				Title:     f.Title,
				URL:       f.URL,
			})
		}
	}

	return opml.Export("feedhive subscriptions", entries)
}

func (m *Manager) groupByName(
	ctx context.Context,
	accountID int64,
	name string,
	cache map[string]int64,
) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	groups, err := m.db.ListGroupsWithFeeds(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to list groups: %w", err)
	}

	for _, g := range groups {
		if g.Group.Name == name {
			cache[name] = g.Group.ID

			return g.Group.ID, nil
		}
	}

	id, err := m.db.CreateGroup(ctx, accountID, name, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to create group: %w", err)
	}
	cache[name] = id

	return id, nil
}

func (m *Manager) discoverIcon(ctx context.Context, feedID int64, siteURL string) {
	if siteURL == "" {
		return
	}

	iconURL, err := m.fetcher.DiscoverIcon(ctx, siteURL)
	if err != nil {
		m.log.WarnContext(ctx, "Icon discovery failed",
			"error", err,
			"feedID", feedID,
			"siteURL", siteURL)

		return
	}

	if err = m.db.SetFeedIcon(ctx, feedID, iconURL); err != nil {
		m.log.ErrorContext(ctx, "Failed to store feed icon",
			"error", err,
			"feedID", feedID,
			"iconURL", iconURL)
	}
}
