package subscription_test

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"feedhive/internal/database"
	"feedhive/internal/domain"
	"feedhive/internal/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccountID = int64(1)

type stubFetcher struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{errs: make(map[string]error)}
}

func (f *stubFetcher) Parse(_ context.Context, sourceURL string) (*domain.ParsedFeed, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourceURL)
	err := f.errs[sourceURL]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return &domain.ParsedFeed{Title: "Stub Feed"}, nil
}

func (f *stubFetcher) DiscoverIcon(context.Context, string) (string, error) {
	return "", fmt.Errorf("no icon")
}

type stubSyncer struct {
	mu      sync.Mutex
	feedIDs []int64
}

func (s *stubSyncer) SyncFeed(_ context.Context, feedID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feedIDs = append(s.feedIDs, feedID)

	return nil
}

func (s *stubSyncer) synced() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int64(nil), s.feedIDs...)
}

func newManager(t *testing.T) (*subscription.Manager, *database.Database, *stubFetcher, *stubSyncer) {
	t.Helper()

	db, err := database.New(
		context.Background(),
		filepath.Join(t.TempDir(), "test.sqlite"),
		slog.Default())
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	fetcher := newStubFetcher()
	syncStub := &stubSyncer{}

	return subscription.New(db, fetcher, syncStub, slog.Default()), db, fetcher, syncStub
}

func TestAddFeedCreatesDefaultGroupAndSyncs(t *testing.T) {
	m, db, _, syncStub := newManager(t)
	ctx := context.Background()

	feedID, err := m.AddFeed(ctx, testAccountID, 0, "https://example.com/feed")
	require.NoError(t, err)

	f, err := db.GetFeed(ctx, feedID)
	require.NoError(t, err)
	assert.Equal(t, "Stub Feed", f.Title)
	assert.Equal(t, "https://example.com/feed", f.URL)

	group, err := db.GetGroup(ctx, f.GroupID)
	require.NoError(t, err)
	assert.Equal(t, database.DefaultGroupName, group.Name)

	assert.Equal(t, []int64{feedID}, syncStub.synced(), "initial sync is delegated")
}

func TestAddFeedRejectsMalformedURL(t *testing.T) {
	m, db, _, _ := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
	}{
		{name: "empty", url: "   "},
		{name: "no scheme", url: "example.com/feed"},
		{name: "wrong scheme", url: "ftp://example.com/feed"},
		{name: "no host", url: "https:///feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.AddFeed(ctx, testAccountID, 0, tt.url)
			assert.ErrorIs(t, err, domain.ErrInvalidSource)
		})
	}

	feeds, err := db.ListFeeds(ctx, testAccountID)
	require.NoError(t, err)
	assert.Empty(t, feeds, "invalid sources never mutate the store")
}

func TestAddFeedRejectsDuplicateNormalizedURL(t *testing.T) {
	m, db, _, _ := newManager(t)
	ctx := context.Background()

	_, err := m.AddFeed(ctx, testAccountID, 0, "https://example.com/feed")
	require.NoError(t, err)

	// Different spelling of the same source.
	_, err = m.AddFeed(ctx, testAccountID, 0, "https://EXAMPLE.com/feed/")
	assert.ErrorIs(t, err, domain.ErrDuplicateFeed)

	feeds, err := db.ListFeeds(ctx, testAccountID)
	require.NoError(t, err)
	assert.Len(t, feeds, 1)

	// The same source in another account is a fresh subscription.
	_, err = m.AddFeed(ctx, testAccountID+1, 0, "https://example.com/feed")
	assert.NoError(t, err)
}

func TestAddFeedKeepsRowOnFetchFailure(t *testing.T) {
	m, db, fetcher, syncStub := newManager(t)
	ctx := context.Background()

	fetcher.errs["https://down.example.com/feed"] = domain.ErrFetchFailed

	feedID, err := m.AddFeed(ctx, testAccountID, 0, "https://down.example.com/feed")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	require.NotZero(t, feedID, "the row is retained for retry")

	f, getErr := db.GetFeed(ctx, feedID)
	require.NoError(t, getErr)
	assert.Equal(t, "https://down.example.com/feed", f.Title, "title falls back to the URL")
	assert.NotEmpty(t, f.LastError)

	assert.Empty(t, syncStub.synced(), "no initial sync after a failed validation fetch")
}

func TestImportOPMLCollectsPerEntryFailures(t *testing.T) {
	m, db, fetcher, _ := newManager(t)
	ctx := context.Background()

	fetcher.errs["https://broken.example.com/feed"] = domain.ErrFetchFailed

	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>subs</title></head>
  <body>
    <outline text="Tech">
      <outline type="rss" text="Gadgets" xmlUrl="https://gadgets.example.com/feed"/>
      <outline type="rss" text="Broken" xmlUrl="https://broken.example.com/feed"/>
    </outline>
    <outline type="rss" text="Top" xmlUrl="https://top.example.com/feed"/>
  </body>
</opml>`)

	results, err := m.ImportOPML(ctx, testAccountID, payload)
	require.NoError(t, err)
	require.Len(t, results, 3)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			assert.Equal(t, "https://broken.example.com/feed", r.SourceURL)
		}
	}
	assert.Equal(t, 1, failed, "one entry fails, the others import")

	feeds, err := db.ListFeeds(ctx, testAccountID)
	require.NoError(t, err)
	assert.Len(t, feeds, 3, "the failed entry still keeps its row for retry")

	groups, err := db.ListGroupsWithFeeds(ctx, testAccountID)
	require.NoError(t, err)

	names := make(map[string]int)
	for _, g := range groups {
		names[g.Group.Name] = len(g.Feeds)
	}
	assert.Equal(t, 2, names["Tech"])
	assert.Equal(t, 1, names[database.DefaultGroupName])
}

func TestImportFromTextExtractsURLs(t *testing.T) {
	m, db, _, _ := newManager(t)
	ctx := context.Background()

	text := `check these out:
https://one.example.com/feed and also https://two.example.com/rss
https://one.example.com/feed (mentioned twice)
not-a-url.example.com`

	results, err := m.ImportFromText(ctx, testAccountID, 0, text)
	require.NoError(t, err)
	require.Len(t, results, 2, "duplicate mentions collapse, plain text is ignored")

	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	feeds, err := db.ListFeeds(ctx, testAccountID)
	require.NoError(t, err)
	assert.Len(t, feeds, 2)
}

func TestExportOPMLRoundTripsCatalog(t *testing.T) {
	m, db, _, _ := newManager(t)
	ctx := context.Background()

	groupID, err := db.CreateGroup(ctx, testAccountID, "Tech", 1)
	require.NoError(t, err)

	_, err = m.AddFeed(ctx, testAccountID, groupID, "https://gadgets.example.com/feed")
	require.NoError(t, err)
	_, err = m.AddFeed(ctx, testAccountID, 0, "https://top.example.com/feed")
	require.NoError(t, err)

	payload, err := m.ExportOPML(ctx, testAccountID)
	require.NoError(t, err)

	out := string(payload)
	assert.Contains(t, out, `xmlUrl="https://gadgets.example.com/feed"`)
	assert.Contains(t, out, `xmlUrl="https://top.example.com/feed"`)
	assert.Contains(t, out, `text="Tech"`)
	assert.NotContains(t, out, database.DefaultGroupName,
		"default-group feeds export at the top level")
}
