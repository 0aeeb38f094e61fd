// Package syncer orchestrates per-feed fetches, merges fetched articles into
// the store and reports aggregate progress through an observable SyncState.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedhive/internal/database"
	"feedhive/internal/domain"
	"feedhive/internal/feed"
)

const defaultConcurrency = 6

// ErrSyncRunning is returned by SyncAll when a run is already in flight.
var ErrSyncRunning = errors.New("sync already running")

type Syncer struct {
	db          *database.Database
	parser      feed.Parser
	concurrency int
	broker      *stateBroker
	log         *slog.Logger
}

func New(db *database.Database, parser feed.Parser, concurrency int, log *slog.Logger) *Syncer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Syncer{
		db:          db,
		parser:      parser,
		concurrency: concurrency,
		broker:      newStateBroker(),
		log:         log,
	}
}

// State returns the latest SyncState snapshot.
func (s *Syncer) State() domain.SyncState {
	return s.broker.snapshot()
}

// Subscribe registers a SyncState reader. Snapshots arrive in publish order;
// a reader that falls behind loses oldest snapshots, never the writer's time.
func (s *Syncer) Subscribe() (<-chan domain.SyncState, func()) {
	return s.broker.subscribe()
}

// SyncAll fans out over every feed of the account, bounded by the configured
// concurrency. One feed's failure is recorded on that feed and never aborts
// its siblings. Cancelling ctx stops launching new feeds and aborts in-flight
// ones before their batch commits; feeds already completed keep their results.
func (s *Syncer) SyncAll(ctx context.Context, accountID int64) error {
	feeds, err := s.db.ListFeeds(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list feeds: %w", err)
	}

	feedIDs := make([]int64, 0, len(feeds))
	for _, f := range feeds {
		feedIDs = append(feedIDs, f.ID)
	}

	if !s.broker.begin(feedIDs) {
		return ErrSyncRunning
	}
	defer s.broker.finish()

	var wg sync.WaitGroup

	concurrency := min(s.concurrency, max(len(feeds), 1))
	semCh := make(chan struct{}, concurrency)
	errCh := make(chan error, len(feeds))

	for _, f := range feeds {
		select {
		case <-ctx.Done():
			s.broker.markFailed(f.ID, ctx.Err().Error())
			errCh <- fmt.Errorf("feed %d: %w", f.ID, ctx.Err())

			continue
		case semCh <- struct{}{}:
		}

		wg.Add(1)

		go func(copiedFeed domain.Feed) {
			defer wg.Done()
			defer func() { <-semCh }()

			s.broker.markRunning(copiedFeed.ID)

			if syncErr := s.syncOne(ctx, &copiedFeed); syncErr != nil {
				s.broker.markFailed(copiedFeed.ID, syncErr.Error())
				errCh <- fmt.Errorf("feed %d: %w", copiedFeed.ID, syncErr)

				return
			}

			s.broker.markDone(copiedFeed.ID)
		}(f)
	}

	wg.Wait()
	close(errCh)

	var errs []error
	for runErr := range errCh {
		errs = append(errs, runErr)
	}

	s.log.InfoContext(ctx, "Sync run finished",
		"accountID", accountID,
		"total", len(feeds),
		"failed", len(errs))

	return errors.Join(errs...)
}

// SyncFeed fetches and merges a single feed outside of a fan-out run.
func (s *Syncer) SyncFeed(ctx context.Context, feedID int64) error {
	f, err := s.db.GetFeed(ctx, feedID)
	if err != nil {
		return err
	}

	return s.syncOne(ctx, f)
}

// syncOne performs the fetch-then-merge for one feed. On any failure the
// message lands on the feed row and the last-sync timestamp stays put, so the
// next run retries the same window.
func (s *Syncer) syncOne(ctx context.Context, f *domain.Feed) error {
	parsed, err := s.parser.Parse(ctx, f.URL)
	if err != nil {
		s.recordError(ctx, f.ID, err)

		return err
	}

	fetchedAt := time.Now().UTC()

	inserted, err := s.db.IngestArticles(ctx, f.ID, parsed.Articles, fetchedAt)
	if err != nil {
		s.recordError(ctx, f.ID, err)

		return fmt.Errorf("failed to ingest articles: %w", err)
	}

	s.log.InfoContext(ctx, "Feed is synced",
		"feedID", f.ID,
		"feedURL", f.URL,
		"fetched", len(parsed.Articles),
		"inserted", inserted)

	return nil
}

func (s *Syncer) recordError(ctx context.Context, feedID int64, cause error) {
	if err := s.db.RecordSyncError(ctx, feedID, cause.Error()); err != nil {
		s.log.ErrorContext(ctx, "Failed to record sync error",
			"error", err,
			"feedID", feedID,
			"cause", cause)
	}
}
