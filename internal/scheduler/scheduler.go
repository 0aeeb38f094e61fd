package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"feedhive/internal/database"
	"feedhive/internal/syncer"

	"github.com/robfig/cron/v3"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0

	syncRunTimeout = 15 * time.Minute
	pruneSpec      = "30 3 * * *"
)

// Scheduler drives periodic background syncs and retention pruning.
type Scheduler struct {
	ctx          context.Context
	cron         *cron.Cron
	db           *database.Database
	syncer       *syncer.Syncer
	accountID    int64
	syncSpec     string
	keepReadDays int
	log          *slog.Logger
}

func New(
	ctx context.Context,
	db *database.Database,
	s *syncer.Syncer,
	accountID int64,
	syncSpec string,
	keepReadDays int,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:          ctx,
		cron:         c,
		db:           db,
		syncer:       s,
		accountID:    accountID,
		syncSpec:     syncSpec,
		keepReadDays: keepReadDays,
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.syncSpec, s.runSync); err != nil {
		return err
	}

	if s.keepReadDays > 0 {
		if _, err := s.cron.AddFunc(pruneSpec, s.runPrune); err != nil {
			return err
		}
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(s.ctx, syncRunTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())

		return
	}

	err := s.syncer.SyncAll(ctx, s.accountID)
	if errors.Is(err, syncer.ErrSyncRunning) {
		s.log.InfoContext(ctx, "Skipping scheduled sync, a run is in flight",
			"accountID", s.accountID)

		return
	}
	if err != nil {
		s.log.WarnContext(ctx, "Scheduled sync finished with failures",
			"error", err,
			"accountID", s.accountID)
	}
}

func (s *Scheduler) runPrune() {
	ctx, cancel := context.WithTimeout(s.ctx, syncRunTimeout)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.keepReadDays)

	pruned, err := s.db.PruneReadArticles(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune read articles",
			"error", err,
			"cutoff", cutoff)

		return
	}

	s.log.InfoContext(ctx, "Read articles are pruned",
		"pruned", pruned,
		"cutoff", cutoff)
}
