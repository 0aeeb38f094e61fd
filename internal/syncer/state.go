package syncer

import (
	"maps"
	"sync"
	"time"

	"feedhive/internal/domain"
)

const subscriberBuffer = 16

// stateBroker owns the single mutable SyncState and fans immutable snapshots
// out to subscribers. The sync run is the only writer; subscribers never
// block it — when a subscriber's buffer is full its oldest snapshot is
// dropped in favor of the new one.
type stateBroker struct {
	mu    sync.Mutex
	state domain.SyncState
	subs  map[int]chan domain.SyncState
	next  int
}

func newStateBroker() *stateBroker {
	return &stateBroker{
		subs: make(map[int]chan domain.SyncState),
	}
}

// begin resets the state for a new run over the given feeds. It fails when a
// run is already in flight.
func (b *stateBroker) begin(feedIDs []int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.Running {
		return false
	}

	feeds := make(map[int64]domain.FeedSyncStatus, len(feedIDs))
	for _, id := range feedIDs {
		feeds[id] = domain.FeedSyncPending
	}

	b.state = domain.SyncState{
		Running:   true,
		StartedAt: time.Now().UTC(),
		Total:     len(feedIDs),
		Feeds:     feeds,
		Errors:    make(map[int64]string),
	}
	b.publishLocked()

	return true
}

func (b *stateBroker) markRunning(feedID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Feeds[feedID] = domain.FeedSyncRunning
	b.publishLocked()
}

func (b *stateBroker) markDone(feedID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Feeds[feedID] = domain.FeedSyncDone
	b.state.Done++
	b.publishLocked()
}

func (b *stateBroker) markFailed(feedID int64, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Feeds[feedID] = domain.FeedSyncFailed
	b.state.Errors[feedID] = message
	b.state.Failed++
	b.publishLocked()
}

// finish freezes the run's final state.
func (b *stateBroker) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Running = false
	b.publishLocked()
}

func (b *stateBroker) snapshot() domain.SyncState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked()
}

func (b *stateBroker) snapshotLocked() domain.SyncState {
	snap := b.state
	snap.Feeds = maps.Clone(b.state.Feeds)
	snap.Errors = maps.Clone(b.state.Errors)

	return snap
}

// subscribe registers a new reader. The returned cancel function must be
// called when the reader is done; the channel is closed by it.
func (b *stateBroker) subscribe() (<-chan domain.SyncState, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan domain.SyncState, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

func (b *stateBroker) publishLocked() {
	snap := b.snapshotLocked()

	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Slow reader: drop its oldest snapshot so the writer never waits.
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- snap:
			default:
			}
		}
	}
}
