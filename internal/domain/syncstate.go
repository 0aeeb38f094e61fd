package domain

import "time"

// FeedSyncStatus is the per-feed position within a sync run.
type FeedSyncStatus int

const (
	FeedSyncPending FeedSyncStatus = iota
	FeedSyncRunning
	FeedSyncDone
	FeedSyncFailed
)

func (s FeedSyncStatus) String() string {
	switch s {
	case FeedSyncRunning:
		return "running"
	case FeedSyncDone:
		return "done"
	case FeedSyncFailed:
		return "failed"
	default:
		return "pending"
	}
}

// SyncState is an immutable snapshot of an in-flight or completed sync run.
// Feeds maps feed ID to its status; Errors maps failed feed IDs to the
// recorded failure message.
type SyncState struct {
	Running   bool
	StartedAt time.Time
	Total     int
	Done      int
	Failed    int
	Feeds     map[int64]FeedSyncStatus
	Errors    map[int64]string
}

// Completed reports how many feeds finished, successfully or not.
func (s SyncState) Completed() int {
	return s.Done + s.Failed
}
