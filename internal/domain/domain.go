package domain

import "time"

// Group is a named collection of feeds within one account.
type Group struct {
	ID           int64
	AccountID    int64
	Name         string
	DisplayOrder int64
}

// Feed is a subscribed remote source. URL is stored in normalized form and is
// unique within the owning account.
type Feed struct {
	ID           int64
	AccountID    int64
	GroupID      int64
	Title        string
	URL          string
	IconURL      string
	DisplayOrder int64
	LastSyncAt   time.Time
	LastError    string
	UnreadCount  int64
}

// Article is one ingested entry. (FeedID, RemoteKey) is unique; re-ingesting
// the same remote key updates content fields but never IsRead/IsStarred.
type Article struct {
	ID          int64
	FeedID      int64
	RemoteKey   string
	Title       string
	Content     string
	Link        string
	PublishedAt time.Time
	FetchedAt   time.Time
	IsRead      bool
	IsStarred   bool
}

// ParsedFeed is what the feed-parsing collaborator returns for a source URL.
type ParsedFeed struct {
	Title    string
	SiteURL  string
	Articles []RawArticle
}

// RawArticle is a normalized entry as delivered by the parser, before merge.
type RawArticle struct {
	RemoteKey   string
	Title       string
	Content     string
	Link        string
	PublishedAt time.Time
}

// GroupWithFeeds pairs a group with its member feeds, ordered for display.
type GroupWithFeeds struct {
	Group Group
	Feeds []Feed
}
