package domain

// Filter selects which articles a view shows.
type Filter int

const (
	FilterAll Filter = iota
	FilterStarred
	FilterUnread
)

func (f Filter) String() string {
	switch f {
	case FilterStarred:
		return "starred"
	case FilterUnread:
		return "unread"
	default:
		return "all"
	}
}

// FilterState is the active view selector. GroupID/FeedID of zero mean no
// scope of that kind; a non-zero FeedID takes precedence over GroupID.
type FilterState struct {
	GroupID int64
	FeedID  int64
	Filter  Filter
}
