package domain

import "errors"

var (
	// ErrInvalidSource means the submitted URL is not a usable feed source.
	ErrInvalidSource = errors.New("invalid source URL")

	// ErrDuplicateFeed means the account already subscribes to the source.
	ErrDuplicateFeed = errors.New("feed already subscribed")

	// ErrFetchFailed means the remote source could not be retrieved.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrParse means the remote content could not be parsed as a feed.
	ErrParse = errors.New("malformed feed content")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)
