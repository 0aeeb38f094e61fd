package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"feedhive/internal/domain"
)

func (d *Database) CreateFeed(
	ctx context.Context,
	accountID int64,
	groupID int64,
	title string,
	feedURL string,
) (int64, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return 0, errors.New("feed URL is empty")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = feedURL
	}

	group, err := d.GetGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if group.AccountID != accountID {
		return 0, fmt.Errorf("group %d belongs to another account", groupID)
	}

	query := "insert into feeds (account_id, group_id, title, url) values (?, ?, ?, ?)"

	res, err := d.db.ExecContext(ctx, query, accountID, groupID, title, feedURL)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return res.LastInsertId()
}

func (d *Database) GetFeed(ctx context.Context, feedID int64) (*domain.Feed, error) {
	query := `select id, account_id, group_id, title, url, icon_url,
		display_order, last_sync_at, last_error, unread_count
	from feeds
	where id = ?`

	f, err := scanFeed(d.db.QueryRowContext(ctx, query, feedID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %d: %w", feedID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return f, nil
}

// FeedExistsBySource reports whether the account already subscribes to the
// normalized source URL.
func (d *Database) FeedExistsBySource(
	ctx context.Context,
	accountID int64,
	feedURL string,
) (bool, error) {
	query := "select 1 from feeds where account_id = ? and url = ?"

	var one int
	err := d.db.QueryRowContext(ctx, query, accountID, feedURL).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	return true, nil
}

// ListFeeds returns the account's feeds ordered by display order then title.
func (d *Database) ListFeeds(ctx context.Context, accountID int64) ([]domain.Feed, error) {
	query := `select id, account_id, group_id, title, url, icon_url,
		display_order, last_sync_at, last_error, unread_count
	from feeds
	where account_id = ?
	order by display_order, title`

	rows, err := d.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListFeeds")

	var feeds []domain.Feed
	for rows.Next() {
		f, scanErr := scanFeed(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}

		feeds = append(feeds, *f)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return feeds, nil
}

func (d *Database) RenameFeed(ctx context.Context, feedID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("feed title is empty")
	}

	res, err := d.db.ExecContext(ctx, "update feeds set title = ? where id = ?", title, feedID)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return d.requireAffected(res, feedID)
}

// MoveFeed reassigns a feed to another group of the same account.
func (d *Database) MoveFeed(ctx context.Context, feedID int64, groupID int64) error {
	feed, err := d.GetFeed(ctx, feedID)
	if err != nil {
		return err
	}

	group, err := d.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AccountID != feed.AccountID {
		return fmt.Errorf("group %d belongs to another account", groupID)
	}

	_, err = d.db.ExecContext(ctx, "update feeds set group_id = ? where id = ?", groupID, feedID)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

func (d *Database) SetFeedIcon(ctx context.Context, feedID int64, iconURL string) error {
	_, err := d.db.ExecContext(ctx,
		"update feeds set icon_url = ? where id = ?",
		strings.TrimSpace(iconURL), feedID)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

// DeleteFeed removes a feed and, via the schema cascade, its articles.
func (d *Database) DeleteFeed(ctx context.Context, feedID int64) error {
	mu := d.feedLock(feedID)
	mu.Lock()
	defer mu.Unlock()

	res, err := d.db.ExecContext(ctx, "delete from feeds where id = ?", feedID)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return d.requireAffected(res, feedID)
}

// RecordSyncError stores the failure message for a feed without touching its
// last-sync timestamp, so the next run retries from the same point.
func (d *Database) RecordSyncError(ctx context.Context, feedID int64, message string) error {
	_, err := d.db.ExecContext(ctx,
		"update feeds set last_error = ? where id = ?",
		strings.TrimSpace(message), feedID)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*domain.Feed, error) {
	var f domain.Feed
	var lastSyncAt sql.NullTime

	err := row.Scan(&f.ID, &f.AccountID, &f.GroupID, &f.Title, &f.URL, &f.IconURL,
		&f.DisplayOrder, &lastSyncAt, &f.LastError, &f.UnreadCount)
	if err != nil {
		return nil, err
	}

	if lastSyncAt.Valid {
		f.LastSyncAt = lastSyncAt.Time
	}

	f.Title = strings.TrimSpace(f.Title)
	f.URL = strings.TrimSpace(f.URL)

	return &f, nil
}
