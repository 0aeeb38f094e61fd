package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedhive/internal/domain"
)

// IngestArticles merges one fetched batch into the feed's article set. The
// whole batch, the feed's last-sync timestamp and the unread counter move in
// a single transaction: a batch that fails or is cancelled commits nothing,
// so the next run retries from the same point.
//
// A raw article whose remote key is already present updates content fields
// only; is_read and is_starred are never touched by ingestion. Returns the
// number of newly inserted articles.
func (d *Database) IngestArticles(
	ctx context.Context,
	feedID int64,
	articles []domain.RawArticle,
	fetchedAt time.Time,
) (int64, error) {
	mu := d.feedLock(feedID)
	mu.Lock()
	defer mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer d.rollback(ctx, tx, "IngestArticles")

	var inserted int64
	for _, raw := range articles {
		key := strings.TrimSpace(raw.RemoteKey)
		if key == "" {
			continue
		}

		var existingID int64
		err = tx.QueryRowContext(ctx,
			"select id from articles where feed_id = ? and remote_key = ?",
			feedID, key,
		).Scan(&existingID)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err = tx.ExecContext(ctx,
				`insert into articles
					(feed_id, remote_key, title, content, link, published_at, fetched_at)
				values (?, ?, ?, ?, ?, ?, ?)`,
				feedID, key, raw.Title, raw.Content, raw.Link, raw.PublishedAt, fetchedAt,
			); err != nil {
				return 0, fmt.Errorf("failed to insert article: %w", err)
			}

			inserted++
		case err != nil:
			return 0, fmt.Errorf("failed to execute query: %w", err)
		default:
			if _, err = tx.ExecContext(ctx,
				`update articles
				set title = ?, content = ?, link = ?, published_at = ?, fetched_at = ?
				where id = ?`,
				raw.Title, raw.Content, raw.Link, raw.PublishedAt, fetchedAt, existingID,
			); err != nil {
				return 0, fmt.Errorf("failed to update article: %w", err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx,
		`update feeds
		set last_sync_at = ?, last_error = '', unread_count = unread_count + ?
		where id = ?`,
		fetchedAt, inserted, feedID,
	); err != nil {
		return 0, fmt.Errorf("failed to update feed sync status: %w", err)
	}

	// Last cancellation point before the batch becomes visible.
	if err = ctx.Err(); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tx: %w", err)
	}

	return inserted, nil
}

// ArticleScope selects whose articles a list query covers. Exactly one of the
// IDs is expected to be set; FeedID wins over GroupID, GroupID over AccountID.
type ArticleScope struct {
	AccountID int64
	GroupID   int64
	FeedID    int64
}

// ListArticles returns the scope's articles matching the filter, ordered by
// published_at descending with higher id first on ties.
func (d *Database) ListArticles(
	ctx context.Context,
	scope ArticleScope,
	filter domain.Filter,
) ([]domain.Article, error) {
	query := `select a.id, a.feed_id, a.remote_key, a.title, a.content, a.link,
		a.published_at, a.fetched_at, a.is_read, a.is_starred
	from articles as a
	join feeds as f on f.id = a.feed_id`

	var conds []string
	var args []any

	switch {
	case scope.FeedID != 0:
		conds = append(conds, "a.feed_id = ?")
		args = append(args, scope.FeedID)
	case scope.GroupID != 0:
		conds = append(conds, "f.group_id = ?")
		args = append(args, scope.GroupID)
	default:
		conds = append(conds, "f.account_id = ?")
		args = append(args, scope.AccountID)
	}

	switch filter {
	case domain.FilterStarred:
		conds = append(conds, "a.is_starred = 1")
	case domain.FilterUnread:
		conds = append(conds, "a.is_read = 0")
	case domain.FilterAll:
	}

	query += " where " + strings.Join(conds, " and ")
	query += " order by a.published_at desc, a.id desc"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "ListArticles")

	var articles []domain.Article
	for rows.Next() {
		a, scanErr := scanArticle(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}

		articles = append(articles, *a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return articles, nil
}

func (d *Database) GetArticle(ctx context.Context, articleID int64) (*domain.Article, error) {
	query := `select id, feed_id, remote_key, title, content, link,
		published_at, fetched_at, is_read, is_starred
	from articles
	where id = ?`

	a, err := scanArticle(d.db.QueryRowContext(ctx, query, articleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %d: %w", articleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return a, nil
}

// MarkRead flips an article to read and decrements its feed's unread counter.
// Marking an already-read article is a no-op.
func (d *Database) MarkRead(ctx context.Context, articleID int64) error {
	return d.setRead(ctx, articleID, true)
}

// MarkUnread flips an article back to unread.
func (d *Database) MarkUnread(ctx context.Context, articleID int64) error {
	return d.setRead(ctx, articleID, false)
}

func (d *Database) setRead(ctx context.Context, articleID int64, read bool) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer d.rollback(ctx, tx, "setRead")

	target := 0
	delta := 1
	if read {
		target = 1
		delta = -1
	}

	res, err := tx.ExecContext(ctx,
		"update articles set is_read = ? where id = ? and is_read != ?",
		target, articleID, target)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected > 0 {
		if _, err = tx.ExecContext(ctx,
			`update feeds set unread_count = unread_count + ?
			where id = (select feed_id from articles where id = ?)`,
			delta, articleID,
		); err != nil {
			return fmt.Errorf("failed to update unread count: %w", err)
		}
	}

	return tx.Commit()
}

// ToggleStar flips an article's starred flag and returns the new value.
func (d *Database) ToggleStar(ctx context.Context, articleID int64) (bool, error) {
	var starred bool
	err := d.db.QueryRowContext(ctx,
		"select is_starred from articles where id = ?", articleID,
	).Scan(&starred)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("article %d: %w", articleID, domain.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	if _, err = d.db.ExecContext(ctx,
		"update articles set is_starred = ? where id = ?", !starred, articleID,
	); err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	return !starred, nil
}

// MarkAllRead marks every unread article in the scope as read and zeroes the
// affected feeds' unread counters in the same transaction.
func (d *Database) MarkAllRead(ctx context.Context, scope ArticleScope) (int64, error) {
	var feedCond string
	var arg any

	switch {
	case scope.FeedID != 0:
		feedCond = "id = ?"
		arg = scope.FeedID
	case scope.GroupID != 0:
		feedCond = "group_id = ?"
		arg = scope.GroupID
	default:
		feedCond = "account_id = ?"
		arg = scope.AccountID
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer d.rollback(ctx, tx, "MarkAllRead")

	res, err := tx.ExecContext(ctx,
		`update articles set is_read = 1
		where is_read = 0
		and feed_id in (select id from feeds where `+feedCond+`)`,
		arg)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"update feeds set unread_count = 0 where "+feedCond, arg,
	); err != nil {
		return 0, fmt.Errorf("failed to update unread counts: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tx: %w", err)
	}

	return affected, nil
}

// PruneReadArticles deletes read, unstarred articles fetched before the
// cutoff. Starred articles are always retained.
func (d *Database) PruneReadArticles(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		"delete from articles where is_read = 1 and is_starred = 0 and fetched_at < ?",
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return res.RowsAffected()
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var a domain.Article
	var publishedAt sql.NullTime

	err := row.Scan(&a.ID, &a.FeedID, &a.RemoteKey, &a.Title, &a.Content, &a.Link,
		&publishedAt, &a.FetchedAt, &a.IsRead, &a.IsStarred)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		a.PublishedAt = publishedAt.Time
	}

	return &a, nil
}
