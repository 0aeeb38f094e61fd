package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"feedhive/internal/domain"
)

// DefaultGroupName names the group that holds feeds subscribed without an
// explicit group, and that receives feeds from deleted groups.
const DefaultGroupName = "Uncategorized"

func (d *Database) CreateGroup(
	ctx context.Context,
	accountID int64,
	name string,
	displayOrder int64,
) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("group name is empty")
	}

	query := "insert into groups (account_id, name, display_order) values (?, ?, ?)"

	res, err := d.db.ExecContext(ctx, query, accountID, name, displayOrder)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return res.LastInsertId()
}

// GetOrCreateDefaultGroup finds the account's default group, creating it on
// first use.
func (d *Database) GetOrCreateDefaultGroup(ctx context.Context, accountID int64) (int64, error) {
	query := "select id from groups where account_id = ? and name = ?"

	var id int64
	err := d.db.QueryRowContext(ctx, query, accountID, DefaultGroupName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return d.CreateGroup(ctx, accountID, DefaultGroupName, 0)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return id, nil
}

func (d *Database) GetGroup(ctx context.Context, groupID int64) (*domain.Group, error) {
	query := "select id, account_id, name, display_order from groups where id = ?"

	var g domain.Group
	err := d.db.QueryRowContext(ctx, query, groupID).
		Scan(&g.ID, &g.AccountID, &g.Name, &g.DisplayOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", groupID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	return &g, nil
}

func (d *Database) RenameGroup(ctx context.Context, groupID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("group name is empty")
	}

	query := "update groups set name = ? where id = ?"

	res, err := d.db.ExecContext(ctx, query, name, groupID)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return d.requireAffected(res, groupID)
}

// DeleteGroup removes a group after reassigning its feeds to the account's
// default group. Deleting the default group itself is rejected.
func (d *Database) DeleteGroup(ctx context.Context, groupID int64) error {
	group, err := d.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}

	if group.Name == DefaultGroupName {
		return errors.New("cannot delete the default group")
	}

	defaultID, err := d.GetOrCreateDefaultGroup(ctx, group.AccountID)
	if err != nil {
		return fmt.Errorf("failed to resolve default group: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer d.rollback(ctx, tx, "DeleteGroup")

	if _, err = tx.ExecContext(ctx,
		"update feeds set group_id = ? where group_id = ?",
		defaultID, groupID,
	); err != nil {
		return fmt.Errorf("failed to reassign feeds: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "delete from groups where id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	return tx.Commit()
}

// ListGroupsWithFeeds returns the account's groups with their feeds, groups
// ordered by display order then name, feeds likewise within each group.
func (d *Database) ListGroupsWithFeeds(
	ctx context.Context,
	accountID int64,
) ([]domain.GroupWithFeeds, error) {
	groups, err := d.listGroups(ctx, accountID)
	if err != nil {
		return nil, err
	}

	feeds, err := d.ListFeeds(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byGroup := make(map[int64][]domain.Feed, len(groups))
	for _, f := range feeds {
		byGroup[f.GroupID] = append(byGroup[f.GroupID], f)
	}

	result := make([]domain.GroupWithFeeds, 0, len(groups))
	for _, g := range groups {
		result = append(result, domain.GroupWithFeeds{
			Group: g,
			Feeds: byGroup[g.ID],
		})
	}

	return result, nil
}

func (d *Database) listGroups(ctx context.Context, accountID int64) ([]domain.Group, error) {
	query := `select id, account_id, name, display_order
	from groups
	where account_id = ?
	order by display_order, name`

	rows, err := d.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "listGroups")

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err = rows.Scan(&g.ID, &g.AccountID, &g.Name, &g.DisplayOrder); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		groups = append(groups, g)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return groups, nil
}

func (d *Database) requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("id %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

func (d *Database) rollback(ctx context.Context, tx *sql.Tx, operation string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		d.log.ErrorContext(ctx, "Failed to roll back tx",
			"error", err,
			"operation", operation)
	}
}
