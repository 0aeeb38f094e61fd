// Package projection computes the grouped, filtered read model consumed by
// presentation. It is read-only over the store and reflects store state at
// call time; unread counts come from the counters the store maintains on
// write, not from scanning articles.
package projection

import (
	"context"
	"fmt"

	"feedhive/internal/database"
	"feedhive/internal/domain"

	"github.com/samber/lo"
)

// FeedView is a feed annotated for display.
type FeedView struct {
	domain.Feed
}

// GroupView is a group with its feeds and the derived unread total.
type GroupView struct {
	domain.Group
	Feeds       []FeedView
	UnreadCount int64
}

// View is the full projection for one (account, FilterState) pair. Articles
// is populated only when the filter selects a feed or group scope.
type View struct {
	Groups      []GroupView
	UnreadCount int64
	Articles    []domain.Article
}

type Engine struct {
	db *database.Database
}

func New(db *database.Database) *Engine {
	return &Engine{db: db}
}

// Build assembles the grouped feed list with unread counts and, when the
// filter scopes to a feed or group, the matching ordered article list.
func (e *Engine) Build(
	ctx context.Context,
	accountID int64,
	state domain.FilterState,
) (*View, error) {
	groups, err := e.db.ListGroupsWithFeeds(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groupViews := lo.Map(groups, func(g domain.GroupWithFeeds, _ int) GroupView {
		feeds := lo.Map(g.Feeds, func(f domain.Feed, _ int) FeedView {
			return FeedView{Feed: f}
		})

		return GroupView{
			Group: g.Group,
			Feeds: feeds,
			UnreadCount: lo.SumBy(feeds, func(f FeedView) int64 {
				return f.UnreadCount
			}),
		}
	})

	view := &View{
		Groups: groupViews,
		UnreadCount: lo.SumBy(groupViews, func(g GroupView) int64 {
			return g.UnreadCount
		}),
	}

	if state.FeedID == 0 && state.GroupID == 0 {
		return view, nil
	}

	scope := database.ArticleScope{
		AccountID: accountID,
		GroupID:   state.GroupID,
		FeedID:    state.FeedID,
	}

	view.Articles, err = e.db.ListArticles(ctx, scope, state.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	return view, nil
}

// Articles returns just the ordered article list for the filter, scoped to
// the whole account when no feed or group is selected.
func (e *Engine) Articles(
	ctx context.Context,
	accountID int64,
	state domain.FilterState,
) ([]domain.Article, error) {
	scope := database.ArticleScope{
		AccountID: accountID,
		GroupID:   state.GroupID,
		FeedID:    state.FeedID,
	}

	articles, err := e.db.ListArticles(ctx, scope, state.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	return articles, nil
}
