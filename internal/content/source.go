// Package content provides the article corpus behind signal evaluation:
// a store for matching and counting articles, and a hub that fans out
// change events to the engine and to streaming clients.
package content

import (
	"context"
	"time"

	"newswatch/internal/filter"
	"newswatch/internal/metric"
	"newswatch/internal/models"
)

// Source is the engine's view of the article corpus.
type Source interface {
	// FindMatching returns up to limit articles matching expr, newest first,
	// restricted to articles published after since when since is non-nil.
	// The int result counts filter warnings raised while matching.
	FindMatching(ctx context.Context, expr *filter.Expr, since *time.Time, limit int) ([]models.Article, int, error)

	metric.CountSource
}
