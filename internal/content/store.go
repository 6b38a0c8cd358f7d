package content

import (
	"context"
	"time"

	"go.uber.org/zap"

	"newswatch/internal/filter"
	"newswatch/internal/models"
	"newswatch/internal/repository"
)

// Store implements Source on top of the article repository. Boolean filters
// are applied in memory over bounded page scans; unfiltered counts go
// straight to SQL.
type Store struct {
	Repo     repository.Repository
	Logger   *zap.Logger
	PageSize int
	MaxScan  int
}

func (s *Store) pageSize() int {
	if s != nil && s.PageSize > 0 {
		return s.PageSize
	}
	return 200
}

func (s *Store) maxScan() int {
	if s != nil && s.MaxScan > 0 {
		return s.MaxScan
	}
	return 500
}

func (s *Store) FindMatching(ctx context.Context, expr *filter.Expr, since *time.Time, limit int) ([]models.Article, int, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, nil
	}
	size := s.pageSize()
	maxRows := s.maxScan()
	asc := false
	matched := make([]models.Article, 0, 16)
	warnings := 0
	scanned := 0
	offset := 0
	for {
		items, err := s.Repo.ListArticles(ctx, repository.ListArticlesParams{
			Limit:   size,
			Offset:  offset,
			Since:   since,
			OrderBy: "published_at",
			Asc:     &asc,
		})
		if err != nil {
			return nil, warnings, err
		}
		for _, item := range items {
			scanned++
			ok, warn := filter.Matches(expr, filter.FieldsFromArticle(item))
			warnings += warn
			if !ok {
				continue
			}
			matched = append(matched, item)
			if limit > 0 && len(matched) >= limit {
				return matched, warnings, nil
			}
		}
		if len(items) < size || scanned >= maxRows {
			return matched, warnings, nil
		}
		offset += size
	}
}

// CountInWindow counts articles published in (from, to] that match expr.
// A nil expr counts every article in the window without scanning rows.
func (s *Store) CountInWindow(ctx context.Context, expr *filter.Expr, from, to time.Time) (float64, error) {
	if s == nil || s.Repo == nil {
		return 0, nil
	}
	if expr == nil {
		total, err := s.Repo.CountArticles(ctx, repository.ListArticlesParams{Since: &from, Until: &to})
		if err != nil {
			return 0, err
		}
		return float64(total), nil
	}
	size := s.pageSize()
	asc := true
	count := 0
	warnings := 0
	offset := 0
	for {
		items, err := s.Repo.ListArticles(ctx, repository.ListArticlesParams{
			Limit:   size,
			Offset:  offset,
			Since:   &from,
			Until:   &to,
			OrderBy: "published_at",
			Asc:     &asc,
		})
		if err != nil {
			return 0, err
		}
		for _, item := range items {
			ok, warn := filter.Matches(expr, filter.FieldsFromArticle(item))
			warnings += warn
			if ok {
				count++
			}
		}
		if len(items) < size {
			break
		}
		offset += size
	}
	if warnings > 0 && s.Logger != nil {
		s.Logger.Warn("filter raised warnings while counting", zap.Int("warnings", warnings))
	}
	return float64(count), nil
}

// DailyCounts returns one matching count per 24h bucket ending at end,
// oldest bucket first.
func (s *Store) DailyCounts(ctx context.Context, expr *filter.Expr, days int, end time.Time) ([]float64, error) {
	if s == nil || days <= 0 {
		return nil, nil
	}
	out := make([]float64, 0, days)
	for i := days - 1; i >= 0; i-- {
		to := end.Add(-time.Duration(i) * 24 * time.Hour)
		from := to.Add(-24 * time.Hour)
		n, err := s.CountInWindow(ctx, expr, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

var _ Source = (*Store)(nil)
