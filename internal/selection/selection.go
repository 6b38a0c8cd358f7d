// Package selection resolves a signal's selection policy: which of the
// matched articles ride along on a notification and what digest line is
// rendered for them.
package selection

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"newswatch/internal/models"
	"newswatch/internal/summarizer"
)

// FallbackDigest is recorded when no digest could be produced, either
// because nothing matched or because the summarizer was unavailable.
const FallbackDigest = "summary unavailable"

// Summarizer is the external digest collaborator behind the AI summary
// policy.
type Summarizer interface {
	Summarize(ctx context.Context, items []summarizer.Item) (*summarizer.Digest, error)
}

// Result is one resolved selection: the top articles in policy order and the
// digest to attach. CitedIDs is only set when the summarizer answered and
// named the articles it used.
type Result struct {
	Items        []models.Article
	Digest       string
	DigestStatus string
	CitedIDs     []uint64
}

// Resolver ranks a matched article set per policy. Limit caps the attached
// list; zero means 10.
type Resolver struct {
	Summarizer Summarizer
	Logger     *zap.Logger
	Limit      int
}

func (r *Resolver) limit() int {
	if r != nil && r.Limit > 0 {
		return r.Limit
	}
	return 10
}

// Select resolves policy over matched. It never fails: a summarizer outage
// degrades to the latest ordering with the result flagged unavailable, so
// one flaky collaborator cannot sink an otherwise positive evaluation.
func (r *Resolver) Select(ctx context.Context, policy string, matched []models.Article) Result {
	if len(matched) == 0 {
		return Result{Digest: FallbackDigest, DigestStatus: models.DigestStatusUnavailable}
	}
	switch policy {
	case models.SelectionPolicyMostRelevant:
		items := topN(matched, r.limit(), moreRelevant)
		return Result{Items: items, Digest: headline(items[0]), DigestStatus: models.DigestStatusReady}
	case models.SelectionPolicyAISummary:
		return r.summarize(ctx, topN(matched, r.limit(), newer))
	default:
		items := topN(matched, r.limit(), newer)
		return Result{Items: items, Digest: headline(items[0]), DigestStatus: models.DigestStatusReady}
	}
}

func (r *Resolver) summarize(ctx context.Context, items []models.Article) Result {
	if r != nil && r.Summarizer != nil {
		req := make([]summarizer.Item, 0, len(items))
		for _, a := range items {
			req = append(req, summarizer.Item{
				ID:          a.ID,
				Title:       a.Title,
				URL:         a.URL,
				Source:      a.Source,
				PublishedAt: a.PublishedAt,
			})
		}
		digest, err := r.Summarizer.Summarize(ctx, req)
		if err == nil {
			return Result{
				Items:        items,
				Digest:       digest.Summary,
				DigestStatus: models.DigestStatusReady,
				CitedIDs:     digest.CitedIDs,
			}
		}
		if r.Logger != nil {
			r.Logger.Warn("summarizer failed, falling back to latest", zap.Error(err))
		}
	}
	return Result{Items: items, Digest: FallbackDigest, DigestStatus: models.DigestStatusUnavailable}
}

// topN sorts a copy of matched and cuts it to n; the input is never mutated.
func topN(matched []models.Article, n int, before func(a, b *models.Article) bool) []models.Article {
	out := make([]models.Article, len(matched))
	copy(out, matched)
	sort.SliceStable(out, func(i, j int) bool { return before(&out[i], &out[j]) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// newer orders newest first, ids breaking publish-time ties so the order is
// the same on every run.
func newer(a, b *models.Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.After(b.PublishedAt)
	}
	return a.ID > b.ID
}

// moreRelevant orders by score descending. Unscored articles rank below
// every scored one and keep the latest ordering among themselves.
func moreRelevant(a, b *models.Article) bool {
	as, bs := relevance(a), relevance(b)
	if as != bs {
		return as > bs
	}
	return newer(a, b)
}

func relevance(a *models.Article) float64 {
	if a.RelevanceScore != nil {
		return *a.RelevanceScore
	}
	return -1
}

func headline(a models.Article) string {
	if a.URL != "" {
		return a.Title + " (" + a.URL + ")"
	}
	return a.Title
}
