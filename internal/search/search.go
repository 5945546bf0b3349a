// Package search implements deterministic multi-field ranking over the
// store's index. There is no learned ranking and no randomness: identical
// (query, item set) inputs always produce identical ordered output.
package search

import (
	"sort"
	"strings"

	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

// Weights are the scoring contributions per match tier. They are a tunable
// constant: the field priority (title > tags > title substring > body
// substring) is fixed, the numbers are not load-bearing beyond that order.
type Weights struct {
	// TitleExact scores a case-insensitive exact title match.
	TitleExact float64

	// TagExact scores a case-insensitive exact match on any tag.
	TagExact float64

	// TitleSubstring scores the query appearing inside the title.
	TitleSubstring float64

	// BodySubstring scores the query appearing inside the body.
	BodySubstring float64
}

// DefaultWeights returns the standard tier weights.
func DefaultWeights() Weights {
	return Weights{
		TitleExact:     100,
		TagExact:       60,
		TitleSubstring: 30,
		BodySubstring:  10,
	}
}

// Result pairs a matched item with its relevance score.
type Result struct {
	Item  *types.MemoryItem
	Score float64
}

// Engine ranks items from a snapshot source.
type Engine struct {
	source  storage.Snapshotter
	weights Weights
}

// NewEngine creates a search engine over the given snapshot source with the
// default weights.
func NewEngine(source storage.Snapshotter) *Engine {
	return &Engine{source: source, weights: DefaultWeights()}
}

// NewEngineWithWeights creates a search engine with custom tier weights.
func NewEngineWithWeights(source storage.Snapshotter, w Weights) *Engine {
	return &Engine{source: source, weights: w}
}

// Search scores every non-archived item in the given categories (all
// categories when none are given) against the query and returns the top
// limit results. Ties break by created_at descending, then id ascending, so
// the ordering is total and reproducible.
func (e *Engine) Search(query string, categories []types.Category, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var results []Result
	for _, item := range e.source.Snapshot(categories...) {
		score := e.score(q, item)
		if score <= 0 {
			continue
		}
		results = append(results, Result{Item: item, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		a, b := results[i].Item, results[j].Item
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// score computes the weighted sum of match tiers for one item. Each tier
// contributes at most once; an exact title match also satisfies the title
// substring tier, which keeps exact matches strictly above partial ones.
func (e *Engine) score(q string, item *types.MemoryItem) float64 {
	var score float64

	title := strings.ToLower(item.Title)
	if title == q {
		score += e.weights.TitleExact
	}
	for _, tag := range item.Tags {
		if strings.ToLower(tag) == q {
			score += e.weights.TagExact
			break
		}
	}
	if strings.Contains(title, q) {
		score += e.weights.TitleSubstring
	}
	if strings.Contains(strings.ToLower(item.Body), q) {
		score += e.weights.BodySubstring
	}
	return score
}
