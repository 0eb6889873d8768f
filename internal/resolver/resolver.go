// Package resolver turns a free-text performer name into one catalog candidate.
//
// Each search page is ranked against the query and truncated, then handed to a
// Selector, an external decision source such as a console prompt. The Selector
// picks a candidate, asks for the next page, or cancels. Paging continues until
// a selection, a cancellation, or a page with no candidates.
package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/models"
)

// DefaultMaxCandidates is how many ranked candidates are presented per page.
const DefaultMaxCandidates = 10

var (
	// ErrCancelled is returned when the selector cancels the search.
	ErrCancelled = eris.New("artist selection cancelled")
	// ErrNotFound is returned when the first page for a query has no candidates.
	ErrNotFound = eris.New("no artists found")
	// ErrNoMorePages is returned when a requested next page has no candidates.
	ErrNoMorePages = eris.New("no more result pages")
	// ErrInvalidSelection is returned when the selector picks an index outside the presented list.
	ErrInvalidSelection = eris.New("invalid selection")
)

// Searcher retrieves one 1-based page of name search results.
type Searcher interface {
	SearchArtists(ctx context.Context, name string, page int) ([]models.Candidate, error)
}

// Action is the kind of decision a Selector returns.
type Action int

const (
	// Select picks Decision.Index.
	Select Action = iota
	// NextPage asks for the following result page.
	NextPage
	// Cancel abandons the search.
	Cancel
)

// Decision is a Selector's answer for one presented page.
type Decision struct {
	Action Action
	Index  int // 1-based into the presented list; only meaningful for Select
}

// Selector is the external decision source.
type Selector interface {
	Present(ctx context.Context, candidates []models.Candidate, allowNextPage bool) (Decision, error)
}

// Resolver drives search paging and selection.
type Resolver struct {
	searcher      Searcher
	selector      Selector
	maxCandidates int
}

// New creates a Resolver presenting at most maxCandidates per page.
func New(searcher Searcher, selector Selector, maxCandidates int) *Resolver {
	if maxCandidates < 1 {
		maxCandidates = DefaultMaxCandidates
	}
	return &Resolver{
		searcher:      searcher,
		selector:      selector,
		maxCandidates: maxCandidates,
	}
}

// Resolve searches for name and returns the selected candidate. It fails with
// ErrCancelled, ErrNotFound, ErrNoMorePages or ErrInvalidSelection, or with the
// searcher's error unchanged apart from context.
func (r *Resolver) Resolve(ctx context.Context, name string) (models.Candidate, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return models.Candidate{}, eris.Wrap(ErrNotFound, "empty artist name")
	}

	for page := 1; ; page++ {
		found, err := r.searcher.SearchArtists(ctx, query, page)
		if err != nil {
			return models.Candidate{}, eris.Wrapf(err, "search %q page %d", query, page)
		}

		if len(found) == 0 {
			if page == 1 {
				return models.Candidate{}, eris.Wrapf(ErrNotFound, "query %q", query)
			}
			return models.Candidate{}, eris.Wrapf(ErrNoMorePages, "query %q page %d", query, page)
		}

		ranked := Rank(found, query, r.maxCandidates)
		logger.Debug("Search %q page %d: %d candidates, presenting %d", query, page, len(found), len(ranked))

		decision, err := r.selector.Present(ctx, ranked, true)
		if err != nil {
			return models.Candidate{}, eris.Wrap(err, "selector failed")
		}

		switch decision.Action {
		case Select:
			if decision.Index < 1 || decision.Index > len(ranked) {
				return models.Candidate{}, eris.Wrapf(ErrInvalidSelection, "index %d of %d", decision.Index, len(ranked))
			}
			chosen := ranked[decision.Index-1]
			logger.Info("Selected artist %s (%s)", chosen.Name, chosen.ID)
			return chosen, nil
		case NextPage:
			continue
		case Cancel:
			return models.Candidate{}, ErrCancelled
		default:
			return models.Candidate{}, eris.Wrapf(ErrInvalidSelection, "unknown action %d", decision.Action)
		}
	}
}

// MatchTier scores how well name matches a lower-cased query: 0 exact,
// 1 prefix, 2 substring, 3 otherwise.
func MatchTier(name, lowerQuery string) int {
	lower := strings.ToLower(name)
	switch {
	case lower == lowerQuery:
		return 0
	case strings.HasPrefix(lower, lowerQuery):
		return 1
	case strings.Contains(lower, lowerQuery):
		return 2
	default:
		return 3
	}
}

// Rank orders candidates by (match tier, lower-cased name) and keeps the first limit.
// The input slice is not modified.
func Rank(candidates []models.Candidate, query string, limit int) []models.Candidate {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		c     models.Candidate
		tier  int
		lower string
	}
	list := make([]scored, len(candidates))
	for i, c := range candidates {
		list[i] = scored{c: c, tier: MatchTier(c.Name, lowerQuery), lower: strings.ToLower(c.Name)}
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].tier != list[j].tier {
			return list[i].tier < list[j].tier
		}
		return list[i].lower < list[j].lower
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	out := make([]models.Candidate, len(list))
	for i, s := range list {
		out[i] = s.c
	}
	return out
}
