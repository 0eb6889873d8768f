package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/setoracle/internal/models"
)

type fakeSearcher struct {
	pages map[int][]models.Candidate
	err   error
	calls []int
}

func (f *fakeSearcher) SearchArtists(_ context.Context, _ string, page int) ([]models.Candidate, error) {
	f.calls = append(f.calls, page)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

// scriptedSelector returns its decisions in order and records what it was shown.
type scriptedSelector struct {
	decisions []Decision
	shown     [][]models.Candidate
}

func (s *scriptedSelector) Present(_ context.Context, candidates []models.Candidate, allowNextPage bool) (Decision, error) {
	if !allowNextPage {
		return Decision{}, errors.New("next page should always be offered")
	}
	s.shown = append(s.shown, candidates)
	if len(s.decisions) == 0 {
		return Decision{Action: Cancel}, nil
	}
	d := s.decisions[0]
	s.decisions = s.decisions[1:]
	return d, nil
}

func names(cs []models.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func cands(ns ...string) []models.Candidate {
	out := make([]models.Candidate, len(ns))
	for i, n := range ns {
		out[i] = models.Candidate{ID: fmt.Sprintf("id-%d", i), Name: n}
	}
	return out
}

func TestMatchTier(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"Beatles", 0},
		{"BEATLES", 0},
		{"Beatles Tribute Band", 1},
		{"The Beatles", 2},
		{"Rolling Stones", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchTier(tt.name, "beatles"), tt.name)
	}
}

func TestRank(t *testing.T) {
	got := Rank(cands("The Beatles", "Beatles Tribute Band", "Beatles"), "Beatles", 10)
	assert.Equal(t, []string{"Beatles", "Beatles Tribute Band", "The Beatles"}, names(got))
}

func TestRank_AlphabeticalWithinTier(t *testing.T) {
	got := Rank(cands("zed beatles", "Abba", "a beatles cover", "beatlesque"), "beatles", 10)
	assert.Equal(t, []string{"beatlesque", "a beatles cover", "zed beatles", "Abba"}, names(got))
}

func TestRank_Truncates(t *testing.T) {
	many := make([]string, 15)
	for i := range many {
		many[i] = fmt.Sprintf("Band %02d", i)
	}
	got := Rank(cands(many...), "band", 10)
	require.Len(t, got, 10)
	assert.Equal(t, "Band 00", got[0].Name)
	assert.Equal(t, "Band 09", got[9].Name)
}

func TestResolve_SelectOnFirstPage(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]models.Candidate{
		1: cands("The Beatles", "Beatles"),
	}}
	selector := &scriptedSelector{decisions: []Decision{{Action: Select, Index: 2}}}

	got, err := New(searcher, selector, 10).Resolve(context.Background(), "Beatles")
	require.NoError(t, err)
	assert.Equal(t, "The Beatles", got.Name)
	assert.Equal(t, []string{"Beatles", "The Beatles"}, names(selector.shown[0]))
}

func TestResolve_NextPageThenSelect(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]models.Candidate{
		1: cands("Beatles Revival"),
		2: cands("The Beatles"),
	}}
	selector := &scriptedSelector{decisions: []Decision{{Action: NextPage}, {Action: Select, Index: 1}}}

	got, err := New(searcher, selector, 10).Resolve(context.Background(), "beatles")
	require.NoError(t, err)
	assert.Equal(t, "The Beatles", got.Name)
	assert.Equal(t, []int{1, 2}, searcher.calls)
}

func TestResolve_Cancelled(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]models.Candidate{1: cands("Beatles")}}
	selector := &scriptedSelector{decisions: []Decision{{Action: Cancel}}}

	_, err := New(searcher, selector, 10).Resolve(context.Background(), "Beatles")
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestResolve_NotFound(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]models.Candidate{}}
	selector := &scriptedSelector{}

	_, err := New(searcher, selector, 10).Resolve(context.Background(), "Nobody")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	assert.Empty(t, selector.shown)
}

func TestResolve_NoMorePages(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]models.Candidate{1: cands("Beatles")}}
	selector := &scriptedSelector{decisions: []Decision{{Action: NextPage}}}

	_, err := New(searcher, selector, 10).Resolve(context.Background(), "Beatles")
	assert.True(t, errors.Is(err, ErrNoMorePages), "got %v", err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestResolve_InvalidSelection(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]models.Candidate{1: cands("Beatles")}}

	for _, idx := range []int{0, 2, -1} {
		selector := &scriptedSelector{decisions: []Decision{{Action: Select, Index: idx}}}
		_, err := New(searcher, selector, 10).Resolve(context.Background(), "Beatles")
		assert.True(t, errors.Is(err, ErrInvalidSelection), "index %d: got %v", idx, err)
	}
}

func TestResolve_SearchErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	searcher := &fakeSearcher{err: boom}

	_, err := New(searcher, &scriptedSelector{}, 10).Resolve(context.Background(), "Beatles")
	assert.True(t, errors.Is(err, boom))
}

func TestResolve_EmptyName(t *testing.T) {
	searcher := &fakeSearcher{}
	_, err := New(searcher, &scriptedSelector{}, 10).Resolve(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, searcher.calls)
}
