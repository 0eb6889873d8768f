package setlistfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/setoracle/internal/models"
)

// fakePages serves canned pages keyed by page number.
type fakePages struct {
	pages map[int]*SetlistPage
	errs  map[int]error
	calls []int
}

func (f *fakePages) FetchSetlistPage(_ context.Context, _ string, page int) (*SetlistPage, error) {
	f.calls = append(f.calls, page)
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	if sp, ok := f.pages[page]; ok {
		return sp, nil
	}
	return &SetlistPage{Page: page}, nil
}

func records(prefix string, n int) []models.PerformanceRecord {
	out := make([]models.PerformanceRecord, n)
	for i := range out {
		out[i] = models.PerformanceRecord{ID: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return out
}

func TestFetchAll_StopsOnShortPageDespiteTotal(t *testing.T) {
	fake := &fakePages{pages: map[int]*SetlistPage{
		1: {Setlists: records("p1", 3), ItemsPerPage: 3, Total: 100},
		2: {Setlists: records("p2", 2), ItemsPerPage: 3, Total: 100},
		3: {Setlists: records("p3", 3), ItemsPerPage: 3, Total: 100},
	}}
	rec := &sleepRecorder{}
	p := NewHistoryPaginator(fake, 500*time.Millisecond, rec.sleep)

	got, err := p.FetchAll(context.Background(), "artist")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, fake.calls)
	require.Len(t, got, 5)
	assert.Equal(t, "p1-0", got[0].ID)
	assert.Equal(t, "p2-1", got[4].ID)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.delays)
}

func TestFetchAll_StopsOnEmptyPage(t *testing.T) {
	fake := &fakePages{pages: map[int]*SetlistPage{
		1: {Setlists: records("p1", 2), ItemsPerPage: 2},
		2: {Setlists: records("p2", 2), ItemsPerPage: 2},
	}}
	rec := &sleepRecorder{}
	p := NewHistoryPaginator(fake, time.Second, rec.sleep)

	got, err := p.FetchAll(context.Background(), "artist")
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, []int{1, 2, 3}, fake.calls)
	assert.Len(t, rec.delays, 2)
}

func TestFetchAll_KeepsDuplicates(t *testing.T) {
	dup := records("same", 2)
	fake := &fakePages{pages: map[int]*SetlistPage{
		1: {Setlists: dup, ItemsPerPage: 2},
		2: {Setlists: dup[:1], ItemsPerPage: 2},
	}}
	p := NewHistoryPaginator(fake, 0, (&sleepRecorder{}).sleep)

	got, err := p.FetchAll(context.Background(), "artist")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, got[0].ID, got[2].ID)
}

func TestFetchAll_PropagatesErrors(t *testing.T) {
	fake := &fakePages{
		pages: map[int]*SetlistPage{1: {Setlists: records("p1", 2), ItemsPerPage: 2}},
		errs:  map[int]error{2: &HTTPError{Status: http.StatusInternalServerError, Endpoint: "/artist/x/setlists"}},
	}
	p := NewHistoryPaginator(fake, 0, (&sleepRecorder{}).sleep)

	_, err := p.FetchAll(context.Background(), "artist")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
}

func TestFetchAll_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/artist/b10bbbfc/setlists", r.URL.Path)
		page, _ := strconv.Atoi(r.URL.Query().Get("p"))

		var sp SetlistPage
		switch page {
		case 1:
			sp = SetlistPage{Setlists: records("a", 2), ItemsPerPage: 2, Total: 3, Page: 1}
		case 2:
			sp = SetlistPage{Setlists: records("b", 1), ItemsPerPage: 2, Total: 3, Page: 2}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sp)
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := newTestClient(t, srv.URL, rec)
	p := NewHistoryPaginator(client, DefaultPageDelay, rec.sleep)

	got, err := p.FetchAll(context.Background(), "b10bbbfc")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFetchSetlistPage_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, &sleepRecorder{})
	sp, err := client.FetchSetlistPage(context.Background(), "missing", 4)
	require.NoError(t, err)
	assert.Empty(t, sp.Setlists)
	assert.Equal(t, 4, sp.Page)
}

func TestFetchAll_MalformedRecordDoesNotAbortPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"setlist":[
			{"id":"a","sets":{"set":[{"song":[{"name":"A"}]}]}},
			{"id":"b","sets":""},
			{"id":"c","sets":{"set":{"song":"oops"}}},
			{"id":"d","tour":"","sets":{"set":[{"song":[{"name":"D"}]}]}}
		],"itemsPerPage":20}`))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	client := newTestClient(t, srv.URL, rec)
	got, err := NewHistoryPaginator(client, 0, rec.sleep).FetchAll(context.Background(), "x")
	require.NoError(t, err)

	// "d" has an undecodable tour and is skipped; "b" and "c" keep their place with no songs.
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	require.Len(t, got[0].Sets.Set, 1)
	assert.Equal(t, "A", got[0].Sets.Set[0].Songs[0].Name)
	assert.Equal(t, "b", got[1].ID)
	assert.Empty(t, got[1].Sets.Set)
	assert.Equal(t, "c", got[2].ID)
	assert.Empty(t, got[2].Sets.Set[0].Songs)
}

func TestFetchAll_MissingPageSizeUsesFirstPage(t *testing.T) {
	fake := &fakePages{pages: map[int]*SetlistPage{
		1: {Setlists: records("p1", 3)},
		2: {Setlists: records("p2", 3)},
		3: {Setlists: records("p3", 1)},
		4: {Setlists: records("p4", 1)},
	}}
	p := NewHistoryPaginator(fake, 0, (&sleepRecorder{}).sleep)

	got, err := p.FetchAll(context.Background(), "artist")
	require.NoError(t, err)
	assert.Len(t, got, 7)
	assert.Equal(t, []int{1, 2, 3}, fake.calls)
}

func TestFetchAll_MissingPageSizeSingleRecordPages(t *testing.T) {
	fake := &fakePages{pages: map[int]*SetlistPage{
		1: {Setlists: records("p1", 1)},
		2: {Setlists: records("p2", 1)},
		3: {Setlists: records("p3", 1)},
	}}
	p := NewHistoryPaginator(fake, 0, (&sleepRecorder{}).sleep)

	got, err := p.FetchAll(context.Background(), "artist")
	require.NoError(t, err)
	// A page as long as the first one cannot prove the end, so paging runs to the empty page.
	assert.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3, 4}, fake.calls)
}
