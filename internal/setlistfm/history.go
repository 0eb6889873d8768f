package setlistfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/models"
)

// DefaultPageDelay is the politeness pause between history pages.
const DefaultPageDelay = 500 * time.Millisecond

// SetlistPage is one page of an artist's history. Total is advisory only.
type SetlistPage struct {
	Setlists     []models.PerformanceRecord `json:"setlist"`
	Total        int                        `json:"total"`
	Page         int                        `json:"page"`
	ItemsPerPage int                        `json:"itemsPerPage"`
}

// FetchSetlistPage retrieves one 1-based page of an artist's setlists.
// The catalog's 404 for a page past the end is returned as an empty page.
func (c *Client) FetchSetlistPage(ctx context.Context, artistID string, page int) (*SetlistPage, error) {
	endpoint := fmt.Sprintf("/artist/%s/setlists", url.PathEscape(artistID))
	query := url.Values{}
	query.Set("p", strconv.Itoa(page))

	body, err := c.Request(ctx, endpoint, query)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return &SetlistPage{Page: page}, nil
		}
		return nil, err
	}

	var wire struct {
		Setlist      []json.RawMessage `json:"setlist"`
		Total        int               `json:"total"`
		Page         int               `json:"page"`
		ItemsPerPage int               `json:"itemsPerPage"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, eris.Wrapf(err, "failed to unmarshal setlist page %d", page)
	}

	sp := &SetlistPage{Total: wire.Total, Page: wire.Page, ItemsPerPage: wire.ItemsPerPage}
	for i, raw := range wire.Setlist {
		var rec models.PerformanceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Warn("Skipping undecodable setlist %d on page %d: %v", i, page, err)
			continue
		}
		sp.Setlists = append(sp.Setlists, rec)
	}
	return sp, nil
}

// PageFetcher retrieves a single history page.
type PageFetcher interface {
	FetchSetlistPage(ctx context.Context, artistID string, page int) (*SetlistPage, error)
}

// HistoryPaginator walks every history page of an artist.
type HistoryPaginator struct {
	fetcher   PageFetcher
	pageDelay time.Duration
	sleep     SleepFunc
}

// NewHistoryPaginator creates a paginator that pauses pageDelay between pages.
func NewHistoryPaginator(fetcher PageFetcher, pageDelay time.Duration, sleep SleepFunc) *HistoryPaginator {
	if sleep == nil {
		sleep = Sleep
	}
	return &HistoryPaginator{
		fetcher:   fetcher,
		pageDelay: pageDelay,
		sleep:     sleep,
	}
}

// FetchAll returns every record of the artist in page order. It stops after the
// first page that is empty or shorter than the declared items-per-page (or, when
// none is declared, shorter than the first page); the advisory total never
// decides termination. Records repeated across pages are
// passed through unchanged.
func (p *HistoryPaginator) FetchAll(ctx context.Context, artistID string) ([]models.PerformanceRecord, error) {
	var records []models.PerformanceRecord
	pageSize := 0

	for page := 1; ; page++ {
		if page > 1 {
			if err := p.sleep(ctx, p.pageDelay); err != nil {
				return nil, eris.Wrap(err, "page delay interrupted")
			}
		}

		sp, err := p.fetcher.FetchSetlistPage(ctx, artistID, page)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to fetch setlist page %d", page)
		}

		records = append(records, sp.Setlists...)
		logger.Debug("Fetched setlist page %d: %d records (declared per page %d, advisory total %d)",
			page, len(sp.Setlists), sp.ItemsPerPage, sp.Total)

		// Without a declared page size, the first page's length stands in for it.
		if pageSize == 0 {
			pageSize = sp.ItemsPerPage
			if pageSize == 0 {
				pageSize = len(sp.Setlists)
			}
		}
		if len(sp.Setlists) == 0 || len(sp.Setlists) < pageSize {
			break
		}
	}

	logger.Info("Fetched %d setlists for artist %s", len(records), artistID)
	return records, nil
}
