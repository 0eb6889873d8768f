package setlistfm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/models"
)

const searchArtistsEndpoint = "/search/artists"

// artistSearchResponse is the search endpoint body. There is no reliable page
// count; an empty artist list is the only end-of-results signal.
type artistSearchResponse struct {
	Artists      []artistWire `json:"artist"`
	Total        int          `json:"total"`
	Page         int          `json:"page"`
	ItemsPerPage int          `json:"itemsPerPage"`
}

type artistWire struct {
	MBID           string          `json:"mbid"`
	Name           string          `json:"name"`
	SortName       string          `json:"sortName"`
	Disambiguation string          `json:"disambiguation"`
	Country        json.RawMessage `json:"country"` // "GB" or {"code":"GB",...}
}

// SearchArtists returns the candidates on one 1-based page of an artist name search.
// A page with no results (including the catalog's 404 for an empty page) yields an
// empty slice and no error.
func (c *Client) SearchArtists(ctx context.Context, name string, page int) ([]models.Candidate, error) {
	query := url.Values{}
	query.Set("artistName", name)
	query.Set("p", strconv.Itoa(page))
	if c.cfg.SearchSort != "" {
		query.Set("sort", c.cfg.SearchSort)
	}

	body, err := c.Request(ctx, searchArtistsEndpoint, query)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			logger.Debug("Search for %q page %d returned 404, treating as empty", name, page)
			return nil, nil
		}
		return nil, err
	}

	var resp artistSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal artist search")
	}

	candidates := make([]models.Candidate, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		candidates = append(candidates, models.Candidate{
			ID:             a.MBID,
			Name:           a.Name,
			SortName:       a.SortName,
			CountryCode:    countryCode(a.Country),
			Disambiguation: a.Disambiguation,
		})
	}
	return candidates, nil
}

// countryCode accepts either a bare code string or a country object.
func countryCode(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var code string
		if err := json.Unmarshal(raw, &code); err == nil {
			return code
		}
	case '{':
		var obj struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			return obj.Code
		}
	}
	return ""
}
