// Package normalize flattens nested performance records into one row per song.
// It never fails: malformed dates and encore markers fall back to documented
// values instead of erroring, and single-object vs list encodings are already
// unified by models.OneOrMany at decode time.
package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/setoracle/internal/models"
)

const (
	catalogDateLayout = "02-01-2006"
	isoDateLayout     = "2006-01-02"
)

// Flatten emits one row per song entry, in (set index, song index) order as the
// songs appear in the record.
func Flatten(rec models.PerformanceRecord) []models.FlatRow {
	showDate := ConvertDate(rec.EventDate)
	city := rec.Venue.City
	state := city.State
	if state == "" {
		state = city.StateCode
	}

	var rows []models.FlatRow
	for setIdx, set := range rec.Sets.Set {
		encore := ParseEncore(set.Encore)
		for songIdx, song := range set.Songs {
			row := models.FlatRow{
				ShowID:      rec.ID,
				ShowDate:    showDate,
				City:        city.Name,
				State:       state,
				Country:     city.Country.Name,
				Venue:       rec.Venue.Name,
				ArtistName:  rec.Artist.Name,
				TourName:    rec.Tour.Name,
				Festival:    rec.Tour.Festival,
				SetIndex:    setIdx,
				SongIndex:   songIdx,
				SongName:    song.Name,
				EncoreIndex: copyInt(encore),
			}
			if song.Cover != nil {
				row.IsCover = true
				row.CoverArtist = song.Cover.Name
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// FlattenAll flattens records in order and concatenates their rows.
func FlattenAll(recs []models.PerformanceRecord) []models.FlatRow {
	var rows []models.FlatRow
	for _, rec := range recs {
		rows = append(rows, Flatten(rec)...)
	}
	return rows
}

// ConvertDate turns the catalog's dd-MM-yyyy into yyyy-MM-dd. Anything that does
// not parse is returned unchanged.
func ConvertDate(raw string) string {
	t, err := time.Parse(catalogDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return t.Format(isoDateLayout)
}

// ParseEncore reads an encore marker sent as a number or a numeric string.
// Absent, null or non-integer values yield nil.
func ParseEncore(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
