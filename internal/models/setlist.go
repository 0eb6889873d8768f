// Package models defines the core domain entities for the setoracle application.
// These models represent catalog search candidates, performance records as the
// catalog returns them, the flat per-song rows derived from them, and generated
// sequences.
//
// Terminology:
//   - Performance record (setlist): one show with venue, tour and an ordered list of set blocks.
//   - Set block: a contiguous segment of a show. An encore is a set block with an encore index.
//   - Song entry: one performed song within a set block.
package models

import (
	"bytes"
	"encoding/json"
)

// OneOrMany decodes a JSON value that the catalog encodes either as a single
// object or as a list of objects. A bare object becomes a one-element slice;
// null, scalars (such as the "" some feeds emit for an empty element) and scalar
// list items are dropped, so downstream code only ever iterates a slice.
type OneOrMany[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case isObject(trimmed):
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*o = OneOrMany[T]{one}
		return nil

	case len(trimmed) > 0 && trimmed[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		many := make([]T, 0, len(raw))
		for _, item := range raw {
			if !isObject(bytes.TrimSpace(item)) {
				continue
			}
			var v T
			if err := json.Unmarshal(item, &v); err != nil {
				return err
			}
			many = append(many, v)
		}
		*o = many
		return nil

	default:
		*o = nil
		return nil
	}
}

func isObject(data []byte) bool {
	return len(data) > 0 && data[0] == '{'
}

// PerformanceRecord is one show as returned by the history endpoint.
type PerformanceRecord struct {
	ID        string    `json:"id"`
	EventDate string    `json:"eventDate"` // dd-MM-yyyy
	Artist    ArtistRef `json:"artist"`
	Venue     Venue     `json:"venue"`
	Tour      Tour      `json:"tour"`
	Sets      Sets      `json:"sets"`
}

// ArtistRef identifies the performer of a record.
type ArtistRef struct {
	MBID     string `json:"mbid"`
	Name     string `json:"name"`
	SortName string `json:"sortName,omitempty"`
}

// Venue is where a show took place.
type Venue struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	City City   `json:"city"`
}

// City holds the venue location. State falls back to StateCode when empty.
type City struct {
	Name      string  `json:"name"`
	State     string  `json:"state,omitempty"`
	StateCode string  `json:"stateCode,omitempty"`
	Country   Country `json:"country"`
}

// Country of a venue city.
type Country struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}

// Tour the show belonged to, if any.
type Tour struct {
	Name     string `json:"name"`
	Festival bool   `json:"festival,omitempty"`
}

// Sets wraps the set list; the catalog nests it under a "set" key.
type Sets struct {
	Set OneOrMany[SetBlock] `json:"set"`
}

// UnmarshalJSON treats anything other than an object as a show without sets.
func (s *Sets) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if !isObject(trimmed) {
		*s = Sets{}
		return nil
	}
	type plain Sets
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*s = Sets(p)
	return nil
}

// SetBlock is one contiguous segment of a show.
type SetBlock struct {
	Name string `json:"name,omitempty"`
	// Encore is kept raw: the catalog sends a number, occasionally a string, or nothing.
	Encore json.RawMessage       `json:"encore,omitempty"`
	Songs  OneOrMany[SongEntry] `json:"song"`
}

// SongEntry is one song within a set block. Cover is non-nil when the song is a cover.
type SongEntry struct {
	Name  string       `json:"name"`
	Info  string       `json:"info,omitempty"`
	Tape  bool         `json:"tape,omitempty"`
	Cover *CoverArtist `json:"cover,omitempty"`
}

// CoverArtist is the original artist of a covered song.
type CoverArtist struct {
	MBID string `json:"mbid,omitempty"`
	Name string `json:"name"`
}
