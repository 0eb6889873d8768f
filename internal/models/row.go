package models

import "errors"

// Columns is the fixed, ordered column set of the flat row stream.
var Columns = []string{
	"show_id",
	"show_date",
	"city",
	"state",
	"country",
	"venue",
	"artist_name",
	"tour_name",
	"festival_flag",
	"set_index",
	"song_index",
	"song_name",
	"is_cover",
	"cover_artist",
	"encore_index",
}

// FlatRow is one performed song with its show context denormalized onto it.
// Rows of a show are emitted in (SetIndex, SongIndex) order; that order defines
// which songs are adjacent for the transition model.
type FlatRow struct {
	ShowID      string `json:"show_id"`
	ShowDate    string `json:"show_date"` // yyyy-MM-dd, or the raw catalog value when unparseable
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Venue       string `json:"venue"`
	ArtistName  string `json:"artist_name"`
	TourName    string `json:"tour_name"`
	Festival    bool   `json:"festival_flag"`
	SetIndex    int    `json:"set_index"`
	SongIndex   int    `json:"song_index"`
	SongName    string `json:"song_name"`
	IsCover     bool   `json:"is_cover"`
	CoverArtist string `json:"cover_artist"` // Empty unless IsCover
	EncoreIndex *int   `json:"encore_index"` // Nil for main sets
}

// Validate checks that all row fields are consistent.
func (r *FlatRow) Validate() error {
	if r.ShowID == "" {
		return errors.New("show ID must not be empty")
	}
	if r.SetIndex < 0 {
		return errors.New("set index must not be negative")
	}
	if r.SongIndex < 0 {
		return errors.New("song index must not be negative")
	}
	if !r.IsCover && r.CoverArtist != "" {
		return errors.New("cover artist requires is_cover")
	}
	return nil
}

// IsOpener reports whether the row is the first song of the first set.
func (r *FlatRow) IsOpener() bool {
	return r.SetIndex == 0 && r.SongIndex == 0
}
