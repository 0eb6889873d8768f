package models

import (
	"errors"
	"time"
)

// Prediction is one generated song sequence for a performer.
type Prediction struct {
	ID          string    `json:"id"` // UUID
	ArtistName  string    `json:"artist_name"`
	Opener      string    `json:"opener"`
	Songs       []string  `json:"songs"`
	Seed        int64     `json:"seed"`
	ShowCount   int       `json:"show_count"` // Shows the model was built from
	GeneratedAt time.Time `json:"generated_at"`
}

// Validate checks that all prediction fields are valid
func (p *Prediction) Validate() error {
	if p.ID == "" {
		return errors.New("prediction ID must not be empty")
	}
	if p.ArtistName == "" {
		return errors.New("artist name must not be empty")
	}
	if len(p.Songs) == 0 {
		return errors.New("prediction must contain at least one song")
	}
	if p.Opener != "" && p.Songs[0] != p.Opener {
		return errors.New("first song must equal the opener")
	}
	if p.GeneratedAt.After(time.Now()) {
		return errors.New("generated at must not be in the future")
	}
	return nil
}
