package models

import "errors"

// Candidate is one performer returned by a catalog name search.
type Candidate struct {
	ID             string `json:"mbid"` // Opaque catalog identifier
	Name           string `json:"name"`
	SortName       string `json:"sort_name,omitempty"`
	CountryCode    string `json:"country_code,omitempty"`
	Disambiguation string `json:"disambiguation,omitempty"`
}

// Validate checks that the candidate can be used to fetch a history.
func (c *Candidate) Validate() error {
	if c.ID == "" {
		return errors.New("candidate ID must not be empty")
	}
	if c.Name == "" {
		return errors.New("candidate name must not be empty")
	}
	return nil
}

// Label renders the candidate for a selection list, e.g. "Pearl Jam (US) - grunge band".
func (c *Candidate) Label() string {
	label := c.Name
	if c.CountryCode != "" {
		label += " (" + c.CountryCode + ")"
	}
	if c.Disambiguation != "" {
		label += " - " + c.Disambiguation
	}
	return label
}
