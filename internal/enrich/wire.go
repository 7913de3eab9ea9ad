package enrich

import (
	"encoding/json"
	"fmt"
	"io"
)

// wireLookup is the crate service's JSON response shape.
type wireLookup struct {
	Genres      []string `json:"genres"`
	Descriptors []string `json:"descriptors"`
	URL         string   `json:"url"`
}

func decodeLookup(body io.Reader) (*Lookup, error) {
	var w wireLookup

	if err := json.NewDecoder(body).Decode(&w); err != nil {
		return nil, fmt.Errorf("enrich: decode response: %w", err)
	}

	return &Lookup{Genres: w.Genres, Descriptors: w.Descriptors, URL: w.URL}, nil
}
