// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// LiteratureReference is one bibliographic record from the project description.
// The core treats references as read-only; the reference loader owns them.
type LiteratureReference struct {
	// ID is the stable identifier (e.g. "PMID:12345678").
	ID string `json:"id" yaml:"id"`

	// Title is the primary title.
	Title string `json:"title" yaml:"title"`

	// AltTitles lists alternate titles (translated, abbreviated, preprint).
	AltTitles []string `json:"alt_titles,omitempty" yaml:"alt_titles,omitempty"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`
}

// Titles returns the primary title followed by the alternates, skipping blanks.
func (r LiteratureReference) Titles() []string {
	out := make([]string, 0, 1+len(r.AltTitles))
	if r.Title != "" {
		out = append(out, r.Title)
	}
	for _, t := range r.AltTitles {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
