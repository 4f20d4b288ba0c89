// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refs loads literature references from the project's reference
// list. The file is YAML: either a bare sequence of references or a mapping
// with a "references" key, so a project description can carry other fields
// next to its references.
package refs

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// Loader produces the current set of references.
type Loader interface {
	Load(ctx context.Context) ([]types.LiteratureReference, error)
}

// FileLoader reads references from a YAML file on every Load.
type FileLoader struct {
	Path string
}

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context) ([]types.LiteratureReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(l.Path)
}

// entry is the on-disk form of a reference. A bare PubMed number may be
// given instead of an identifier.
type entry struct {
	ID        string   `yaml:"id"`
	PMID      string   `yaml:"pmid"`
	Title     string   `yaml:"title"`
	AltTitles []string `yaml:"alt_titles"`
	Authors   []string `yaml:"authors"`
}

type project struct {
	References []entry `yaml:"references"`
}

// LoadFile reads and validates the reference list at path.
func LoadFile(path string) ([]types.LiteratureReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading reference list")
	}
	return Parse(data)
}

// Parse decodes a reference list. Every reference needs an identifier and
// at least one title; identifiers must be unique.
func Parse(data []byte) ([]types.LiteratureReference, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, "parsing reference list")
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var entries []entry
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, errors.Wrap(err, "decoding references")
		}
	case yaml.MappingNode:
		var p project
		if err := doc.Decode(&p); err != nil {
			return nil, errors.Wrap(err, "decoding project references")
		}
		entries = p.References
	default:
		return nil, errors.New("reference list must be a sequence or a mapping with a references key")
	}

	refs := make([]types.LiteratureReference, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if id == "" && strings.TrimSpace(e.PMID) != "" {
			id = "PMID:" + strings.TrimSpace(e.PMID)
		}
		if id == "" {
			return nil, errors.Newf("reference %d: missing id", i+1)
		}
		if prev, dup := seen[id]; dup {
			return nil, errors.Newf("reference %d: duplicate id %q (first at %d)", i+1, id, prev)
		}
		seen[id] = i + 1

		ref := types.LiteratureReference{
			ID:        id,
			Title:     strings.TrimSpace(e.Title),
			AltTitles: e.AltTitles,
			Authors:   e.Authors,
		}
		if len(ref.Titles()) == 0 {
			return nil, errors.Newf("reference %q: no title", id)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
