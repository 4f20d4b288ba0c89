// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSequence(t *testing.T) {
	data := []byte(`
- id: PMID:12345678
  title: Role of PTEN in apoptosis
  authors: [A. Smith, B. Jones]
- pmid: "23456789"
  title: Wnt signaling in development
  alt_titles:
    - Wnt signalling in development
`)
	refs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "PMID:12345678", refs[0].ID)
	assert.Equal(t, []string{"A. Smith", "B. Jones"}, refs[0].Authors)
	assert.Equal(t, "PMID:23456789", refs[1].ID)
	assert.Equal(t, []string{"Wnt signaling in development", "Wnt signalling in development"}, refs[1].Titles())
}

func TestParseProjectMapping(t *testing.T) {
	data := []byte(`
name: Tumor suppressor review
references:
  - id: doi:10.1000/xyz
    title: Loss of PTEN drives tumor growth
`)
	refs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "doi:10.1000/xyz", refs[0].ID)
}

func TestParseEmpty(t *testing.T) {
	refs, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"missing id", "- title: Something\n", "missing id"},
		{"duplicate id", "- {id: A, title: x one}\n- {id: A, title: x two}\n", "duplicate id"},
		{"no title", "- id: A\n", "no title"},
		{"scalar", "just a string\n", "sequence or a mapping"},
		{"bad yaml", "- [unclosed\n", "parsing reference list"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- {id: A, title: Role of PTEN in apoptosis}\n"), 0o644))

	refs, err := FileLoader{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "A", refs[0].ID)

	_, err = FileLoader{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Load(context.Background())
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileLoader{Path: path}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
