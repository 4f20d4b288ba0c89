// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var idReplacer = strings.NewReplacer("/", "-", ":", "-", "\\", "-")

// Slug returns a filesystem-safe filename stem for a reference identifier.
// "PMID:12345678" becomes "PMID-12345678" and "doi:10.1000/xyz" becomes
// "doi-10.1000-xyz". Identifiers with nothing usable hash to "ref-<hex>".
func Slug(id string) string {
	s := idReplacer.Replace(strings.TrimSpace(id))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			r = '-'
		}
		if r == '-' && lastDash {
			continue
		}
		lastDash = r == '-'
		b.WriteRune(r)
	}
	slug := strings.Trim(b.String(), "-._")
	if slug == "" {
		h := sha256.Sum256([]byte(id))
		return fmt.Sprintf("ref-%x", h[:8])
	}
	return slug
}

// FindByReference lists the files in storageDir organized for id, matching
// the stem <prefix><slug> with any extension. Results are sorted.
func FindByReference(storageDir, prefix, id string) ([]string, error) {
	entries, err := os.ReadDir(storageDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading storage directory")
	}
	stem := prefix + Slug(id)
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == stem {
			out = append(out, filepath.Join(storageDir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
