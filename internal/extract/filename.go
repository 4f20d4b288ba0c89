// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	// "paper (1)", "paper(2)", "paper copy", "paper copy 3"
	counterSuffix = regexp.MustCompile(`(?i)\s*(\(\d+\)|\bcopy(\s+\d+)?)\s*$`)
	separators    = regexp.MustCompile(`[_\-.+~]+`)
	versionToken  = regexp.MustCompile(`(?i)^(v|ver|rev)\d+[a-z]?$`)
)

var noiseTokens = map[string]bool{
	"final":      true,
	"draft":      true,
	"copy":       true,
	"download":   true,
	"downloaded": true,
	"downloads":  true,
	"fulltext":   true,
	"pdf":        true,
	"version":    true,
}

// FilenameTitle turns a document file name into a title guess. It strips
// the extension, download counters, separators and noise tokens such as
// version suffixes. ok is false when what remains does not look like a
// title: fewer than minWords words containing letters, or mostly digits.
func FilenameTitle(path string, minWords int) (title string, ok bool) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for {
		trimmed := counterSuffix.ReplaceAllString(stem, "")
		if trimmed == stem {
			break
		}
		stem = trimmed
	}
	stem = separators.ReplaceAllString(stem, " ")

	var kept []string
	wordy := 0
	letters, digits := 0, 0
	for _, tok := range strings.Fields(stem) {
		tok = strings.Trim(tok, "()[]{}")
		if tok == "" || noiseTokens[strings.ToLower(tok)] || versionToken.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)

		hasLetter := false
		tokDigits := 0
		for _, r := range tok {
			switch {
			case unicode.IsLetter(r):
				letters++
				hasLetter = true
			case unicode.IsDigit(r):
				digits++
				tokDigits++
			}
		}
		// Identifier-like tokens ("s41586") do not count as words.
		if hasLetter && tokDigits*2 < len([]rune(tok)) {
			wordy++
		}
	}

	if wordy < minWords || digits >= letters {
		return "", false
	}
	return strings.Join(kept, " "), true
}
