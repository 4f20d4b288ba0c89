// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"
)

type documentKind int

const (
	kindOther documentKind = iota
	kindPDF
	kindMarkdown
	kindText
)

// headerLimit bounds how much of a text document is read to find a title.
const headerLimit = 64 << 10

func docKind(path string) documentKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return kindPDF
	case ".md", ".markdown":
		return kindMarkdown
	case ".txt":
		return kindText
	default:
		return kindOther
	}
}

var junkTitle = regexp.MustCompile(`(?i)^(untitled|title|no title|none|unknown|document\d*|microsoft word - .*|.*\.(docx?|pdf|tex|dvi|rtf|indd))$`)

// isJunkTitle rejects metadata titles that authoring tools fill in by default.
func isJunkTitle(title string) bool {
	title = strings.TrimSpace(title)
	if len([]rune(title)) < 4 {
		return true
	}
	return junkTitle.MatchString(title)
}

// readHeader returns up to min(limit, headerLimit) bytes from the start of path.
func readHeader(path string, limit int64) ([]byte, error) {
	if limit <= 0 || limit > headerLimit {
		limit = headerLimit
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

// frontMatterTitle reads the title field from a Markdown YAML front matter
// block ("---" delimited at the top of the file).
func frontMatterTitle(path string, limit int64) (string, error) {
	data, err := readHeader(path, limit)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, []byte("---")) {
		return "", errNoTitle
	}
	rest := data[3:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return "", errNoTitle
	}

	var fm struct {
		Title string `yaml:"title"`
	}
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return "", errors.Mark(errors.Wrap(err, "parsing front matter"), ErrExtractionFailure)
	}
	if fm.Title == "" {
		return "", errNoTitle
	}
	return fm.Title, nil
}

// firstLineTitle returns the first non-empty line of a text document,
// skipping a front matter block and Markdown heading markers.
func firstLineTitle(path string, limit int64) (string, error) {
	data, err := readHeader(path, limit)
	if err != nil {
		return "", err
	}
	sc := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	sc.Buffer(make([]byte, 0, 4096), headerLimit)

	inFrontMatter := false
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if first && line == "---" {
			inFrontMatter = true
			first = false
			continue
		}
		first = false
		if inFrontMatter {
			if line == "---" {
				inFrontMatter = false
			}
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line != "" {
			return line, nil
		}
	}
	return "", errNoTitle
}
