// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ledongthuc/pdf"
)

// Title heuristic constants for the first page: runs within sizeTolerance
// of the largest font, located in the top topFraction of the page.
const (
	sizeTolerance = 0.05
	topFraction   = 0.40
)

// errReadBudget is returned once a document needs more bytes than the
// configured read limit.
var errReadBudget = errors.New("read limit exceeded")

// budgetReaderAt counts bytes served and refuses to go past the budget.
type budgetReaderAt struct {
	r io.ReaderAt

	mu     sync.Mutex
	remain int64
}

func (b *budgetReaderAt) ReadAt(p []byte, off int64) (int, error) {
	b.mu.Lock()
	if b.remain <= 0 {
		b.mu.Unlock()
		return 0, errReadBudget
	}
	want := int64(len(p))
	truncated := want > b.remain
	if truncated {
		p = p[:b.remain]
	}
	b.mu.Unlock()

	n, err := b.r.ReadAt(p, off)

	b.mu.Lock()
	b.remain -= int64(n)
	b.mu.Unlock()
	if err == nil && truncated {
		err = errReadBudget
	}
	return n, err
}

// withPDF opens path under the read budget and hands the reader to fn.
// The PDF library panics on some malformed input; that is reported as an
// extraction failure.
func withPDF(path string, limit int64, fn func(r *pdf.Reader) (string, error)) (title string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	defer func() {
		if rec := recover(); rec != nil {
			title = ""
			err = errors.Mark(errors.Newf("malformed pdf: %v", rec), ErrExtractionFailure)
		}
	}()

	r, err := pdf.NewReader(&budgetReaderAt{r: f, remain: limit}, info.Size())
	if err != nil {
		if errors.Is(err, errReadBudget) {
			return "", err
		}
		return "", errors.Mark(errors.Wrap(err, "opening pdf"), ErrExtractionFailure)
	}
	return fn(r)
}

// pdfInfoTitle reads /Title from the document information dictionary.
func pdfInfoTitle(path string, limit int64) (string, error) {
	return withPDF(path, limit, func(r *pdf.Reader) (string, error) {
		title := r.Trailer().Key("Info").Key("Title").Text()
		if strings.TrimSpace(title) == "" {
			return "", errNoTitle
		}
		return title, nil
	})
}

// pdfContentTitle applies the largest-font heuristic to the first page.
func pdfContentTitle(path string, limit int64) (string, error) {
	return withPDF(path, limit, func(r *pdf.Reader) (string, error) {
		if r.NumPage() < 1 {
			return "", errNoTitle
		}
		page := r.Page(1)
		if page.V.IsNull() {
			return "", errNoTitle
		}

		var runs []textRun
		for _, t := range page.Content().Text {
			runs = append(runs, textRun{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
		}
		lly, ury, ok := mediaBox(page.V)
		if !ok {
			lly, ury = runBounds(runs)
		}
		title := titleFromRuns(runs, ury, ury-lly)
		if title == "" {
			return "", errNoTitle
		}
		return title, nil
	})
}

// mediaBox returns the vertical extent of a page, following /Parent for
// inherited boxes.
func mediaBox(page pdf.Value) (lly, ury float64, ok bool) {
	for v, depth := page, 0; !v.IsNull() && depth < 32; v, depth = v.Key("Parent"), depth+1 {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			lly, ury = box.Index(1).Float64(), box.Index(3).Float64()
			if ury > lly {
				return lly, ury, true
			}
		}
	}
	return 0, 0, false
}

func runBounds(runs []textRun) (lo, hi float64) {
	if len(runs) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range runs {
		lo = math.Min(lo, r.Y)
		hi = math.Max(hi, r.Y+r.Size)
	}
	return lo, hi
}

// textRun is one positioned piece of text on a page. Y grows upward from
// the bottom of the page.
type textRun struct {
	X, Y, W float64
	Size    float64
	S       string
}

// titleFromRuns keeps the runs set in the largest font within the top part
// of the page, groups them into lines and joins the distinct lines.
func titleFromRuns(runs []textRun, top, height float64) string {
	if height <= 0 {
		return ""
	}
	inTop := func(r textRun) bool { return top-r.Y <= topFraction*height }

	maxSize := 0.0
	for _, r := range runs {
		if strings.TrimSpace(r.S) != "" && inTop(r) {
			maxSize = math.Max(maxSize, r.Size)
		}
	}
	if maxSize == 0 {
		return ""
	}

	var big []textRun
	for _, r := range runs {
		if inTop(r) && r.Size >= maxSize*(1-sizeTolerance) {
			big = append(big, r)
		}
	}
	sort.SliceStable(big, func(i, j int) bool { return big[i].Y > big[j].Y })

	// Runs whose baselines sit within half a font height share a line.
	var groups [][]textRun
	for _, r := range big {
		n := len(groups)
		if n > 0 && groups[n-1][0].Y-r.Y <= maxSize/2 {
			groups[n-1] = append(groups[n-1], r)
			continue
		}
		groups = append(groups, []textRun{r})
	}

	var lines []string
	seen := map[string]bool{}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].X < g[j].X })
		var b strings.Builder
		for i, r := range g {
			if i > 0 && r.X-(g[i-1].X+g[i-1].W) > 0.15*r.Size {
				b.WriteByte(' ')
			}
			b.WriteString(r.S)
		}
		line := strings.Join(strings.Fields(b.String()), " ")
		if line != "" && !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}
