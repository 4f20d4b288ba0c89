// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract derives a best-effort title from a settled document.
//
// Tiers are tried in order and the first non-empty title wins: embedded
// metadata, then the file name, then the leading content of the document.
// A document where every tier fails yields an empty title with tier "none";
// that is a normal outcome, not an error. Reads are bounded by the
// configured read limit, and the content tier is cached per path,
// modification time and size.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/paperwatch/internal/logging"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// ErrExtractionFailure marks a tier that could not read or parse the
// document. It is logged and the next tier is tried.
var ErrExtractionFailure = errors.New("extraction failure")

// errNoTitle means a tier ran cleanly but found nothing usable.
var errNoTitle = errors.New("no title found")

type tierFunc func(ctx context.Context, path string, info fs.FileInfo) (string, error)

type tier struct {
	name types.ExtractionTier
	run  tierFunc
}

// Extractor runs the extraction tiers. It is safe for concurrent use.
type Extractor struct {
	cfg   types.ExtractionConfig
	log   *zap.Logger
	cache *lru.Cache[string, string]
	tiers []tier
}

// New creates an Extractor. Zero config fields fall back to the defaults.
func New(cfg types.ExtractionConfig, log *zap.Logger) (*Extractor, error) {
	def := types.DefaultExtractionConfig()
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}
	if cfg.MinFilenameWords <= 0 {
		cfg.MinFilenameWords = def.MinFilenameWords
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	cache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "creating content cache")
	}

	e := &Extractor{
		cfg:   cfg,
		log:   logging.Component(log, "extract"),
		cache: cache,
	}
	e.tiers = []tier{
		{types.TierMetadata, e.metadataTitle},
		{types.TierFilename, e.filenameTitle},
		{types.TierContent, e.contentTitle},
	}
	return e, nil
}

// Extract builds a CandidateDocument for path. It never returns an error;
// failures leave the title empty.
func (e *Extractor) Extract(ctx context.Context, path string) types.CandidateDocument {
	cand := types.CandidateDocument{Path: path, Tier: types.TierNone}

	var info fs.FileInfo
	err := e.withRetry(ctx, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	if err != nil {
		e.log.Debug("cannot stat document", zap.String(logging.FieldPath, path), zap.Error(err))
		return cand
	}
	if info.IsDir() {
		return cand
	}
	cand.Size = info.Size()
	cand.ModTime = info.ModTime()

	for _, t := range e.tiers {
		if ctx.Err() != nil {
			return cand
		}
		var title string
		err := e.withRetry(ctx, func() error {
			var tierErr error
			title, tierErr = t.run(ctx, path, info)
			return tierErr
		})
		if err != nil {
			if !errors.Is(err, errNoTitle) {
				e.log.Debug("extraction tier failed",
					zap.String(logging.FieldPath, path),
					zap.String(logging.FieldTier, string(t.name)),
					zap.Error(err))
			}
			continue
		}
		if title = cleanTitle(title); title != "" {
			cand.Title = title
			cand.Tier = t.name
			return cand
		}
	}
	return cand
}

// withRetry runs op and retries it once after RetryDelay when it fails with
// a transient read error.
func (e *Extractor) withRetry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.RetryDelay), 1), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// isTransient reports OS-level read errors worth one more try: anything that
// failed on a path other than the file being missing or the read budget
// running out.
func isTransient(err error) bool {
	var pe *fs.PathError
	if !errors.As(err, &pe) {
		return false
	}
	return !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, errReadBudget)
}

func (e *Extractor) metadataTitle(_ context.Context, path string, _ fs.FileInfo) (string, error) {
	var (
		title string
		err   error
	)
	switch docKind(path) {
	case kindPDF:
		title, err = pdfInfoTitle(path, e.cfg.ReadLimit)
	case kindMarkdown:
		title, err = frontMatterTitle(path, e.cfg.ReadLimit)
	default:
		return "", errNoTitle
	}
	if err != nil {
		return "", err
	}
	if isJunkTitle(title) {
		return "", errNoTitle
	}
	return title, nil
}

func (e *Extractor) filenameTitle(_ context.Context, path string, _ fs.FileInfo) (string, error) {
	title, ok := FilenameTitle(path, e.cfg.MinFilenameWords)
	if !ok {
		return "", errNoTitle
	}
	return title, nil
}

func (e *Extractor) contentTitle(_ context.Context, path string, info fs.FileInfo) (string, error) {
	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	if title, ok := e.cache.Get(key); ok {
		if title == "" {
			return "", errNoTitle
		}
		return title, nil
	}

	var (
		title string
		err   error
	)
	switch docKind(path) {
	case kindPDF:
		title, err = pdfContentTitle(path, e.cfg.ReadLimit)
	case kindMarkdown, kindText:
		title, err = firstLineTitle(path, e.cfg.ReadLimit)
	default:
		return "", errNoTitle
	}
	if err != nil && !errors.Is(err, errNoTitle) {
		if isTransient(err) {
			return "", err
		}
		// Parse failures are cached too; the same bytes will fail again.
		e.cache.Add(key, "")
		return "", err
	}
	e.cache.Add(key, title)
	if title == "" {
		return "", errNoTitle
	}
	return title, nil
}

// cleanTitle collapses whitespace and trims a candidate title.
func cleanTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
