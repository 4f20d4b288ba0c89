// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package organize

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paperwatch/internal/ledger"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// --- test helpers ---

type fixture struct {
	coord     *Coordinator
	ledger    *ledger.Ledger
	downloads string
	storage   string
}

func setup(t *testing.T, mode types.OrganizeMode) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		ledger:    ledger.New(types.DefaultLedgerConfig()),
		downloads: filepath.Join(root, "downloads"),
		storage:   filepath.Join(root, "storage"),
	}
	require.NoError(t, os.MkdirAll(f.downloads, 0o755))

	coord, err := New(types.OrganizeConfig{StorageDir: f.storage, Mode: mode}, f.ledger, nil)
	require.NoError(t, err)
	f.coord = coord
	return f
}

func (f fixture) download(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.downloads, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func matched(path, id string, tier types.MatchTier) types.MatchResult {
	return types.MatchResult{
		Candidate: types.CandidateDocument{Path: path, Title: "Role of PTEN in apoptosis"},
		Reference: &types.LiteratureReference{ID: id, Title: "Role of PTEN in apoptosis"},
		Score:     0.97,
		Tier:      tier,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// --- slug ---

func TestSlug(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"PMID:12345678", "PMID-12345678"},
		{"doi:10.1000/xyz.123", "doi-10.1000-xyz.123"},
		{"arXiv:2301.00001v2", "arXiv-2301.00001v2"},
		{"  weird id with spaces ", "weird-id-with-spaces"},
		{"a//b::c", "a-b-c"},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			assert.Equal(t, tc.want, Slug(tc.id))
		})
	}
	assert.Regexp(t, `^ref-[0-9a-f]{16}$`, Slug("???"))
	assert.NotEqual(t, Slug("???"), Slug("!!!"))
}

// --- organize ---

func TestCreatesStorageDir(t *testing.T) {
	f := setup(t, types.ModeMove)
	info, err := os.Stat(f.storage)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMove(t *testing.T) {
	f := setup(t, types.ModeMove)
	src := f.download(t, "Role_of_PTEN.pdf", "pdf bytes")

	out := f.coord.Organize(context.Background(), matched(src, "PMID:1", types.MatchExact), "")
	require.Equal(t, types.StatusOrganized, out.Status, out.Error)
	assert.Equal(t, types.ModeMove, out.Mode)
	assert.NotEmpty(t, out.ID)
	assert.False(t, out.Time.IsZero())

	want := filepath.Join(f.storage, "PMID-1.pdf")
	assert.Equal(t, want, out.Destination)
	assert.Equal(t, "pdf bytes", readFile(t, want))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	assert.True(t, f.ledger.Seen(want))
	assert.True(t, f.ledger.Seen(src))
	assert.NoError(t, Err(out))
}

func TestCopyPreservesModTime(t *testing.T) {
	f := setup(t, types.ModeCopy)
	src := f.download(t, "paper.pdf", "content")
	old := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, old, old))

	out := f.coord.Organize(context.Background(), matched(src, "PMID:2", types.MatchFuzzy), "")
	require.Equal(t, types.StatusOrganized, out.Status, out.Error)
	assert.Equal(t, types.ModeCopy, out.Mode)

	assert.Equal(t, "content", readFile(t, src))
	assert.Equal(t, "content", readFile(t, out.Destination))

	info, err := os.Stat(out.Destination)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "got %v", info.ModTime())

	// No temp files left behind.
	entries, err := os.ReadDir(f.storage)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestModeOverride(t *testing.T) {
	f := setup(t, types.ModeMove)
	src := f.download(t, "paper.pdf", "x")
	out := f.coord.Organize(context.Background(), matched(src, "PMID:3", types.MatchExact), types.ModeCopy)
	require.Equal(t, types.StatusOrganized, out.Status)
	assert.FileExists(t, src)
}

func TestIDPrefix(t *testing.T) {
	root := t.TempDir()
	coord, err := New(types.OrganizeConfig{StorageDir: root, Mode: types.ModeCopy, IDPrefix: "lit_"}, nil, nil)
	require.NoError(t, err)

	dst := coord.Destination(types.LiteratureReference{ID: "PMID:9"}, "/dl/a.PDF")
	assert.Equal(t, filepath.Join(root, "lit_PMID-9.PDF"), dst)
}

func TestConflictLeavesSourceUntouched(t *testing.T) {
	f := setup(t, types.ModeMove)
	existing := filepath.Join(f.storage, "PMID-1.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("original"), 0o644))
	src := f.download(t, "dup.pdf", "newcomer")

	out := f.coord.Organize(context.Background(), matched(src, "PMID:1", types.MatchExact), "")
	assert.Equal(t, types.StatusConflict, out.Status)
	assert.Equal(t, "original", readFile(t, existing))
	assert.Equal(t, "newcomer", readFile(t, src))
	assert.True(t, errors.Is(Err(out), ErrDestinationConflict))
	assert.Contains(t, out.Error, existing)
}

func TestConflictForCopy(t *testing.T) {
	f := setup(t, types.ModeCopy)
	existing := filepath.Join(f.storage, "PMID-1.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("original"), 0o644))
	src := f.download(t, "dup.pdf", "newcomer")

	out := f.coord.Organize(context.Background(), matched(src, "PMID:1", types.MatchExact), "")
	assert.Equal(t, types.StatusConflict, out.Status)
	assert.Equal(t, "original", readFile(t, existing))
}

func TestLedgerRetriggerIsNoop(t *testing.T) {
	f := setup(t, types.ModeCopy)
	src := f.download(t, "paper.pdf", "x")

	first := f.coord.Organize(context.Background(), matched(src, "PMID:5", types.MatchExact), "")
	require.Equal(t, types.StatusOrganized, first.Status)

	again := f.coord.Organize(context.Background(), matched(src, "PMID:5", types.MatchExact), "")
	assert.Equal(t, types.StatusSkipped, again.Status)
	assert.NoError(t, Err(again))

	// The destination itself showing up as a new document is also a no-op.
	self := f.coord.Organize(context.Background(), matched(first.Destination, "PMID:5", types.MatchExact), "")
	assert.Equal(t, types.StatusSkipped, self.Status)
}

func TestNotActionable(t *testing.T) {
	f := setup(t, types.ModeMove)
	src := f.download(t, "paper.pdf", "x")

	for _, res := range []types.MatchResult{
		{Candidate: types.CandidateDocument{Path: src}, Tier: types.MatchAmbiguous},
		{Candidate: types.CandidateDocument{Path: src}, Tier: types.MatchNone},
		matched(src, "PMID:1", types.MatchAmbiguous),
		{Candidate: types.CandidateDocument{Path: src}, Tier: types.MatchExact},
	} {
		out := f.coord.Organize(context.Background(), res, "")
		assert.Equal(t, types.StatusNotActionable, out.Status)
		assert.True(t, errors.Is(Err(out), ErrNotActionable))
	}
	assert.FileExists(t, src)
}

func TestMissingSourceFails(t *testing.T) {
	f := setup(t, types.ModeMove)
	out := f.coord.Organize(context.Background(), matched(filepath.Join(f.downloads, "gone.pdf"), "PMID:1", types.MatchExact), "")
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.Error(t, Err(out))
}

func TestCancelledContextFails(t *testing.T) {
	f := setup(t, types.ModeMove)
	src := f.download(t, "paper.pdf", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.coord.Organize(ctx, matched(src, "PMID:1", types.MatchExact), "")
	assert.Equal(t, types.StatusFailed, out.Status)
	assert.FileExists(t, src)
}

func TestConcurrentSameDestination(t *testing.T) {
	f := setup(t, types.ModeCopy)
	const n = 8
	srcs := make([]string, n)
	for i := range srcs {
		srcs[i] = f.download(t, filepath.Base(t.Name())+string(rune('a'+i))+".pdf", string(rune('a'+i)))
	}

	outcomes := make([]types.OrganizationOutcome, n)
	var wg sync.WaitGroup
	for i := range srcs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = f.coord.Organize(context.Background(), matched(srcs[i], "PMID:7", types.MatchExact), "")
		}(i)
	}
	wg.Wait()

	organized, conflicts := 0, 0
	for _, out := range outcomes {
		switch out.Status {
		case types.StatusOrganized:
			organized++
		case types.StatusConflict:
			conflicts++
			assert.True(t, errors.Is(Err(out), ErrDestinationConflict))
		default:
			t.Errorf("unexpected status %s: %s", out.Status, out.Error)
		}
	}
	assert.Equal(t, 1, organized)
	assert.Equal(t, n-1, conflicts)
	assert.Empty(t, f.coord.locks)
}

func TestSecondSourceForOrganizedReferenceConflicts(t *testing.T) {
	f := setup(t, types.ModeMove)
	first := f.download(t, "first.pdf", "first")
	second := f.download(t, "second.pdf", "second")

	out := f.coord.Organize(context.Background(), matched(first, "PMID:9", types.MatchExact), "")
	require.Equal(t, types.StatusOrganized, out.Status, out.Error)

	out = f.coord.Organize(context.Background(), matched(second, "PMID:9", types.MatchExact), "")
	assert.Equal(t, types.StatusConflict, out.Status)
	assert.Equal(t, filepath.Join(f.storage, "PMID-9.pdf"), out.Destination)
	assert.True(t, errors.Is(Err(out), ErrDestinationConflict))
	assert.Equal(t, "second", readFile(t, second))
	assert.Equal(t, "first", readFile(t, out.Destination))
}

// --- lookup ---

func TestFindByReference(t *testing.T) {
	f := setup(t, types.ModeMove)
	for _, name := range []string{"PMID-1.pdf", "PMID-1.md", "PMID-10.pdf", ".organize-x.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(f.storage, name), nil, 0o644))
	}

	got, err := FindByReference(f.storage, "", "PMID:1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(f.storage, "PMID-1.md"),
		filepath.Join(f.storage, "PMID-1.pdf"),
	}, got)

	_, err = FindByReference(filepath.Join(f.storage, "missing"), "", "PMID:1")
	assert.Error(t, err)
}
