// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal persists organization outcomes in SQLite so the history
// of a watch session survives restarts.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

// timeFormat is fixed width so stored times sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the journal database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the journal at path, creating its directory
// and schema as needed.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating journal directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening journal")
	}
	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			id TEXT PRIMARY KEY,
			time TEXT NOT NULL,
			source TEXT NOT NULL,
			destination TEXT,
			mode TEXT,
			status TEXT NOT NULL,
			error TEXT,
			title TEXT,
			extraction_tier TEXT,
			match_tier TEXT,
			score REAL,
			runner_up_score REAL,
			reference_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_time ON outcomes(time)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_reference ON outcomes(reference_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "executing schema statement")
		}
	}
	return nil
}

// Record stores an outcome. Recording the same outcome ID again replaces it.
func (s *Store) Record(ctx context.Context, o types.OrganizationOutcome) error {
	if o.ID == "" {
		return errors.New("outcome has no id")
	}
	if o.Time.IsZero() {
		o.Time = time.Now().UTC()
	}
	var refID sql.NullString
	if o.Match.Reference != nil {
		refID = sql.NullString{String: o.Match.Reference.ID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (id, time, source, destination, mode, status, error,
			title, extraction_tier, match_tier, score, runner_up_score, reference_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			time=excluded.time, source=excluded.source, destination=excluded.destination,
			mode=excluded.mode, status=excluded.status, error=excluded.error,
			title=excluded.title, extraction_tier=excluded.extraction_tier,
			match_tier=excluded.match_tier, score=excluded.score,
			runner_up_score=excluded.runner_up_score, reference_id=excluded.reference_id`,
		o.ID, o.Time.UTC().Format(timeFormat), o.Source, o.Destination, string(o.Mode),
		string(o.Status), o.Error, o.Match.Candidate.Title, string(o.Match.Candidate.Tier),
		string(o.Match.Tier), o.Match.Score, o.Match.RunnerUpScore, refID,
	)
	if err != nil {
		return errors.Wrapf(err, "recording outcome %s", o.ID)
	}
	return nil
}

const selectOutcomes = `SELECT id, time, source, destination, mode, status, error,
	title, extraction_tier, match_tier, score, runner_up_score, reference_id
	FROM outcomes`

// Recent returns up to limit outcomes, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.OrganizationOutcome, error) {
	query := selectOutcomes + ` ORDER BY time DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ByReference returns the outcomes bound to a reference, newest first.
func (s *Store) ByReference(ctx context.Context, refID string) ([]types.OrganizationOutcome, error) {
	return s.query(ctx, selectOutcomes+` WHERE reference_id = ? ORDER BY time DESC, rowid DESC`, refID)
}

// Counts returns the number of recorded outcomes per status.
func (s *Store) Counts(ctx context.Context) (map[types.OutcomeStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM outcomes GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "counting outcomes")
	}
	defer rows.Close()

	counts := make(map[types.OutcomeStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scanning count")
		}
		counts[types.OutcomeStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]types.OrganizationOutcome, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying outcomes")
	}
	defer rows.Close()

	var out []types.OrganizationOutcome
	for rows.Next() {
		var (
			o                                   types.OrganizationOutcome
			ts, mode, status, exTier, matchTier string
			dest, errText, title, refID         sql.NullString
			score, runnerUp                     sql.NullFloat64
		)
		if err := rows.Scan(&o.ID, &ts, &o.Source, &dest, &mode, &status, &errText,
			&title, &exTier, &matchTier, &score, &runnerUp, &refID); err != nil {
			return nil, errors.Wrap(err, "scanning outcome")
		}
		t, err := time.Parse(timeFormat, ts)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing time of outcome %s", o.ID)
		}
		o.Time = t
		o.Destination = dest.String
		o.Mode = types.OrganizeMode(mode)
		o.Status = types.OutcomeStatus(status)
		o.Error = errText.String
		o.Match.Candidate = types.CandidateDocument{
			Path:  o.Source,
			Title: title.String,
			Tier:  types.ExtractionTier(exTier),
		}
		o.Match.Tier = types.MatchTier(matchTier)
		o.Match.Score = score.Float64
		o.Match.RunnerUpScore = runnerUp.Float64
		if refID.Valid {
			o.Match.Reference = &types.LiteratureReference{ID: refID.String}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
