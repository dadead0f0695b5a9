// Package history persists usage snapshots to a local SQLite database
// so the dashboard can chart utilization over time.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/claudebar/internal/usage"
)

// Sample is one recorded poll result. Nil percentages mean the account
// had no such bucket when the sample was taken, not zero utilization.
type Sample struct {
	ProfileID      string
	SampledAt      time.Time
	FiveHour       *float64
	SevenDay       *float64
	SevenDayOpus   *float64
	SevenDaySonnet *float64
	ExtraCredits   *float64
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening DB: %w", err)
	}
	if err := configureConnection(db); err != nil {
		db.Close()
		return nil, err
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configureConnection(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return fmt.Errorf("history: set journal_mode WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL;`); err != nil {
		return fmt.Errorf("history: set synchronous NORMAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return fmt.Errorf("history: set busy_timeout: %w", err)
	}
	return nil
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS usage_samples (
			sample_id INTEGER PRIMARY KEY AUTOINCREMENT,
			profile_id TEXT NOT NULL,
			sampled_at TEXT NOT NULL,
			five_hour_pct REAL,
			seven_day_pct REAL,
			seven_day_opus_pct REAL,
			seven_day_sonnet_pct REAL,
			extra_credits REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_usage_samples_profile_time ON usage_samples(profile_id, sampled_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// Record stores one snapshot for the given profile. Sample time is the
// snapshot's FetchedAt when present, otherwise the store clock.
func (s *Store) Record(ctx context.Context, profileID string, snap usage.Snapshot) error {
	at := snap.FetchedAt
	if at.IsZero() {
		at = s.now()
	}

	var extra *float64
	if snap.Extra != nil && snap.Extra.Enabled {
		extra = &snap.Extra.UsedCredits
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_samples
			(profile_id, sampled_at, five_hour_pct, seven_day_pct, seven_day_opus_pct, seven_day_sonnet_pct, extra_credits)
		VALUES (?, ?, ?, ?, ?, ?, ?);`,
		profileID,
		at.UTC().Format(time.RFC3339),
		windowPct(snap.FiveHour),
		windowPct(snap.SevenDay),
		windowPct(snap.SevenDayOpus),
		windowPct(snap.SevenDaySonnet),
		extra,
	)
	if err != nil {
		return fmt.Errorf("history: insert sample: %w", err)
	}
	return nil
}

func windowPct(w *usage.Window) *float64 {
	if w == nil {
		return nil
	}
	v := w.Utilization
	return &v
}

// Recent returns up to limit samples for the profile, oldest first.
func (s *Store) Recent(ctx context.Context, profileID string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, sampled_at, five_hour_pct, seven_day_pct, seven_day_opus_pct, seven_day_sonnet_pct, extra_credits
		FROM usage_samples
		WHERE profile_id = ?
		ORDER BY sampled_at DESC, sample_id DESC
		LIMIT ?;`,
		profileID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var (
			sample Sample
			at     string
		)
		if err := rows.Scan(
			&sample.ProfileID, &at,
			&sample.FiveHour, &sample.SevenDay,
			&sample.SevenDayOpus, &sample.SevenDaySonnet,
			&sample.ExtraCredits,
		); err != nil {
			return nil, fmt.Errorf("history: scan sample: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("history: parse sample time %q: %w", at, err)
		}
		sample.SampledAt = ts
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate samples: %w", err)
	}

	return lo.Reverse(out), nil
}

// Prune deletes samples older than the retention window. Returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM usage_samples WHERE sampled_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: prune samples: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune row count: %w", err)
	}
	return n, nil
}

// Series extracts one chartable value per sample. Samples without the
// bucket are skipped rather than charted as zero.
func Series(samples []Sample, pick func(Sample) *float64) []float64 {
	return lo.FilterMap(samples, func(s Sample, _ int) (float64, bool) {
		v := pick(s)
		if v == nil {
			return 0, false
		}
		return *v, true
	})
}
