// Package repository persists shot history to SQLite so a practice session
// survives bridge restarts and the status API can replay recent shots.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// defaultHistoryLimit bounds how many shots are retained.
const defaultHistoryLimit = 500

// StoredShot is one persisted shot, shaped for the status API.
type StoredShot struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Degraded   bool      `json:"degraded"`

	BallSpeedMPS float64 `json:"ball_speed_mps"`
	VLADeg       float64 `json:"launch_angle_v_deg"`
	HLADeg       float64 `json:"launch_angle_h_deg"`
	TotalSpinRPM float64 `json:"total_spin_rpm"`
	SpinAxisDeg  float64 `json:"spin_axis_deg"`

	CarryM   float64 `json:"carry_m,omitempty"`
	TotalM   float64 `json:"total_m,omitempty"`
	ShotName string  `json:"shot_name,omitempty"`
	ShotRank string  `json:"shot_rank,omitempty"`

	// DisplayValues is the exact text shown for this shot, keyed by
	// data point id.
	DisplayValues map[string]string `json:"display_values,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit bounds retained shots; older rows are pruned on insert.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

// Store is a SQLite-backed shot history.
type Store struct {
	db    *sql.DB
	limit int

	mu     sync.Mutex
	closed bool
}

// NewStore opens (or creates) the history database at path. Use ":memory:"
// for an ephemeral store.
func NewStore(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening shot history: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS shots (
			id              TEXT PRIMARY KEY,
			received_at     TIMESTAMP NOT NULL,
			degraded        INTEGER NOT NULL,
			ball_speed_mps  DOUBLE NOT NULL,
			vla_deg         DOUBLE NOT NULL,
			hla_deg         DOUBLE NOT NULL,
			total_spin_rpm  DOUBLE NOT NULL,
			spin_axis_deg   DOUBLE NOT NULL,
			carry_m         DOUBLE,
			total_m         DOUBLE,
			shot_name       TEXT,
			shot_rank       TEXT,
			display_values  TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_shots_received_at ON shots(received_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating shot history schema: %w", err)
	}

	s := &Store{db: db, limit: defaultHistoryLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record persists one enriched shot together with the values displayed for
// it. Display values are stored so history replays what the player actually
// saw, not a re-rendering under current settings.
func (s *Store) Record(ctx context.Context, rec *model.EnrichedShotRecord, values []model.DataPointValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	var displayJSON []byte
	if len(values) > 0 {
		m := make(map[string]string, len(values))
		for _, v := range values {
			m[v.ID] = v.Text
		}
		var err error
		displayJSON, err = json.Marshal(m)
		if err != nil {
			metrics.RecordStoreError()
			return fmt.Errorf("encoding display values: %w", err)
		}
	}

	var carry, total sql.NullFloat64
	var name, rank sql.NullString
	if d := rec.Derived; d != nil {
		carry = sql.NullFloat64{Float64: d.CarryM, Valid: true}
		total = sql.NullFloat64{Float64: d.TotalM, Valid: true}
		name = sql.NullString{String: d.ShotName, Valid: true}
		rank = sql.NullString{String: d.ShotRank, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shots (
			id, received_at, degraded,
			ball_speed_mps, vla_deg, hla_deg, total_spin_rpm, spin_axis_deg,
			carry_m, total_m, shot_name, shot_rank, display_values
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Canonical.ID,
		rec.Canonical.ReceivedAt,
		rec.Degraded(),
		rec.Canonical.BallSpeedMPS,
		rec.Canonical.VLADeg,
		rec.Canonical.HLADeg,
		rec.Canonical.TotalSpinRPM,
		rec.Canonical.SpinAxisDeg,
		carry, total, name, rank,
		nullableString(displayJSON),
	)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("recording shot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM shots WHERE id NOT IN (
			SELECT id FROM shots ORDER BY received_at DESC LIMIT ?
		)`, s.limit)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("pruning shot history: %w", err)
	}

	metrics.RecordShotStored()
	return nil
}

// Latest returns up to n shots, newest first.
func (s *Store) Latest(ctx context.Context, n int) ([]StoredShot, error) {
	if n <= 0 || n > s.limit {
		n = s.limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, received_at, degraded,
			ball_speed_mps, vla_deg, hla_deg, total_spin_rpm, spin_axis_deg,
			carry_m, total_m, shot_name, shot_rank, display_values
		FROM shots ORDER BY received_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying shot history: %w", err)
	}
	defer rows.Close()

	var shots []StoredShot
	for rows.Next() {
		var shot StoredShot
		var carry, total sql.NullFloat64
		var name, rank, display sql.NullString
		if err := rows.Scan(
			&shot.ID, &shot.ReceivedAt, &shot.Degraded,
			&shot.BallSpeedMPS, &shot.VLADeg, &shot.HLADeg,
			&shot.TotalSpinRPM, &shot.SpinAxisDeg,
			&carry, &total, &name, &rank, &display,
		); err != nil {
			return nil, fmt.Errorf("scanning shot row: %w", err)
		}
		shot.CarryM = carry.Float64
		shot.TotalM = total.Float64
		shot.ShotName = name.String
		shot.ShotRank = rank.String
		if display.Valid && display.String != "" {
			if err := json.Unmarshal([]byte(display.String), &shot.DisplayValues); err != nil {
				return nil, fmt.Errorf("decoding display values: %w", err)
			}
		}
		shots = append(shots, shot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shot history: %w", err)
	}
	return shots, nil
}

// Count returns the number of retained shots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting shots: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func nullableString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
