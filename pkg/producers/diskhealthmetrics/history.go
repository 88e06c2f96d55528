// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package diskhealthmetrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/health"
	"github.com/cobaltcore-dev/diskprobe/pkg/smart/normalize"
)

// HistoryPoint is one stored poll result of a device.
type HistoryPoint struct {
	Time         time.Time     `json:"time"`
	Device       string        `json:"device"`
	Health       health.Status `json:"health"`
	Life         *int          `json:"life,omitempty"`
	Temperature  *int          `json:"temperature,omitempty"`
	HostWrites   uint64        `json:"host_writes_gb"`
	PowerOnHours uint64        `json:"power_on_hours"`
}

// HistoryStore keeps poll results in SQLite. The first power-on sample of
// every serial is kept outside the retention window so measured power-on
// hours survive restarts.
type HistoryStore struct {
	logger    zerolog.Logger
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
	mu        sync.Mutex
}

func NewHistoryStore(path string, retention time.Duration) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &HistoryStore{
		logger:    log.With().Str("component", "history").Logger(),
		db:        db,
		retention: retention,
		now:       time.Now,
	}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) createTables() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS disk_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device TEXT NOT NULL,
			serial TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			health INTEGER NOT NULL,
			life INTEGER,
			temperature INTEGER,
			host_writes INTEGER NOT NULL,
			poh_raw INTEGER NOT NULL,
			poh_hours INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS power_on_seed (
			serial TEXT PRIMARY KEY,
			poh_raw INTEGER NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS idx_history_serial_time ON disk_history(serial, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_history_timestamp ON disk_history(timestamp)",
	}
	for _, schema := range schemas {
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Publish stores one row per identified device and prunes rows that fell
// out of the retention window.
func (s *HistoryStore) Publish(ctx context.Context, reports []DeviceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now()
	stored := 0
	for _, r := range reports {
		if !r.Identified || r.Identity.Serial == "" {
			continue
		}
		m := r.Metrics
		var life, temp sql.NullInt64
		if m.Life != normalize.LifeUnknown {
			life = sql.NullInt64{Int64: int64(m.Life), Valid: true}
		}
		if m.Temperature != nil {
			temp = sql.NullInt64{Int64: int64(*m.Temperature), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO disk_history (device, serial, timestamp, health, life, temperature, host_writes, poh_raw, poh_hours)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Device, r.Identity.Serial, now.Unix(), int(r.Health), life, temp,
			int64(m.HostWrites), int64(m.PowerOnRaw), int64(powerOnHours(m.DetectedPowerOnHours, m.MeasuredPowerOnHours))); err != nil {
			return fmt.Errorf("failed to store history: %w", err)
		}
		if m.PowerOnRaw > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO power_on_seed (serial, poh_raw, timestamp) VALUES (?, ?, ?)`,
				r.Identity.Serial, int64(m.PowerOnRaw), now.Unix()); err != nil {
				return fmt.Errorf("failed to store power-on sample: %w", err)
			}
		}
		stored++
	}

	var pruned int64
	if s.retention > 0 {
		res, err := tx.ExecContext(ctx, `DELETE FROM disk_history WHERE timestamp < ?`, now.Add(-s.retention).Unix())
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		pruned, _ = res.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	s.logger.Debug().Int("stored", stored).Int64("pruned", pruned).Msg("history_written")
	return nil
}

// FirstPowerOn returns the oldest power-on sample recorded for serial.
func (s *HistoryStore) FirstPowerOn(ctx context.Context, serial string) (uint64, time.Time, bool, error) {
	var raw, ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT poh_raw, timestamp FROM power_on_seed WHERE serial = ?`, serial).Scan(&raw, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to read power-on sample: %w", err)
	}
	return uint64(raw), time.Unix(ts, 0), true, nil
}

// History returns the stored points of a serial since the given time,
// oldest first.
func (s *HistoryStore) History(ctx context.Context, serial string, since time.Time) ([]HistoryPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, device, health, life, temperature, host_writes, poh_hours
		 FROM disk_history WHERE serial = ? AND timestamp >= ? ORDER BY timestamp, id`,
		serial, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var (
			p           HistoryPoint
			ts          int64
			status      int
			life, temp  sql.NullInt64
			writes, poh int64
		)
		if err := rows.Scan(&ts, &p.Device, &status, &life, &temp, &writes, &poh); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		p.Time = time.Unix(ts, 0).UTC()
		p.Health = health.Status(status)
		if life.Valid {
			v := int(life.Int64)
			p.Life = &v
		}
		if temp.Valid {
			v := int(temp.Int64)
			p.Temperature = &v
		}
		p.HostWrites = uint64(writes)
		p.PowerOnHours = uint64(poh)
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
