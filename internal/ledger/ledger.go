// Package ledger persists a record of every lease issued to a station
// and every reconciliation performed against it, as a supplemental audit
// trail for offline-operation review (spec.md §4.4).
package ledger

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/rebar-platform/edgevision/internal/vision/lease"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger wraps a sqlite-backed audit trail of lease issuance and
// reconciliation events.
type Ledger struct {
	*sql.DB
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("ledger: executing %q: %w", pragma, err)
		}
	}
	return nil
}

// Open opens (creating if necessary) the sqlite database at path, applies
// pragmas, and runs any pending migrations.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	l := &Ledger{db}
	if err := l.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrateUp() error {
	sourceFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: sub-filesystem: %w", err)
	}
	source, err := iofs.New(sourceFS, ".")
	if err != nil {
		return fmt.Errorf("ledger: iofs source: %w", err)
	}
	driver, err := sqlite.WithInstance(l.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("ledger: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("ledger: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("ledger: applying migrations: %w", err)
	}
	return nil
}

// RecordIssuance records that lse was issued to stationID.
func (l *Ledger) RecordIssuance(stationID string, lse lease.Lease) error {
	_, err := l.Exec(
		`INSERT INTO lease_ledger (lease_id, station_id, issued_at, duration_hours, issued_unix_nanos)
		 VALUES (?, ?, ?, ?, ?)`,
		lse.LeaseID, stationID, lse.IssuedAt.Format(time.RFC3339Nano), lse.DurationHours, lse.IssuedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ledger: recording issuance: %w", err)
	}
	return nil
}

// RecordReconciliation records the outcome of one ReconcileBufferedEvents
// call against leaseID.
func (l *Ledger) RecordReconciliation(stationID, leaseID string, reconciledAt time.Time, accepted, rejected int) error {
	_, err := l.Exec(
		`INSERT INTO reconciliation_ledger (lease_id, station_id, reconciled_unix_nanos, accepted_count, rejected_count)
		 VALUES (?, ?, ?, ?, ?)`,
		leaseID, stationID, reconciledAt.UnixNano(), accepted, rejected,
	)
	if err != nil {
		return fmt.Errorf("ledger: recording reconciliation: %w", err)
	}
	return nil
}

// IssuanceRecord is one row of the lease issuance history.
type IssuanceRecord struct {
	LeaseID       string
	StationID     string
	IssuedAt      time.Time
	DurationHours int
}

// ListIssuances returns every recorded lease issuance for stationID, most
// recent first.
func (l *Ledger) ListIssuances(stationID string) ([]IssuanceRecord, error) {
	rows, err := l.Query(
		`SELECT lease_id, station_id, issued_at, duration_hours FROM lease_ledger
		 WHERE station_id = ? ORDER BY issued_unix_nanos DESC`,
		stationID,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing issuances: %w", err)
	}
	defer rows.Close()

	var out []IssuanceRecord
	for rows.Next() {
		var rec IssuanceRecord
		var issuedAt string
		if err := rows.Scan(&rec.LeaseID, &rec.StationID, &issuedAt, &rec.DurationHours); err != nil {
			return nil, fmt.Errorf("ledger: scanning issuance row: %w", err)
		}
		rec.IssuedAt, err = time.Parse(time.RFC3339Nano, issuedAt)
		if err != nil {
			return nil, fmt.Errorf("ledger: parsing issued_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReconciliationSummary aggregates accept/reject counts across every
// reconciliation recorded for stationID.
type ReconciliationSummary struct {
	TotalAccepted int
	TotalRejected int
	Runs          int
}

// SummarizeReconciliations aggregates every reconciliation recorded for
// stationID.
func (l *Ledger) SummarizeReconciliations(stationID string) (ReconciliationSummary, error) {
	var summary ReconciliationSummary
	row := l.QueryRow(
		`SELECT COALESCE(SUM(accepted_count), 0), COALESCE(SUM(rejected_count), 0), COUNT(*)
		 FROM reconciliation_ledger WHERE station_id = ?`,
		stationID,
	)
	if err := row.Scan(&summary.TotalAccepted, &summary.TotalRejected, &summary.Runs); err != nil {
		return ReconciliationSummary{}, fmt.Errorf("ledger: summarizing reconciliations: %w", err)
	}
	return summary, nil
}
