package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/water-globe-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when the store holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot describes one stored batch of raw rows.
type Snapshot struct {
	ID        int64
	LoadID    string
	CreatedAt time.Time
	RowCount  int
}

// Store persists fetched SQL API rows so a dataset can be rebuilt offline.
// It implements pipeline.SnapshotStore.
type Store struct {
	conn  *sql.DB
	clock clockwork.Clock
}

// Open opens (or creates) the snapshot database at path and initializes the schema.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{conn: conn, clock: clockwork.NewRealClock()}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		load_id TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		row_count INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS snapshot_rows (
		snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		point TEXT NOT NULL,
		modfips TEXT NOT NULL,
		year TEXT NOT NULL,
		water TEXT NOT NULL,
		population TEXT NOT NULL,
		pop10 TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// SaveRows stores rows under loadID in a single transaction, preserving row order.
func (s *Store) SaveRows(ctx context.Context, loadID string, rows []domain.RawRow) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	createdAt := s.clock.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (load_id, created_at, row_count) VALUES (?, ?, ?)`,
		loadID, createdAt, len(rows))
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO snapshot_rows (snapshot_id, position, point, modfips, year, water, population, pop10)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing row insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		_, err := stmt.ExecContext(ctx, id, i,
			string(r.Point), string(r.ModFIPS), string(r.Year),
			string(r.Water), string(r.Population), string(r.Pop10))
		if err != nil {
			return fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently stored snapshot.
func (s *Store) Latest(ctx context.Context) (Snapshot, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, load_id, created_at, row_count
	FROM snapshots
	ORDER BY id DESC
	LIMIT 1`)

	var snap Snapshot
	var createdAt string
	err := row.Scan(&snap.ID, &snap.LoadID, &createdAt, &snap.RowCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying latest snapshot: %w", err)
	}

	snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return snap, nil
}

// LatestRows returns the most recent snapshot and its rows in fetch order.
func (s *Store) LatestRows(ctx context.Context) (Snapshot, []domain.RawRow, error) {
	snap, err := s.Latest(ctx)
	if err != nil {
		return Snapshot{}, nil, err
	}
	rows, err := s.Rows(ctx, snap.ID)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return snap, rows, nil
}

// Rows returns the rows of the snapshot with the given id in fetch order.
func (s *Store) Rows(ctx context.Context, snapshotID int64) ([]domain.RawRow, error) {
	rs, err := s.conn.QueryContext(ctx, `
	SELECT point, modfips, year, water, population, pop10
	FROM snapshot_rows
	WHERE snapshot_id = ?
	ORDER BY position`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot rows: %w", err)
	}
	defer rs.Close()

	rows := []domain.RawRow{}
	for rs.Next() {
		var r domain.RawRow
		var point, modfips, year, water, population, pop10 string
		if err := rs.Scan(&point, &modfips, &year, &water, &population, &pop10); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		r.Point = domain.Field(point)
		r.ModFIPS = domain.Field(modfips)
		r.Year = domain.Field(year)
		r.Water = domain.Field(water)
		r.Population = domain.Field(population)
		r.Pop10 = domain.Field(pop10)
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot rows: %w", err)
	}
	return rows, nil
}
