package tracing

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/tritsim/simerr"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested run is not in the store.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	program  TEXT NOT NULL,
	reason   TEXT NOT NULL,
	cycles   INTEGER NOT NULL,
	retired  INTEGER NOT NULL,
	created  TEXT NOT NULL,
	snapshot BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	cycle  INTEGER NOT NULL,
	pc     INTEGER NOT NULL,
	opcode TEXT NOT NULL,
	stage  TEXT NOT NULL,
	tier   INTEGER NOT NULL,
	stall  INTEGER NOT NULL,
	note   TEXT NOT NULL,
	PRIMARY KEY (run_id, cycle)
);`

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID      string
	Program string
	Reason  string
	Cycles  uint64
	Retired uint64
	Created time.Time
}

// Store keeps snapshots in a SQLite database, one row per run plus one
// row per trace record.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenStore opens or creates the database at path. ":memory:" keeps the
// store in memory.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a snapshot, replacing any run with the same ID.
func (s *Store) SaveRun(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.Exec("DELETE FROM runs WHERE id = ?", snap.RunID); err != nil {
		return fmt.Errorf("replacing run: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO runs (id, program, reason, cycles, retired, created, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.Program, snap.Result.Reason.String(),
		int64(snap.Result.Cycles), int64(snap.Result.Retired),
		snap.CreatedAt.Format(time.RFC3339), blob,
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO records (run_id, cycle, pc, opcode, stage, tier, stall, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing records: %w", err)
	}
	defer stmt.Close()

	for _, r := range snap.Records {
		stall := 0
		if r.Stall {
			stall = 1
		}

		_, err = stmt.Exec(snap.RunID, int64(r.Cycle), r.PC, r.Opcode,
			string(r.Stage), int(r.Tier), stall, r.Note)
		if err != nil {
			return fmt.Errorf("saving record at cycle %d: %w", r.Cycle, err)
		}
	}

	return tx.Commit()
}

// LoadRun retrieves a stored snapshot.
func (s *Store) LoadRun(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob []byte

	err := s.db.QueryRow("SELECT snapshot FROM runs WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrRunNotFound
	}

	if err != nil {
		return Snapshot{}, fmt.Errorf("querying run: %w", err)
	}

	return UnmarshalSnapshot(blob)
}

// ListRuns returns every stored run, newest first.
func (s *Store) ListRuns() ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, program, reason, cycles, retired, created
		FROM runs ORDER BY created DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary

	for rows.Next() {
		var (
			r               RunSummary
			cycles, retired int64
			created         string
		)

		if err := rows.Scan(&r.ID, &r.Program, &r.Reason, &cycles, &retired, &created); err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}

		r.Cycles, r.Retired = uint64(cycles), uint64(retired)

		r.Created, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, simerr.Wrap(simerr.KindDecode, "tracing.ListRuns", err)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// StallCycles counts the stalled cycles of a run per note, such as
// "refresh" or "mispredict flush".
func (s *Store) StallCycles(id string) (map[string]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT note, COUNT(*) FROM records
		WHERE run_id = ? AND stall = 1 GROUP BY note`, id)
	if err != nil {
		return nil, fmt.Errorf("querying stalls: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint64)

	for rows.Next() {
		var (
			note string
			n    int64
		)

		if err := rows.Scan(&note, &n); err != nil {
			return nil, fmt.Errorf("reading stalls: %w", err)
		}

		out[note] = uint64(n)
	}

	return out, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}

	return nil
}

// RecordCount is the number of trace records stored for a run.
func (s *Store) RecordCount(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE run_id = ?", id).Scan(&n)

	return n, err
}
