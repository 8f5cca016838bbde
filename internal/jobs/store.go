package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store persists job records in SQLite so status and downloads survive a
// restart. A Store opened with an empty path keeps nothing.
type Store struct {
	db *sql.DB
}

// record is the persisted form of a Status
type record struct {
	Status
	AudioPath string `json:"audio_path,omitempty"`
}

// OpenStore opens or creates the job database at path
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    payload BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs(status, updated_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Persistent reports whether records are written anywhere
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases underlying resources
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces a job record
func (s *Store) Save(ctx context.Context, st Status) error {
	if s.db == nil {
		return nil
	}
	payload, err := json.Marshal(record{Status: st, AudioPath: st.AudioPath})
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, status, payload, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET status=excluded.status, payload=excluded.payload, updated_at=excluded.updated_at`,
		st.JobID, string(st.State), payload, st.UpdatedAt.UnixNano())
	return err
}

// Delete removes a job record; deleting an unknown job is not an error
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID)
	return err
}

// List returns every stored job ordered by last update
func (s *Store) List(ctx context.Context) ([]Status, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM jobs ORDER BY updated_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Status
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode job record: %w", err)
		}
		rec.Status.AudioPath = rec.AudioPath
		out = append(out, rec.Status)
	}
	return out, rows.Err()
}
