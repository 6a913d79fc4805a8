package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one executed operation. The journal keeps receipts, never quotes:
// quotes are ephemeral by design and die with the process.
type Record struct {
	RecordID        string `json:"record_id"`
	Operation       string `json:"operation"`
	Network         string `json:"network"`
	Provider        string `json:"provider"`
	Status          string `json:"status"`
	TransactionHash string `json:"transaction_hash"`
	FromSymbol      string `json:"from_symbol,omitempty"`
	ToSymbol        string `json:"to_symbol,omitempty"`
	FromAmount      string `json:"from_amount,omitempty"`
	ToAmount        string `json:"to_amount,omitempty"`
	ErrorStep       string `json:"error_step,omitempty"`
	CreatedAt       string `json:"created_at"`
}

const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Store journals executed operations in sqlite. A file lock serializes
// writers so concurrent agent sessions on one machine do not corrupt the
// journal.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS executions (
			record_id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			network TEXT NOT NULL,
			provider TEXT NOT NULL,
			status TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_executions_created ON executions(created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init history schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one executed operation and returns its id.
func (s *Store) Append(record Record) (string, error) {
	if strings.TrimSpace(record.RecordID) == "" {
		record.RecordID = uuid.NewString()
	}
	if strings.TrimSpace(record.CreatedAt) == "" {
		record.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("lock history store: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("lock history store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal history record: %w", err)
	}
	createdUnix := time.Now().UTC().Unix()
	if t, err := time.Parse(time.RFC3339, record.CreatedAt); err == nil {
		createdUnix = t.UTC().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO executions (record_id, operation, network, provider, status, tx_hash, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.RecordID, record.Operation, record.Network, record.Provider, record.Status, record.TransactionHash, createdUnix, payload)
	if err != nil {
		return "", fmt.Errorf("append history record: %w", err)
	}
	return record.RecordID, nil
}

// List returns the most recent records, newest first, optionally filtered by
// operation.
func (s *Store) List(operation string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(operation) == "" {
		rows, err = s.db.Query("SELECT payload FROM executions ORDER BY created_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM executions WHERE operation = ? ORDER BY created_at DESC LIMIT ?", operation, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list history records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}
