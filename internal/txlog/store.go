package txlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// SwapRecord is one completed swap submission. Amounts are base-unit
// integer strings tagged with their symbols so the log is self-describing.
type SwapRecord struct {
	TxHash         string `json:"tx_hash"`
	TradeType      string `json:"trade_type"`
	InputSymbol    string `json:"input_symbol"`
	InputAmount    string `json:"input_amount"`
	InputDecimals  int    `json:"input_decimals"`
	OutputSymbol   string `json:"output_symbol"`
	OutputAmount   string `json:"output_amount"`
	OutputDecimals int    `json:"output_decimals"`
	SubmittedAt    string `json:"submitted_at"`
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create txlog directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create txlog lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open txlog sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS swaps (
			tx_hash TEXT PRIMARY KEY,
			trade_type TEXT NOT NULL,
			submitted_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_swaps_submitted ON swaps(submitted_at DESC);",
		`CREATE TABLE IF NOT EXISTS pending_approvals (
			token TEXT NOT NULL,
			spender TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			submitted_at INTEGER NOT NULL,
			PRIMARY KEY (token, spender)
		);`,
		`CREATE TABLE IF NOT EXISTS display_state (
			slot INTEGER PRIMARY KEY CHECK (slot = 0),
			tx_hash TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init txlog schema: %w", err)
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

func (s *Store) withLock(fn func() error) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock txlog store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock txlog store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// RecordSwap appends one swap record. The hash is the primary key, so a
// retried write of the same submission stays a single record.
func (s *Store) RecordSwap(rec SwapRecord) error {
	if strings.TrimSpace(rec.TxHash) == "" {
		return fmt.Errorf("record swap: missing transaction hash")
	}
	if strings.TrimSpace(rec.SubmittedAt) == "" {
		rec.SubmittedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return s.withLock(func() error {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal swap record: %w", err)
		}
		submittedUnix, _ := parseRFC3339Unix(rec.SubmittedAt)
		if submittedUnix == 0 {
			submittedUnix = time.Now().UTC().Unix()
		}
		_, err = s.db.Exec(`
			INSERT INTO swaps (tx_hash, trade_type, submitted_at, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(tx_hash) DO UPDATE SET payload=excluded.payload
		`, rec.TxHash, rec.TradeType, submittedUnix, payload)
		if err != nil {
			return fmt.Errorf("record swap: %w", err)
		}
		return nil
	})
}

func (s *Store) ListSwaps(limit int) ([]SwapRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query("SELECT payload FROM swaps ORDER BY submitted_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	records := make([]SwapRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}
		var rec SwapRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode swap row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return records, nil
}

// SetPendingApproval records an in-flight approval transaction keyed by
// (token, spender). A later submission for the same pair replaces the hash.
func (s *Store) SetPendingApproval(token, spender, txHash string) error {
	if strings.TrimSpace(txHash) == "" {
		return fmt.Errorf("set pending approval: missing transaction hash")
	}
	return s.withLock(func() error {
		_, err := s.db.Exec(`
			INSERT INTO pending_approvals (token, spender, tx_hash, submitted_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(token, spender) DO UPDATE SET
				tx_hash=excluded.tx_hash,
				submitted_at=excluded.submitted_at
		`, normalizeKey(token), normalizeKey(spender), txHash, time.Now().UTC().Unix())
		if err != nil {
			return fmt.Errorf("set pending approval: %w", err)
		}
		return nil
	})
}

func (s *Store) PendingApproval(token, spender string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(
		"SELECT tx_hash FROM pending_approvals WHERE token = ? AND spender = ?",
		normalizeKey(token), normalizeKey(spender),
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read pending approval: %w", err)
	}
	return hash, true, nil
}

func (s *Store) ClearPendingApproval(token, spender string) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(
			"DELETE FROM pending_approvals WHERE token = ? AND spender = ?",
			normalizeKey(token), normalizeKey(spender),
		)
		if err != nil {
			return fmt.Errorf("clear pending approval: %w", err)
		}
		return nil
	})
}

func (s *Store) setHighlight(txHash string) error {
	return s.withLock(func() error {
		_, err := s.db.Exec(`
			INSERT INTO display_state (slot, tx_hash, updated_at)
			VALUES (0, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET
				tx_hash=excluded.tx_hash,
				updated_at=excluded.updated_at
		`, txHash, time.Now().UTC().Unix())
		if err != nil {
			return fmt.Errorf("set display state: %w", err)
		}
		return nil
	})
}

func (s *Store) highlight() (string, bool, error) {
	var hash string
	err := s.db.QueryRow("SELECT tx_hash FROM display_state WHERE slot = 0").Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read display state: %w", err)
	}
	return hash, hash != "", nil
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
