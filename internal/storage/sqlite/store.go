// Package sqlite persists finished and in-flight runs for the history views.
package sqlite

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

	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/CortexDash/models"
)

const (
	StatusRunning   = "running"
	StatusCompleted = string(models.OutcomeCompleted)
	StatusFailed    = string(models.OutcomeFailed)
	StatusStopped   = string(models.OutcomeStopped)
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Store struct {
	db *sql.DB
}

// dsnParams are go-sqlite3 connection settings applied to every connection.
const dsnParams = "_journal_mode=WAL&_busy_timeout=3000&_synchronous=NORMAL&_foreign_keys=on"

// Open opens (and migrates) the history database at path, creating its
// directory as needed.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// Serialize writers; the recorder goroutine and CLI readers share one handle.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    ticker TEXT NOT NULL,
    analysis_date TEXT NOT NULL,
    request_json TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL,
    decision TEXT NOT NULL DEFAULT '',
    final_state TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS thai_sections (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    section TEXT NOT NULL,
    report_type TEXT NOT NULL,
    label TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    UNIQUE(run_id, section, report_type),
    UNIQUE(run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate history db: %w", err)
	}
	return nil
}

// CreateRun records a run as started. It never overwrites an existing row,
// so a finish recorded first is kept.
func (s *Store) CreateRun(ctx context.Context, rec models.RunRecord) error {
	if strings.TrimSpace(rec.Id) == "" {
		return fmt.Errorf("run id is required")
	}
	if rec.Status == "" {
		rec.Status = StatusRunning
	}
	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, ticker, analysis_date, request_json, status, decision)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, rec.Id, rec.Ticker, rec.AnalysisDate, string(reqJSON), rec.Status, rec.Decision)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun upserts the final state of a run and replaces its Thai sections.
func (s *Store) FinishRun(ctx context.Context, rec models.RunRecord) error {
	if strings.TrimSpace(rec.Id) == "" {
		return fmt.Errorf("run id is required")
	}
	reqJSON, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	stateJSON, err := rec.FinalState.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode final state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, ticker, analysis_date, request_json, status, decision, final_state)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status=excluded.status,
    decision=excluded.decision,
    final_state=excluded.final_state,
    updated_at=CURRENT_TIMESTAMP
`, rec.Id, rec.Ticker, rec.AnalysisDate, string(reqJSON), rec.Status, rec.Decision, string(stateJSON)); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thai_sections WHERE run_id = ?`, rec.Id); err != nil {
		return fmt.Errorf("clear thai sections: %w", err)
	}
	for i, sec := range rec.Thai {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO thai_sections (run_id, seq, section, report_type, label, content)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, section, report_type) DO NOTHING
`, rec.Id, i+1, sec.Section, sec.ReportType, sec.Label, sec.Content); err != nil {
			return fmt.Errorf("insert thai section: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish run: %w", err)
	}
	return nil
}

// ListRuns lists runs newest first.
func (s *Store) ListRuns(ctx context.Context, params models.HistoryParams) ([]models.HistoryListItem, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	ticker := strings.ToUpper(strings.TrimSpace(params.Ticker))

	rows, err := s.db.QueryContext(ctx, `
SELECT id, ticker, analysis_date, status, decision, created_at
FROM runs
WHERE (? = '' OR ticker = ?)
ORDER BY rowid DESC
LIMIT ?
`, ticker, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var items []models.HistoryListItem
	for rows.Next() {
		var item models.HistoryListItem
		var created time.Time
		if err := rows.Scan(&item.Id, &item.Ticker, &item.AnalysisDate, &item.Status, &item.Decision, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		item.CreatedAt = created.UTC().Format(time.RFC3339)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return items, nil
}

// GetRun loads one run with its payload and Thai sections. It returns nil
// when no such run exists.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(ctx, `
SELECT id, ticker, analysis_date, request_json, status, decision, final_state, created_at, updated_at
FROM runs
WHERE id = ?
LIMIT 1
`, id)

	var (
		rec       models.RunRecord
		reqJSON   string
		stateJSON string
	)
	if err := row.Scan(&rec.Id, &rec.Ticker, &rec.AnalysisDate, &reqJSON, &rec.Status, &rec.Decision, &stateJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal([]byte(reqJSON), &rec.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	state, err := models.ParsePayload([]byte(stateJSON))
	if err != nil {
		return nil, fmt.Errorf("decode final state: %w", err)
	}
	rec.FinalState = state

	rows, err := s.db.QueryContext(ctx, `
SELECT section, report_type, label, content
FROM thai_sections
WHERE run_id = ?
ORDER BY seq ASC
`, id)
	if err != nil {
		return nil, fmt.Errorf("list thai sections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sec models.ThaiReportSection
		if err := rows.Scan(&sec.Section, &sec.ReportType, &sec.Label, &sec.Content); err != nil {
			return nil, fmt.Errorf("scan thai section: %w", err)
		}
		rec.Thai = append(rec.Thai, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("thai sections rows: %w", err)
	}
	return &rec, nil
}
