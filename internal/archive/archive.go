// Package archive keeps a durable record of completed analyses in
// sqlite, independent of the per-session JSON snapshots.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one archived analysis.
type Entry struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Start        string    `json:"start"`
	Destination  string    `json:"destination"`
	Profile      string    `json:"profile"`
	RiskScore    float64   `json:"risk_score"`
	RiskLevel    string    `json:"risk_level"`
	DistanceKm   float64   `json:"distance_km"`
	DurationMin  float64   `json:"duration_min"`
	UsedFallback bool      `json:"used_fallback"`
	Breakdown    []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Totals aggregates the archive for reporting.
type Totals struct {
	Analyses     int     `json:"analyses"`
	AvgRiskScore float64 `json:"avg_risk_score"`
	Hazardous    int     `json:"hazardous"`
	Fallbacks    int     `json:"fallbacks"`
}

// Archive wraps the sqlite database.
type Archive struct {
	db   *sql.DB
	path string
}

// Open creates or opens the archive database under dataDir.
func Open(dataDir string) (*Archive, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "saferoute.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &Archive{db: db, path: dbPath}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		start TEXT NOT NULL,
		destination TEXT NOT NULL,
		profile TEXT NOT NULL,
		risk_score REAL NOT NULL,
		risk_level TEXT NOT NULL,
		distance_km REAL NOT NULL,
		duration_min REAL NOT NULL,
		used_fallback INTEGER NOT NULL DEFAULT 0,
		breakdown_json TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_session ON analyses(session_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record inserts one completed analysis.
func (a *Archive) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO analyses (id, session_id, start, destination, profile,
			risk_score, risk_level, distance_km, duration_min, used_fallback,
			breakdown_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, e.Start, e.Destination, e.Profile,
		e.RiskScore, e.RiskLevel, e.DistanceKm, e.DurationMin, e.UsedFallback,
		string(e.Breakdown), e.CreatedAt)
	return err
}

// ListBySession returns a session's analyses, newest first.
func (a *Archive) ListBySession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, start, destination, profile,
			   risk_score, risk_level, distance_km, duration_min, used_fallback,
			   breakdown_json, created_at
		FROM analyses WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var breakdown sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Start, &e.Destination, &e.Profile,
			&e.RiskScore, &e.RiskLevel, &e.DistanceKm, &e.DurationMin, &e.UsedFallback,
			&breakdown, &e.CreatedAt); err != nil {
			return nil, err
		}
		if breakdown.Valid {
			e.Breakdown = []byte(breakdown.String)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TotalsFor aggregates one session's archive; an empty sessionID
// aggregates everything.
func (a *Archive) TotalsFor(ctx context.Context, sessionID string) (Totals, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(risk_score), 0),
			   COALESCE(SUM(CASE WHEN risk_level = 'Hazardous' THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(used_fallback), 0)
		FROM analyses`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	var t Totals
	err := a.db.QueryRowContext(ctx, query, args...).Scan(&t.Analyses, &t.AvgRiskScore, &t.Hazardous, &t.Fallbacks)
	return t, err
}

// MarshalBreakdown serializes a risk breakdown for storage.
func MarshalBreakdown(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
