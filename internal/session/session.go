// Package session provides durable per-session route history and preferences.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joss/saferoute/internal/config"
)

// ErrInvalidID rejects session ids that cannot name a snapshot file.
var ErrInvalidID = errors.New("invalid session id")

// ValidateID rejects ids that would escape the store's directory when
// used as a snapshot filename.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." {
		return ErrInvalidID
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}

// RouteRecord is one completed analysis. Immutable once appended.
type RouteRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Start       string    `json:"start"`
	Destination string    `json:"destination"`
	RouteType   string    `json:"route_type"`
	RiskScore   float64   `json:"risk_score"`
	RiskLevel   string    `json:"risk_level"`
	DistanceKm  float64   `json:"distance_km"`
	DurationMin float64   `json:"duration_minutes"`
}

// Statistics is derived from history on every append; it is never
// incremented independently, so it cannot drift.
type Statistics struct {
	TotalRoutes      int     `json:"total_routes_analyzed"`
	AverageRiskScore float64 `json:"average_risk_score"`
	HighRiskRoutes   int     `json:"high_risk_routes"`
}

// Session is the durable per-user accumulation of history and preferences.
type Session struct {
	ID          string         `json:"session_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	History     []RouteRecord  `json:"route_history"`
	Preferences map[string]any `json:"user_preferences"`
	Statistics  Statistics     `json:"statistics"`
}

// Store keeps sessions in memory and snapshots each one to disk on every
// mutation. The single mutex serializes appends, so two concurrent
// analyses for the same session cannot interleave append and recompute.
type Store struct {
	mu       sync.RWMutex
	dir      string
	sessions map[string]*Session
}

// NewStore opens a session store rooted at dir, loading any snapshots
// already present.
func NewStore(dir string) (*Store, error) {
	if err := config.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	s := &Store{
		dir:      dir,
		sessions: make(map[string]*Session),
	}
	if err := s.loadSessions(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadSessions() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("scan session dir: %w", err)
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil || ValidateID(sess.ID) != nil {
			// Corrupt or foreign file; skip rather than fail the store.
			continue
		}
		s.sessions[sess.ID] = &sess
	}
	return nil
}

// defaultPreferences are applied when a session is first created.
func defaultPreferences() map[string]any {
	return map[string]any{
		"risk_tolerance":       "medium",
		"preferred_route_type": "driving-car",
		"alert_threshold":      config.RiskThresholdModerate,
	}
}

// Create creates (or resets) a session. Re-creating overwrites in-memory
// state; on disk the latest snapshot simply replaces the previous one.
func (s *Store) Create(id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("create session %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sess := &Session{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		History:     []RouteRecord{},
		Preferences: defaultPreferences(),
	}
	s.sessions[id] = sess

	if err := s.persist(sess); err != nil {
		return nil, err
	}
	return copySession(sess), nil
}

// AppendRecord appends to the session's history, recomputes statistics
// from the full history, and persists a snapshot before returning.
// The session is created first if absent.
func (s *Store) AppendRecord(id string, record RouteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.ensure(id)
	if err != nil {
		return err
	}

	sess.History = append(sess.History, record)
	sess.Statistics = computeStatistics(sess.History)
	sess.UpdatedAt = time.Now().UTC()

	return s.persist(sess)
}

// MergePreferences shallow-merges keys from partial into the session's
// preferences; untouched keys survive. Persists before returning.
func (s *Store) MergePreferences(id string, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.ensure(id)
	if err != nil {
		return err
	}

	for k, v := range partial {
		sess.Preferences[k] = v
	}
	sess.UpdatedAt = time.Now().UTC()

	return s.persist(sess)
}

// History returns the session's records in insertion order. Unknown ids
// return an empty slice, not an error.
func (s *Store) History(id string) []RouteRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return []RouteRecord{}
	}
	out := make([]RouteRecord, len(sess.History))
	copy(out, sess.History)
	return out
}

// Preferences returns a copy of the session's preferences, empty for
// unknown ids.
func (s *Store) Preferences(id string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(sess.Preferences))
	for k, v := range sess.Preferences {
		out[k] = v
	}
	return out
}

// Statistics returns the session's derived statistics, zero-valued for
// unknown ids.
func (s *Store) Statistics(id string) Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Statistics{}
	}
	return sess.Statistics
}

// Get returns a copy of the full session, or nil if unknown.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return copySession(sess)
}

// ensure returns the live session, creating it with defaults if absent.
// Caller must hold the write lock.
func (s *Store) ensure(id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, fmt.Errorf("session %q: %w", id, err)
	}
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		History:     []RouteRecord{},
		Preferences: defaultPreferences(),
	}
	s.sessions[id] = sess
	return sess, nil
}

// persist writes the session snapshot with write-new-then-replace: a
// crash mid-write leaves the previous snapshot intact.
func (s *Store) persist(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}

	final := filepath.Join(s.dir, sess.ID+".json")
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write session %s: %w", sess.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("replace session %s: %w", sess.ID, err)
	}
	return nil
}

// computeStatistics derives statistics purely from history.
func computeStatistics(history []RouteRecord) Statistics {
	stats := Statistics{TotalRoutes: len(history)}
	if len(history) == 0 {
		return stats
	}

	var sum float64
	for _, r := range history {
		sum += r.RiskScore
		if r.RiskScore >= config.RiskThresholdHazardous {
			stats.HighRiskRoutes++
		}
	}
	stats.AverageRiskScore = sum / float64(len(history))
	return stats
}

func copySession(sess *Session) *Session {
	out := &Session{
		ID:          sess.ID,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
		History:     make([]RouteRecord, len(sess.History)),
		Preferences: make(map[string]any, len(sess.Preferences)),
		Statistics:  sess.Statistics,
	}
	copy(out.History, sess.History)
	for k, v := range sess.Preferences {
		out.Preferences[k] = v
	}
	return out
}
