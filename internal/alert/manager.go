package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is a persisted notification with its delivery metadata.
type Record struct {
	ID           string       `json:"id"`
	SessionID    string       `json:"session_id,omitempty"`
	Notification Notification `json:"notification"`
	Timestamp    time.Time    `json:"timestamp"`
	Acknowledged bool         `json:"acknowledged"`
}

// Manager persists notifications to a directory. Each record gets its
// own JSON file; active.json summarizes the unacknowledged ones. Old
// record files are rotated out beyond maxFiles.
type Manager struct {
	mu       sync.RWMutex
	dir      string
	records  []Record
	maxKept  int
	maxFiles int
}

// NewManager loads any existing records from dir.
func NewManager(dir string) *Manager {
	os.MkdirAll(dir, 0755)
	m := &Manager{
		dir:      dir,
		maxKept:  100,
		maxFiles: 100,
	}
	m.loadFromDisk()
	m.rotateOldFiles()
	return m
}

func (m *Manager) loadFromDisk() {
	data, err := os.ReadFile(filepath.Join(m.dir, "active.json"))
	if err != nil {
		return
	}
	var summary struct {
		Alerts []Record `json:"alerts"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return
	}
	m.records = summary.Alerts
}

// Deliver persists a composed notification and returns its record.
func (m *Manager) Deliver(sessionID string, n Notification) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{
		ID:           fmt.Sprintf("alert-%s", uuid.NewString()),
		SessionID:    sessionID,
		Notification: n,
		Timestamp:    time.Now().UTC(),
	}
	m.records = append(m.records, rec)
	if len(m.records) > m.maxKept {
		m.records = m.records[len(m.records)-m.maxKept:]
	}

	m.persistRecord(rec)
	m.updateActive()
	return rec
}

// Acknowledge marks a record as handled by the user.
func (m *Manager) Acknowledge(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Acknowledged = true
			break
		}
	}
	m.updateActive()
}

// Active returns unacknowledged records.
func (m *Manager) Active() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]Record, 0)
	for _, r := range m.records {
		if !r.Acknowledged {
			active = append(active, r)
		}
	}
	return active
}

// Recent returns the newest count records.
func (m *Manager) Recent(count int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if count > len(m.records) {
		count = len(m.records)
	}
	out := make([]Record, count)
	copy(out, m.records[len(m.records)-count:])
	return out
}

func (m *Manager) persistRecord(rec Record) {
	data, _ := json.MarshalIndent(rec, "", "  ")
	os.WriteFile(filepath.Join(m.dir, rec.ID+".json"), data, 0644)

	if len(m.records)%10 == 0 {
		m.rotateOldFiles()
	}
}

// rotateOldFiles removes record files beyond maxFiles, oldest first.
func (m *Manager) rotateOldFiles() {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return
	}

	type recFile struct {
		name    string
		modTime time.Time
	}
	var files []recFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "alert-") || filepath.Ext(name) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, recFile{name: name, modTime: info.ModTime()})
	}

	if len(files) <= m.maxFiles {
		return
	}

	for i := 0; i < len(files)-1; i++ {
		for j := i + 1; j < len(files); j++ {
			if files[i].modTime.After(files[j].modTime) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}
	for i := 0; i < len(files)-m.maxFiles; i++ {
		os.Remove(filepath.Join(m.dir, files[i].name))
	}
}

func (m *Manager) updateActive() {
	active := make([]Record, 0)
	for _, r := range m.records {
		if !r.Acknowledged {
			active = append(active, r)
		}
	}

	summary := struct {
		Count       int       `json:"count"`
		Updated     time.Time `json:"updated"`
		Alerts      []Record  `json:"alerts"`
		HasCritical bool      `json:"has_critical"`
	}{
		Count:   len(active),
		Updated: time.Now().UTC(),
		Alerts:  active,
	}
	for _, r := range active {
		if r.Notification.Severity == SeverityCritical {
			summary.HasCritical = true
			break
		}
	}

	data, _ := json.MarshalIndent(summary, "", "  ")
	os.WriteFile(filepath.Join(m.dir, "active.json"), data, 0644)
}
