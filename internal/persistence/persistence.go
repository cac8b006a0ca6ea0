// Package persistence provides file-based data persistence for the risk
// gateway: periodic account/position/order snapshots plus monthly audit
// archives, so the in-memory Store survives a restart and the audit
// trail stays queryable across its retention period.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kalshi-dcm-demo/backend/internal/models"
)

// Manager handles file-based persistence.
type Manager struct {
	dataDir      string
	enabled      bool
	saveInterval time.Duration
	mu           sync.Mutex
}

// DataSnapshot represents the full store state for persistence.
type DataSnapshot struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	Accounts  map[string]models.Account             `json:"accounts"`
	Positions map[string]map[string]models.Position `json:"positions"`
	Orders    map[string]models.Order               `json:"orders"`
}

// AuditArchive holds audit entries for a specific calendar month.
type AuditArchive struct {
	StartDate time.Time           `json:"start_date"`
	EndDate   time.Time           `json:"end_date"`
	Entries   []models.AuditEntry `json:"entries"`
}

// NewManager creates a new persistence manager.
func NewManager(dataDir string, enabled bool, saveInterval time.Duration) (*Manager, error) {
	if enabled {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		for _, subdir := range []string{"snapshots", "audit", "archive"} {
			path := filepath.Join(dataDir, subdir)
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, fmt.Errorf("failed to create %s directory: %w", subdir, err)
			}
		}
	}

	return &Manager{
		dataDir:      dataDir,
		enabled:      enabled,
		saveInterval: saveInterval,
	}, nil
}

// SaveSnapshot persists the current store state to disk, both as a
// timestamped file and as "latest.json" for fast restart recovery.
func (m *Manager) SaveSnapshot(snapshot *DataSnapshot) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot.Version = "1.0"
	snapshot.Timestamp = time.Now().UTC()

	filename := fmt.Sprintf("snapshot_%s.json", snapshot.Timestamp.Format("20060102_150405"))
	path := filepath.Join(m.dataDir, "snapshots", filename)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	latestPath := filepath.Join(m.dataDir, "snapshots", "latest.json")
	if err := os.WriteFile(latestPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write latest snapshot: %w", err)
	}

	return nil
}

// LoadLatestSnapshot loads the most recent snapshot from disk.
func (m *Manager) LoadLatestSnapshot() (*DataSnapshot, error) {
	if !m.enabled {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	latestPath := filepath.Join(m.dataDir, "snapshots", "latest.json")

	data, err := os.ReadFile(latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot DataSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// RunAutosave calls snapshotFn and saves its result every saveInterval
// until stop is closed or receives a value.
func (m *Manager) RunAutosave(stop <-chan struct{}, snapshotFn func() *DataSnapshot) {
	if !m.enabled {
		return
	}

	ticker := time.NewTicker(m.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = m.SaveSnapshot(snapshotFn())
		}
	}
}

// SaveAuditEntries appends audit entries to their month's log.
func (m *Manager) SaveAuditEntries(entries []models.AuditEntry) error {
	if !m.enabled || len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entriesByMonth := make(map[string][]models.AuditEntry)
	for _, entry := range entries {
		monthKey := entry.Timestamp.Format("2006-01")
		entriesByMonth[monthKey] = append(entriesByMonth[monthKey], entry)
	}

	for monthKey, monthEntries := range entriesByMonth {
		filename := fmt.Sprintf("audit_%s.json", monthKey)
		path := filepath.Join(m.dataDir, "audit", filename)

		var existing []models.AuditEntry
		if data, err := os.ReadFile(path); err == nil {
			var archive AuditArchive
			if err := json.Unmarshal(data, &archive); err == nil {
				existing = archive.Entries
			}
		}

		existing = append(existing, monthEntries...)

		archive := AuditArchive{
			StartDate: time.Date(
				monthEntries[0].Timestamp.Year(),
				monthEntries[0].Timestamp.Month(),
				1, 0, 0, 0, 0, time.UTC,
			),
			EndDate: time.Now().UTC(),
			Entries: existing,
		}

		data, err := json.MarshalIndent(archive, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal audit archive: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write audit archive: %w", err)
		}
	}

	return nil
}

// LoadAuditEntries loads audit entries within [since, until).
func (m *Manager) LoadAuditEntries(since, until time.Time) ([]models.AuditEntry, error) {
	if !m.enabled {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var allEntries []models.AuditEntry
	auditDir := filepath.Join(m.dataDir, "audit")

	current := time.Date(since.Year(), since.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(until.Year(), until.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)

	for current.Before(end) {
		monthKey := current.Format("2006-01")
		filename := fmt.Sprintf("audit_%s.json", monthKey)
		path := filepath.Join(auditDir, filename)

		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read audit file %s: %w", filename, err)
			}
			current = current.AddDate(0, 1, 0)
			continue
		}

		var archive AuditArchive
		if err := json.Unmarshal(data, &archive); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit file %s: %w", filename, err)
		}

		for _, entry := range archive.Entries {
			if !entry.Timestamp.Before(since) && entry.Timestamp.Before(until) {
				allEntries = append(allEntries, entry)
			}
		}

		current = current.AddDate(0, 1, 0)
	}

	return allEntries, nil
}

// ArchiveOldAuditLogs moves audit logs older than retentionDays to archive/.
func (m *Manager) ArchiveOldAuditLogs(retentionDays int) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	auditDir := filepath.Join(m.dataDir, "audit")
	archiveDir := filepath.Join(m.dataDir, "archive")

	entries, err := os.ReadDir(auditDir)
	if err != nil {
		return fmt.Errorf("failed to read audit directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isAuditFile(entry.Name()) {
			continue
		}

		monthStr := entry.Name()[6:13]
		fileMonth, err := time.Parse("2006-01", monthStr)
		if err != nil {
			continue
		}

		if fileMonth.Before(cutoff) {
			oldPath := filepath.Join(auditDir, entry.Name())
			newPath := filepath.Join(archiveDir, entry.Name())

			if err := os.Rename(oldPath, newPath); err != nil {
				return fmt.Errorf("failed to archive %s: %w", entry.Name(), err)
			}
		}
	}

	return nil
}

func isAuditFile(name string) bool {
	return len(name) > 6 && name[:6] == "audit_" && filepath.Ext(name) == ".json"
}

// CleanOldSnapshots removes timestamped snapshots older than keepDays,
// always keeping latest.json.
func (m *Manager) CleanOldSnapshots(keepDays int) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -keepDays)
	snapshotDir := filepath.Join(m.dataDir, "snapshots")

	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		return fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "latest.json" {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(snapshotDir, entry.Name())
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("failed to remove old snapshot %s: %w", entry.Name(), err)
			}
		}
	}

	return nil
}

// Stats summarizes what's on disk.
type Stats struct {
	SnapshotCount  int       `json:"snapshot_count"`
	AuditFileCount int       `json:"audit_file_count"`
	ArchiveCount   int       `json:"archive_count"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	OldestAudit    time.Time `json:"oldest_audit"`
	LatestSnapshot time.Time `json:"latest_snapshot"`
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	if !m.enabled {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{}

	snapshotDir := filepath.Join(m.dataDir, "snapshots")
	if entries, err := os.ReadDir(snapshotDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && e.Name() != "latest.json" {
				stats.SnapshotCount++
				if info, err := e.Info(); err == nil {
					stats.TotalSizeBytes += info.Size()
					if info.ModTime().After(stats.LatestSnapshot) {
						stats.LatestSnapshot = info.ModTime()
					}
				}
			}
		}
	}

	auditDir := filepath.Join(m.dataDir, "audit")
	if entries, err := os.ReadDir(auditDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && isAuditFile(e.Name()) {
				stats.AuditFileCount++
				if info, err := e.Info(); err == nil {
					stats.TotalSizeBytes += info.Size()
				}
				monthStr := e.Name()[6:13]
				if t, err := time.Parse("2006-01", monthStr); err == nil {
					if stats.OldestAudit.IsZero() || t.Before(stats.OldestAudit) {
						stats.OldestAudit = t
					}
				}
			}
		}
	}

	archiveDir := filepath.Join(m.dataDir, "archive")
	if entries, err := os.ReadDir(archiveDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				stats.ArchiveCount++
				if info, err := e.Info(); err == nil {
					stats.TotalSizeBytes += info.Size()
				}
			}
		}
	}

	return stats, nil
}
