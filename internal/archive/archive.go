// Package archive moves the progress database aside so the next run starts
// without resumable state while old runs stay inspectable.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sidecars are the SQLite files that belong to a database in WAL mode
var sidecars = []string{"-wal", "-shm"}

// ArchiveState moves the database at dbPath, and its WAL files, to an
// archive directory next to it and returns the archived database path
func ArchiveState(dbPath string) (string, error) {
	// Check if the database exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return "", fmt.Errorf("progress database does not exist: %s", dbPath)
	}

	// Get parent directory and create archive path
	archiveDir := filepath.Join(filepath.Dir(dbPath), "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	ext := filepath.Ext(dbPath)
	stem := strings.TrimSuffix(filepath.Base(dbPath), ext)
	archivePath := filepath.Join(archiveDir, fmt.Sprintf("%s-%s%s", stem, time.Now().Format("20060102-150405"), ext))

	// Check if archive already exists (unlikely but possible)
	if _, err := os.Stat(archivePath); err == nil {
		// Add microseconds to make it unique
		archivePath = filepath.Join(archiveDir, fmt.Sprintf("%s-%s%s", stem, time.Now().Format("20060102-150405.000000"), ext))
	}

	if err := os.Rename(dbPath, archivePath); err != nil {
		return "", fmt.Errorf("failed to archive progress database: %w", err)
	}
	for _, suffix := range sidecars {
		if _, err := os.Stat(dbPath + suffix); err != nil {
			continue
		}
		if err := os.Rename(dbPath+suffix, archivePath+suffix); err != nil {
			return archivePath, fmt.Errorf("failed to archive %s: %w", filepath.Base(dbPath+suffix), err)
		}
	}
	return archivePath, nil
}
