package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const historyVersion = 1

// historyFile is the on-disk shape of the alert history.
type historyFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Alerts  []Alert   `json:"alerts"`
}

// loadHistory reads persisted history. A missing file is an empty history,
// not an error.
func loadHistory(path string) ([]Alert, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var hf historyFile
	if err := json.Unmarshal(data, &hf); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return hf.Alerts, nil
}

// saveHistory rewrites the history file wholesale. The write goes through a
// temp file and rename so a crash never leaves a torn file behind.
func saveHistory(path string, alerts []Alert) error {
	hf := historyFile{
		Version: historyVersion,
		SavedAt: time.Now().UTC(),
		Alerts:  alerts,
	}
	data, err := json.MarshalIndent(hf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".alert-history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
