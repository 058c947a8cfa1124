// Package storage persists machine-local assistant state: display
// preferences and the stored auth session. Files live under the assistant
// home directory and are written atomically with restrictive permissions.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

type prefsData struct {
	DebugMode bool `json:"debugMode"`
	// UpdatedAtMs is the wall-clock timestamp of the most recent write.
	UpdatedAtMs int64 `json:"updatedAtMs,omitempty"`
}

// Prefs is the persisted preference set. Reads and writes are safe for
// concurrent use; writes are best effort and never block the caller on a
// broken disk.
type Prefs struct {
	mu   sync.Mutex
	path string
	data prefsData
}

// OpenPrefs loads preferences from path. A missing file yields defaults.
func OpenPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		// A corrupt file is replaced by defaults on the next write.
		return p, nil
	}
	return p, nil
}

func (p *Prefs) DebugMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.DebugMode
}

func (p *Prefs) SetDebugMode(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.DebugMode = enabled
	_ = p.saveLocked()
}

func (p *Prefs) saveLocked() error {
	p.data.UpdatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(p.data)
	if err != nil {
		return err
	}
	return writeFileAtomic(p.path, raw)
}

// writeFileAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated file behind.
func writeFileAtomic(path string, raw []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
