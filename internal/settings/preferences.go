package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Preferences is the small key-value record for UI preferences that are not
// tied to a flow, currently just the theme.
type Preferences struct {
	filePath string
	logger   *zap.Logger
	mu       sync.RWMutex
	current  preferencesRecord
}

type preferencesRecord struct {
	Theme string `json:"theme"`
}

const defaultTheme = "dark"

// NewPreferences loads dir/preferences.json, defaulting on missing or
// unparseable state.
func NewPreferences(dir string, logger *zap.Logger) (*Preferences, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory %s: %w", dir, err)
	}

	p := &Preferences{
		filePath: filepath.Join(dir, "preferences.json"),
		logger:   logger.Named("Preferences"),
		current:  preferencesRecord{Theme: defaultTheme},
	}

	data, err := os.ReadFile(p.filePath)
	if err == nil {
		var stored preferencesRecord
		if jsonErr := json.Unmarshal(data, &stored); jsonErr != nil {
			p.logger.Warn("Stored preferences are unparseable, falling back to defaults", zap.Error(jsonErr))
		} else if stored.Theme != "" {
			p.current = stored
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read preferences file %s: %w", p.filePath, err)
	}

	return p, nil
}

// Theme returns the stored theme preference.
func (p *Preferences) Theme() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Theme
}

// SetTheme stores a new theme preference.
func (p *Preferences) SetTheme(theme string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Theme = theme

	data, err := json.MarshalIndent(p.current, "", "  ")
	if err != nil {
		p.logger.Error("Failed to marshal preferences", zap.Error(err))
		return
	}
	tempFile := p.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		p.logger.Error("Failed to write preferences file", zap.String("path", tempFile), zap.Error(err))
		return
	}
	if err := os.Rename(tempFile, p.filePath); err != nil {
		p.logger.Error("Failed to replace preferences file", zap.String("path", p.filePath), zap.Error(err))
	}
}
