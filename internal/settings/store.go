// Package settings persists per-flow transaction settings as small JSON
// files. Swap and pool flows each get their own store so their records do
// not collide.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/port"

	"go.uber.org/zap"
)

// Store is a file-backed TransactionSettings record with synchronous,
// serialized writes.
type Store struct {
	filePath string
	logger   *zap.Logger
	mu       sync.RWMutex
	current  entity.TransactionSettings
}

// NewStore loads the record stored at dir/<flow>_settings.json, falling back
// to defaults when the file is missing or unparseable. Corrupt state must
// never crash the gateway.
func NewStore(dir, flow string, logger *zap.Logger) (port.SettingsStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory %s: %w", dir, err)
	}

	s := &Store{
		filePath: filepath.Join(dir, flow+"_settings.json"),
		logger:   logger.Named("SettingsStore").With(zap.String("flow", flow)),
		current:  entity.DefaultTransactionSettings(),
	}

	data, err := os.ReadFile(s.filePath)
	switch {
	case os.IsNotExist(err):
		// first run, defaults apply
	case err != nil:
		return nil, fmt.Errorf("failed to read settings file %s: %w", s.filePath, err)
	default:
		var stored entity.TransactionSettings
		if jsonErr := json.Unmarshal(data, &stored); jsonErr != nil {
			s.logger.Warn("Stored settings are unparseable, falling back to defaults", zap.Error(jsonErr))
		} else {
			stored.DeadlineMinutes = entity.ClampDeadlineMinutes(stored.DeadlineMinutes)
			s.current = stored
		}
	}

	return s, nil
}

// Get returns the current settings record.
func (s *Store) Get() entity.TransactionSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetSlippage updates slippage mode and value. Turning auto on resets the
// value to the auto default.
func (s *Store) SetSlippage(isAuto bool, value float64) entity.TransactionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isAuto {
		s.current.Slippage = entity.Slippage{IsAuto: true, Value: entity.AutoSlippagePercent}
	} else {
		if value < 0 {
			value = 0
		}
		if value > entity.MaxSlippagePercent {
			value = entity.MaxSlippagePercent
		}
		s.current.Slippage = entity.Slippage{IsAuto: false, Value: value}
	}
	s.persistLocked()
	return s.current
}

// SetDeadline clamps and stores the transaction deadline in minutes.
func (s *Store) SetDeadline(minutes int) entity.TransactionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.DeadlineMinutes = entity.ClampDeadlineMinutes(minutes)
	s.persistLocked()
	return s.current
}

// ToggleEncryption flips the encryption transform toggle.
func (s *Store) ToggleEncryption() entity.TransactionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.EncryptionEnabled = !s.current.EncryptionEnabled
	s.persistLocked()
	return s.current
}

func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal settings", zap.Error(err))
		return
	}

	// write to a temp file, then rename for an atomic replace
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		s.logger.Error("Failed to write settings file", zap.String("path", tempFile), zap.Error(err))
		return
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		s.logger.Error("Failed to replace settings file", zap.String("path", s.filePath), zap.Error(err))
	}
}
