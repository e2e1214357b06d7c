package settings

import (
	"os"
	"path/filepath"
	"testing"

	"dex_gateway/internal/domain/entity"

	"go.uber.org/zap"
)

func TestStoreDefaults(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	got := store.Get()
	want := entity.DefaultTransactionSettings()
	if got != want {
		t.Errorf("defaults = %+v, want %+v", got, want)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.SetSlippage(false, 2.5)
	store.SetDeadline(45)
	store.ToggleEncryption()

	// a fresh store over the same directory must see the persisted record
	reloaded, err := NewStore(dir, "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore reload: %v", err)
	}
	got := reloaded.Get()
	if got.Slippage.IsAuto || got.Slippage.Value != 2.5 {
		t.Errorf("slippage = %+v, want custom 2.5", got.Slippage)
	}
	if got.DeadlineMinutes != 45 {
		t.Errorf("deadline = %d, want 45", got.DeadlineMinutes)
	}
	if got.EncryptionEnabled {
		t.Error("encryption should be off after toggle")
	}
}

func TestStoresAreIsolatedPerFlow(t *testing.T) {
	dir := t.TempDir()
	swapStore, err := NewStore(dir, "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore swap: %v", err)
	}
	poolStore, err := NewStore(dir, "pool", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore pool: %v", err)
	}

	swapStore.SetDeadline(7)
	if poolStore.Get().DeadlineMinutes == 7 {
		t.Error("pool store must not observe swap store writes")
	}
}

func TestStoreMalformedFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "swap_settings.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	store, err := NewStore(dir, "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore must tolerate corrupt state: %v", err)
	}
	if store.Get() != entity.DefaultTransactionSettings() {
		t.Errorf("got %+v, want defaults", store.Get())
	}
}

func TestSetSlippageAutoResetsValue(t *testing.T) {
	store, err := NewStore(t.TempDir(), "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	store.SetSlippage(false, 10)
	got := store.SetSlippage(true, 42)
	if !got.Slippage.IsAuto || got.Slippage.Value != entity.AutoSlippagePercent {
		t.Errorf("auto slippage = %+v, want auto %.1f", got.Slippage, entity.AutoSlippagePercent)
	}
}

func TestSetSlippageClampsCustomValue(t *testing.T) {
	store, err := NewStore(t.TempDir(), "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if got := store.SetSlippage(false, 99); got.Slippage.Value != entity.MaxSlippagePercent {
		t.Errorf("slippage = %v, want clamped to %v", got.Slippage.Value, entity.MaxSlippagePercent)
	}
	if got := store.SetSlippage(false, -3); got.Slippage.Value != 0 {
		t.Errorf("slippage = %v, want clamped to 0", got.Slippage.Value)
	}
}

func TestSetDeadlineClamps(t *testing.T) {
	store, err := NewStore(t.TempDir(), "swap", zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if got := store.SetDeadline(0); got.DeadlineMinutes != entity.MinDeadlineMinutes {
		t.Errorf("deadline = %d, want %d", got.DeadlineMinutes, entity.MinDeadlineMinutes)
	}
	if got := store.SetDeadline(100000); got.DeadlineMinutes != entity.MaxDeadlineMinutes {
		t.Errorf("deadline = %d, want %d", got.DeadlineMinutes, entity.MaxDeadlineMinutes)
	}
	if got := store.SetDeadline(4320); got.DeadlineMinutes != 4320 {
		t.Errorf("deadline = %d, want 4320 to stay in range", got.DeadlineMinutes)
	}
}

func TestPreferencesThemeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	prefs, err := NewPreferences(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPreferences: %v", err)
	}
	if prefs.Theme() != "dark" {
		t.Errorf("default theme = %q, want dark", prefs.Theme())
	}

	prefs.SetTheme("light")
	reloaded, err := NewPreferences(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPreferences reload: %v", err)
	}
	if reloaded.Theme() != "light" {
		t.Errorf("reloaded theme = %q, want light", reloaded.Theme())
	}
}
