package prefs

import (
	"path/filepath"
	"testing"
)

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := s.Rotation(); ok {
		t.Fatal("fresh store should report no rotation override")
	}
}

func TestRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.SetColorCorrection(0xFF8040); err != nil {
		t.Fatalf("SetColorCorrection() error = %v", err)
	}
	if err := s.SetRotation(2); err != nil {
		t.Fatalf("SetRotation() error = %v", err)
	}

	// Simulate a reboot: reopen from the same path.
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen Open() error = %v", err)
	}
	if v, ok := reopened.ColorCorrection(); !ok || v != 0xFF8040 {
		t.Errorf("ColorCorrection() = %v,%v, want 0xFF8040,true", v, ok)
	}
	if v, ok := reopened.Rotation(); !ok || v != 2 {
		t.Errorf("Rotation() = %v,%v, want 2,true", v, ok)
	}
	if _, ok := reopened.PowerOverride(); ok {
		t.Error("PowerOverride should remain unset")
	}
}

func TestClearRemovesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s, _ := Open(path)
	if err := s.SetPowerOverride(1); err != nil {
		t.Fatalf("SetPowerOverride() error = %v", err)
	}
	if err := s.ClearPowerOverride(); err != nil {
		t.Fatalf("ClearPowerOverride() error = %v", err)
	}
	if _, ok := s.PowerOverride(); ok {
		t.Fatal("PowerOverride should be cleared")
	}
}
