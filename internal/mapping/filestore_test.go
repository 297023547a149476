package mapping_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasksync/internal/mapping"
)

func newStore(t *testing.T) *mapping.FileStore {
	t.Helper()
	return mapping.NewFileStore(filepath.Join(t.TempDir(), "state", "sync_state.yaml"))
}

func TestFileStore_EmptyState(t *testing.T) {
	s := newStore(t)

	m, err := s.GetMapping()
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if m.Tasks == nil || m.Lists == nil {
		t.Fatal("expected non-nil maps for empty state")
	}
	if len(m.Tasks) != 0 || len(m.Lists) != 0 {
		t.Errorf("expected empty mapping, got %+v", m)
	}

	_, ok, err := s.GetLastSyncTime()
	if err != nil {
		t.Fatalf("GetLastSyncTime: %v", err)
	}
	if ok {
		t.Error("expected no last sync time")
	}
}

func TestFileStore_SaveAndReload(t *testing.T) {
	s := newStore(t)

	m := mapping.New()
	m.Tasks["L1"] = "R1"
	m.Tasks["L2"] = "R2"
	m.Lists["inbox"] = "LIST-A"
	when := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	if err := s.SaveMapping(m, when); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}

	// A fresh store on the same path sees the persisted state.
	reopened := mapping.NewFileStore(s.Path())
	got, err := reopened.GetMapping()
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if len(got.Tasks) != 2 || got.Tasks["L1"] != "R1" || got.Tasks["L2"] != "R2" {
		t.Errorf("unexpected task mapping: %+v", got.Tasks)
	}
	if got.Lists["inbox"] != "LIST-A" {
		t.Errorf("unexpected list mapping: %+v", got.Lists)
	}

	last, ok, err := reopened.GetLastSyncTime()
	if err != nil || !ok {
		t.Fatalf("expected last sync time, got ok=%v err=%v", ok, err)
	}
	if !last.Equal(when) {
		t.Errorf("expected %v, got %v", when, last)
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestFileStore_SaveReplacesWholeSet(t *testing.T) {
	s := newStore(t)

	first := mapping.New()
	first.Tasks["L1"] = "R1"
	if err := s.SaveMapping(first, time.Now()); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}

	second := mapping.New()
	second.Tasks["L2"] = "R2"
	if err := s.SaveMapping(second, time.Now()); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}

	got, _ := s.GetMapping()
	if _, ok := got.Tasks["L1"]; ok {
		t.Error("expected L1 to be replaced")
	}
	if got.Tasks["L2"] != "R2" {
		t.Errorf("expected L2 -> R2, got %+v", got.Tasks)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	s := newStore(t)
	m := mapping.New()
	m.Tasks["L1"] = "R1"
	if err := s.SaveMapping(m, time.Now()); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestFileStore_RejectsDuplicateRemote(t *testing.T) {
	s := newStore(t)
	m := mapping.New()
	m.Tasks["L1"] = "R1"
	m.Tasks["L2"] = "R1"

	if err := s.SaveMapping(m, time.Now()); err == nil {
		t.Fatal("expected error when two local ids share a remote id")
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("expected nothing written")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	s := newStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte("tasks: [not, a, map"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetMapping(); err == nil {
		t.Fatal("expected error for corrupt state file")
	}
}

func TestFileStore_ClearReportsCounts(t *testing.T) {
	s := newStore(t)
	m := mapping.New()
	m.Tasks["L1"] = "R1"
	m.Tasks["L2"] = "R2"
	m.Tasks["L3"] = "R3"
	m.Lists["inbox"] = "LIST-A"
	if err := s.SaveMapping(m, time.Now()); err != nil {
		t.Fatalf("SaveMapping: %v", err)
	}

	stats, err := s.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if stats.Tasks != 3 || stats.Lists != 1 {
		t.Errorf("expected 3 tasks and 1 list cleared, got %+v", stats)
	}

	got, _ := s.GetMapping()
	if len(got.Tasks) != 0 || len(got.Lists) != 0 {
		t.Errorf("expected empty mapping after clear, got %+v", got)
	}
	if _, ok, _ := s.GetLastSyncTime(); ok {
		t.Error("expected no last sync time after clear")
	}

	// Clearing twice is fine and reports nothing.
	stats, err = s.Clear()
	if err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if stats != (mapping.ClearStats{}) {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestMapping_RemoteToLocal(t *testing.T) {
	m := mapping.New()
	m.Tasks["L1"] = "R1"
	m.Tasks["L2"] = "R2"

	idx := m.RemoteToLocal()
	if idx["R1"] != "L1" || idx["R2"] != "L2" || len(idx) != 2 {
		t.Errorf("unexpected reverse index: %+v", idx)
	}
}

func TestFileStore_SaveFailsWhenDirectorySyncFails(t *testing.T) {
	s := newStore(t)
	restore := mapping.SetSyncDir(func(string) error { return errors.New("input/output error") })
	defer restore()

	m := mapping.New()
	m.Tasks["L1"] = "R1"
	err := s.SaveMapping(m, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err == nil || !strings.Contains(err.Error(), "input/output error") {
		t.Fatalf("expected directory sync error, got %v", err)
	}
}
