package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestState_SaveAndLoad(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")

	s, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState on missing file: %v", err)
	}
	if s.StartedAt.IsZero() {
		t.Error("new state should have a start time")
	}
	s.setRemaining(3)
	s.MarkProcessed("a.html", 4, "business strategy")
	s.MarkProcessed("b.txt", 2, "business strategy")
	s.AddError("extract c.json: boom")

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !loaded.IsProcessed("a.html") || !loaded.IsProcessed("b.txt") {
		t.Errorf("processed files not restored: %v", loaded.FilesProcessed)
	}
	if loaded.Extracted != 2 || loaded.MessagesFound != 6 {
		t.Errorf("unexpected counts: extracted=%d messages=%d", loaded.Extracted, loaded.MessagesFound)
	}
	if loaded.FilesRemaining != 0 {
		t.Errorf("expected 0 remaining, got %d", loaded.FilesRemaining)
	}
	if loaded.Domains["business strategy"] != 2 {
		t.Errorf("unexpected domains %v", loaded.Domains)
	}
	if len(loaded.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", loaded.Errors)
	}
	if _, err := os.Stat(statePath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary state file left behind")
	}
}

func TestState_IsProcessed(t *testing.T) {
	s := &State{}

	if s.IsProcessed("file1.html") {
		t.Error("file1 should not be processed yet")
	}

	s.MarkProcessed("file1.html", 1, "")

	if !s.IsProcessed("file1.html") {
		t.Error("file1 should be processed")
	}
	if s.IsProcessed("file2.html") {
		t.Error("file2 should not be processed")
	}
	if s.Domains != nil {
		t.Errorf("empty domain should not be counted: %v", s.Domains)
	}
}

func TestState_CorruptFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(statePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(statePath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestState_SaveCreatesDirectories(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "nested", "dir", "state.json")

	s := &State{path: statePath}
	if err := s.Save(); err != nil {
		t.Fatalf("Save with nested dir failed: %v", err)
	}
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("state file not created in nested dir: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}

	got := expandHome("~/test/path")
	want := filepath.Join(home, "test/path")
	if got != want {
		t.Errorf("expandHome(~/test/path) = %q, want %q", got, want)
	}

	got = expandHome("/absolute/path")
	if got != "/absolute/path" {
		t.Errorf("expandHome(/absolute/path) = %q", got)
	}
}
