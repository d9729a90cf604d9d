package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultStatePath is where progress is kept when no path is configured.
const DefaultStatePath = "~/.resonance/batch-state.json"

// State tracks progress for resumable batch runs. It is safe for
// concurrent use.
type State struct {
	StartedAt       time.Time      `json:"started_at"`
	LastProcessedAt time.Time      `json:"last_processed_at"`
	FilesProcessed  []string       `json:"files_processed"`
	FilesRemaining  int            `json:"files_remaining"`
	Extracted       int            `json:"extracted"`
	MessagesFound   int            `json:"messages_found"`
	Domains         map[string]int `json:"domains,omitempty"`
	Errors          []string       `json:"errors"`

	mu   sync.Mutex
	path string
}

// LoadState loads the state at path, or starts a new one if the file does
// not exist yet.
func LoadState(path string) (*State, error) {
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	// Write then rename so an interrupted save never truncates progress.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// IsProcessed reports whether path was completed in an earlier run.
func (s *State) IsProcessed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.FilesProcessed, path)
}

// MarkProcessed records a completed file with its message count and
// problem domain.
func (s *State) MarkProcessed(path string, messages int, domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesProcessed = append(s.FilesProcessed, path)
	s.Extracted++
	s.MessagesFound += messages
	if s.FilesRemaining > 0 {
		s.FilesRemaining--
	}
	if domain != "" {
		if s.Domains == nil {
			s.Domains = make(map[string]int)
		}
		s.Domains[domain]++
	}
}

// AddError records a processing error.
func (s *State) AddError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, msg)
	if s.FilesRemaining > 0 {
		s.FilesRemaining--
	}
}

func (s *State) setRemaining(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesRemaining = n
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
