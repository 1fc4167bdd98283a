// Package store holds the most recent analysis result: a single slot with
// last-write-wins semantics, shared by the submission pipeline (sole writer)
// and the summary surface (readers). A session-scoped file copy backs the
// slot so a process restart between submission and summary does not lose the
// result.
package store

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/apex/log"

	"face-analyze-pipeline/demographics"
)

// Entry is the stored result plus the time it was produced, so a future
// consumer can detect staleness.
type Entry struct {
	Analysis  demographics.Analysis `json:"analysis"`
	Timestamp time.Time             `json:"timestamp"`
}

// ResultStore is created once at startup and passed to the components that
// need it; there is no ambient global.
type ResultStore struct {
	mu           sync.RWMutex
	entry        *Entry
	fallbackPath string
	recovered    bool
}

// New creates an empty store. fallbackPath may be empty to disable the file
// copy.
func New(fallbackPath string) *ResultStore {
	return &ResultStore{fallbackPath: fallbackPath}
}

// Set overwrites the slot and refreshes the fallback copy. The fallback write
// is best-effort; a failure is logged, not propagated.
func (s *ResultStore) Set(analysis demographics.Analysis) {
	entry := &Entry{Analysis: analysis, Timestamp: time.Now()}

	s.mu.Lock()
	s.entry = entry
	s.recovered = true
	s.mu.Unlock()

	if s.fallbackPath == "" {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.WithError(err).Warn("failed to encode session fallback")
		return
	}
	if err := os.WriteFile(s.fallbackPath, data, 0o600); err != nil {
		log.WithError(err).Warn("failed to write session fallback")
	}
}

// Get returns the current result. An empty slot falls back to the session
// file once, covering a restart between submission and summary.
func (s *ResultStore) Get() (demographics.Analysis, time.Time, bool) {
	s.mu.RLock()
	entry := s.entry
	recovered := s.recovered
	s.mu.RUnlock()

	if entry == nil && !recovered {
		entry = s.recover()
	}
	if entry == nil {
		return nil, time.Time{}, false
	}
	return entry.Analysis, entry.Timestamp, true
}

// Clear empties the slot and removes the fallback copy.
func (s *ResultStore) Clear() {
	s.mu.Lock()
	s.entry = nil
	s.recovered = true
	s.mu.Unlock()

	if s.fallbackPath != "" {
		if err := os.Remove(s.fallbackPath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to remove session fallback")
		}
	}
}

// recover loads the fallback file into the slot. Attempted at most once per
// process so a corrupt or missing file does not cause repeated disk reads.
func (s *ResultStore) recover() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recovered {
		return s.entry
	}
	s.recovered = true

	if s.fallbackPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to read session fallback")
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.WithError(err).Warn("session fallback is corrupt, ignoring")
		return nil
	}
	if entry.Analysis.IsEmpty() {
		return nil
	}

	s.entry = &entry
	log.WithField("timestamp", entry.Timestamp).Info("recovered analysis from session fallback")
	return s.entry
}
