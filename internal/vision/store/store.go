// Package store implements the append-only, line-delimited event log
// described in spec.md §4.5, backed by an injectable filesystem so it can
// be tested without touching disk.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/rebar-platform/edgevision/internal/fsutil"
	"github.com/rebar-platform/edgevision/internal/security"
	"github.com/rebar-platform/edgevision/internal/vision/event"
)

// ErrInvalidPath is returned when the store's path escapes its allowed
// directory.
var ErrInvalidPath = errors.New("store: invalid path")

// EventStore appends Event records to a single line-delimited file,
// one JSON object per line, never changing or reordering prior lines.
type EventStore struct {
	fs   fsutil.FileSystem
	path string
	mu   sync.Mutex
}

// New constructs an EventStore writing to path, which must resolve within
// allowedDir. allowedDir also bounds any directory the store is asked to
// create.
func New(filesystem fsutil.FileSystem, path, allowedDir string) (*EventStore, error) {
	if err := security.ValidatePathWithinDirectory(path, allowedDir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return &EventStore{fs: filesystem, path: path}, nil
}

// Append adds e as one new trailing line. fsutil.FileSystem has no append
// mode, so Append reads the existing file and writes it back whole with
// the new line added at the end: prior lines keep their bytes and order,
// but the write is not an in-place append and is not atomic per line.
func (s *EventStore) Append(e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := e.MarshalLine()
	if err != nil {
		return err
	}
	line = append(line, '\n')

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("store: creating parent directory: %w", err)
	}

	existing, err := s.fs.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: reading existing log: %w", err)
		}
		existing = nil
	}
	return s.fs.WriteFile(s.path, append(existing, line...), 0o644)
}

// ReadAll returns every event currently recorded, in append order.
func (s *EventStore) ReadAll() ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readAllLocked(s.fs, s.path)
}

func readAllLocked(filesystem fsutil.FileSystem, path string) ([]event.Event, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: reading log: %w", err)
	}

	var events []event.Event
	for i, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		e, err := event.UnmarshalLine(line)
		if err != nil {
			return nil, fmt.Errorf("store: line %d: %w", i+1, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Violation describes one append-only invariant violation found by
// ScanForViolations.
type Violation struct {
	Line   int
	Reason string
}

// ScanForViolations reads the log at path and reports every duplicate
// event_id and every non-increasing timestamp within a station's
// sequence, without mutating the file (spec.md §4.5 edge cases).
func ScanForViolations(filesystem fsutil.FileSystem, path string) ([]Violation, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: reading log: %w", err)
	}

	var violations []Violation
	seenIDs := map[string]int{}
	lastTimestampByStation := map[string]struct {
		line int
		e    event.Event
	}{}

	for i, raw := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		lineNum := i + 1
		e, err := event.UnmarshalLine(raw)
		if err != nil {
			violations = append(violations, Violation{Line: lineNum, Reason: fmt.Sprintf("unparseable record: %v", err)})
			continue
		}

		if firstLine, ok := seenIDs[e.EventID()]; ok {
			violations = append(violations, Violation{
				Line:   lineNum,
				Reason: fmt.Sprintf("duplicate event_id %q, first seen at line %d", e.EventID(), firstLine),
			})
		} else {
			seenIDs[e.EventID()] = lineNum
		}

		if prev, ok := lastTimestampByStation[e.StationID()]; ok {
			if !e.Timestamp().After(prev.e.Timestamp()) {
				violations = append(violations, Violation{
					Line: lineNum,
					Reason: fmt.Sprintf("timestamp %s is not strictly after line %d's %s for station %q",
						e.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"),
						prev.line,
						prev.e.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"),
						e.StationID()),
				})
			}
		}
		lastTimestampByStation[e.StationID()] = struct {
			line int
			e    event.Event
		}{lineNum, e}
	}
	return violations, nil
}

// VerifyAppendOnly reports whether the log contains no duplicate
// event_id, the append-only invariant's defining check (spec.md §4.5):
// it does not compare content against any prior snapshot.
func (s *EventStore) VerifyAppendOnly() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := readAllLocked(s.fs, s.path)
	if err != nil {
		return false, err
	}
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if _, ok := seen[e.EventID()]; ok {
			return false, nil
		}
		seen[e.EventID()] = struct{}{}
	}
	return true, nil
}

// HasIdenticalPrefix reports whether the file at path still starts with
// the exact bytes previously observed in priorContent, i.e. nothing
// already written was rewritten or reordered. This is a byte-level
// sanity check distinct from VerifyAppendOnly's event_id-uniqueness
// contract.
func (s *EventStore) HasIdenticalPrefix(priorContent []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return len(priorContent) == 0, nil
		}
		return false, fmt.Errorf("store: reading log: %w", err)
	}
	if len(current) < len(priorContent) {
		return false, nil
	}
	return bytes.Equal(current[:len(priorContent)], priorContent), nil
}

// Snapshot returns the raw current file content, for use as a later
// HasIdenticalPrefix baseline.
func (s *EventStore) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
