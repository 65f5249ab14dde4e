// Package archive persists the captions a translation session produced so
// they can be reviewed after the conversation ends.
package archive

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Caption is one translated line that was sent to the display.
type Caption struct {
	SessionID  string
	Source     string
	Translated string
	Timestamp  time.Time
}

// Archive records sessions and the captions emitted during them.
// Implementations must be safe for concurrent use.
type Archive interface {
	// BeginSession registers a new session and returns its ID.
	BeginSession(ctx context.Context, startedAt time.Time) (string, error)
	// WriteCaption appends one caption to a session.
	WriteCaption(ctx context.Context, c Caption) error
	// EndSession marks a session finished.
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
	// ListCaptions returns a session's captions ordered chronologically.
	ListCaptions(ctx context.Context, sessionID string) ([]Caption, error)
	// Close releases any underlying resources.
	Close() error
}

// Memory is an in-process Archive used when no database is configured and in
// tests. Captions live only as long as the process.
type Memory struct {
	mu       sync.Mutex
	nextID   int
	captions map[string][]Caption
}

var _ Archive = (*Memory)(nil)

// NewMemory creates an empty in-process archive.
func NewMemory() *Memory {
	return &Memory{captions: map[string][]Caption{}}
}

// BeginSession implements Archive.
func (m *Memory) BeginSession(ctx context.Context, startedAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := startedAt.UTC().Format("20060102T150405") + "-" + strconv.Itoa(m.nextID)
	m.captions[id] = nil
	return id, nil
}

// WriteCaption implements Archive.
func (m *Memory) WriteCaption(ctx context.Context, c Caption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captions[c.SessionID] = append(m.captions[c.SessionID], c)
	return nil
}

// EndSession implements Archive.
func (m *Memory) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	return nil
}

// ListCaptions implements Archive.
func (m *Memory) ListCaptions(ctx context.Context, sessionID string) ([]Caption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Caption, len(m.captions[sessionID]))
	copy(out, m.captions[sessionID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Close implements Archive.
func (m *Memory) Close() error { return nil }
