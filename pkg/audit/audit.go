// Package audit records structured governance events as JSON lines.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventTransition EventType = "TRANSITION"
	EventBarrier    EventType = "BARRIER"
	EventGate       EventType = "GATE"
	EventVerdict    EventType = "VERDICT"
	EventSystem     EventType = "SYSTEM"
)

// Event represents a structured audit record.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	PACID     string         `json:"pac_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, pacID, actor string, metadata map[string]any) error
}

type logger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, clock: time.Now}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, pacID, actor string, metadata map[string]any) error {
	_ = ctx
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Action:    action,
		PACID:     pacID,
		Actor:     actor,
		Timestamp: l.clock(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return json.NewEncoder(l.writer).Encode(event)
}

// Nop returns a Logger that discards every event.
func Nop() Logger {
	return &logger{writer: io.Discard, clock: time.Now}
}
