package models

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"time"
)

type EventKind string

const (
	EventActivity             EventKind = "activity"
	EventApplicationSubmitted EventKind = "application_submitted"
	EventApplicationFailed    EventKind = "application_failed"
	EventStatusChanged        EventKind = "status_changed"
	EventEscalation           EventKind = "escalation"
)

// WorkerEvent is one message on the worker -> supervisor stream. Events are
// written as JSON lines on the worker's stdout pipe.
type WorkerEvent struct {
	Kind      EventKind          `json:"kind"`
	SessionID string             `json:"session_id"`
	Action    string             `json:"action,omitempty"`
	Detail    string             `json:"detail,omitempty"`
	Severity  string             `json:"severity,omitempty"`
	Status    string             `json:"status,omitempty"`
	Record    *ApplicationRecord `json:"record,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// EventWriter serializes worker events onto a single stream. Safe for use
// from the traversal and the state machine concurrently.
type EventWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{enc: json.NewEncoder(w)}
}

func (ew *EventWriter) Write(ev WorkerEvent) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	return ew.enc.Encode(ev)
}

// ReadEvents decodes the JSON-line event stream until EOF or a decode
// error, delivering each event to fn. Malformed lines are skipped so a
// stray print from a crashed worker cannot wedge the supervisor.
func ReadEvents(r io.Reader, fn func(WorkerEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev WorkerEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		fn(ev)
	}
	return scanner.Err()
}
