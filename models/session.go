package models

import (
	"time"
)

type SessionStatus string

const (
	SessionStarting SessionStatus = "starting"
	SessionRunning  SessionStatus = "running"
	SessionStopping SessionStatus = "stopping"
	SessionStopped  SessionStatus = "stopped"
	SessionTimeout  SessionStatus = "timeout"
	SessionError    SessionStatus = "error"
)

// Session is the supervisor's run-state for one user's worker. All fields
// are guarded by the supervisor's per-user lock; workers never touch this
// struct directly, they report through the event stream.
type Session struct {
	UserID       int
	SessionID    string
	StartedAt    time.Time
	LastActivity time.Time
	Submitted    int
	DailyQuota   int
	UsageAtStart int
	RestartCount int
	Status       SessionStatus
	StopReason   string
	Activity     *ActivityRing
}

// SessionSnapshot is the read-only view returned to status callers.
type SessionSnapshot struct {
	UserID       int             `json:"user_id"`
	SessionID    string          `json:"session_id"`
	StartedAt    time.Time       `json:"started_at"`
	LastActivity time.Time       `json:"last_activity"`
	Submitted    int             `json:"applications_submitted"`
	DailyQuota   int             `json:"daily_quota"`
	UsageAtStart int             `json:"usage_at_start"`
	RestartCount int             `json:"restart_count"`
	Status       SessionStatus   `json:"status"`
	StopReason   string          `json:"stop_reason,omitempty"`
	Activity     []ActivityEntry `json:"recent_activity"`
}

func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		UserID:       s.UserID,
		SessionID:    s.SessionID,
		StartedAt:    s.StartedAt,
		LastActivity: s.LastActivity,
		Submitted:    s.Submitted,
		DailyQuota:   s.DailyQuota,
		UsageAtStart: s.UsageAtStart,
		RestartCount: s.RestartCount,
		Status:       s.Status,
		StopReason:   s.StopReason,
		Activity:     s.Activity.Entries(),
	}
}

// Remaining reports how many applications the session may still submit
// before hitting the daily ceiling admitted at start.
func (s *Session) Remaining() int {
	r := s.DailyQuota - s.UsageAtStart - s.Submitted
	if r < 0 {
		return 0
	}
	return r
}

type ActivityEntry struct {
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityRing keeps the most recent N activity entries for live status.
type ActivityRing struct {
	entries []ActivityEntry
	next    int
	full    bool
}

func NewActivityRing(size int) *ActivityRing {
	if size <= 0 {
		size = 1
	}
	return &ActivityRing{entries: make([]ActivityEntry, size)}
}

func (r *ActivityRing) Append(e ActivityEntry) {
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns the buffered entries, most recent first.
func (r *ActivityRing) Entries() []ActivityEntry {
	n := r.next
	if r.full {
		n = len(r.entries)
	}
	out := make([]ActivityEntry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.entries[(r.next-i+len(r.entries))%len(r.entries)])
	}
	return out
}

func (r *ActivityRing) Len() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}
