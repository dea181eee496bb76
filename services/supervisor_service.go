package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"applypilot/config"
	"applypilot/models"
)

// QuotaSource reports the daily application ceiling for admission checks.
type QuotaSource interface {
	GetQuota(userID int) (quota, usage int, err error)
}

// StartRequest carries the caller-supplied configuration for a new session.
type StartRequest struct {
	Search      models.SearchConfig     `json:"search"`
	Answers     models.AnswerConfig     `json:"answers"`
	Profile     models.CandidateProfile `json:"profile"`
	ResumeS3Key string                  `json:"resume_s3_key"`
	CoverLetter string                  `json:"cover_letter,omitempty"`
}

// SessionSupervisor owns the table of live sessions, one worker process
// per user at most. All process interaction goes through the handle
// returned at launch; the supervisor never scans for processes by name.
type SessionSupervisor struct {
	cfg      config.SupervisorConfig
	launcher WorkerLauncher
	quotas   QuotaSource
	creds    CredentialSource
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[int]*sessionHandle
}

type sessionHandle struct {
	mu        sync.Mutex
	session   *models.Session
	spec      models.WorkerSpec
	worker    WorkerHandle
	fatal     bool // worker reported an unrecoverable error; never restart
	completed bool // worker reported a clean finish
}

func NewSessionSupervisor(cfg config.SupervisorConfig, launcher WorkerLauncher, quotas QuotaSource, creds CredentialSource, logger *slog.Logger) *SessionSupervisor {
	return &SessionSupervisor{
		cfg:      cfg,
		launcher: launcher,
		quotas:   quotas,
		creds:    creds,
		logger:   logger,
		sessions: make(map[int]*sessionHandle),
	}
}

// Start admits and launches a session for the user. Admission fails when a
// session is already live, the daily quota is exhausted, or the account
// has no stored site credentials.
func (s *SessionSupervisor) Start(userID int, req StartRequest) (models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, live := s.sessions[userID]; live {
		return models.SessionSnapshot{}, ErrAlreadyRunning
	}

	quota, usage, err := s.quotas.GetQuota(userID)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	remaining := quota - usage
	if remaining <= 0 {
		return models.SessionSnapshot{}, ErrQuotaExceeded
	}

	identity, _, err := s.creds.GetCredentials(userID)
	if err != nil || identity == "" {
		return models.SessionSnapshot{}, ErrCredentialsMissing
	}

	sessionID := uuid.New().String()
	spec := models.WorkerSpec{
		UserID:          userID,
		SessionID:       sessionID,
		MaxApplications: remaining,
		Search:          req.Search,
		Answers:         req.Answers,
		Profile:         req.Profile,
		ResumeS3Key:     req.ResumeS3Key,
		CoverLetter:     req.CoverLetter,
	}

	worker, err := s.launcher.Launch(spec)
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	now := time.Now()
	h := &sessionHandle{
		session: &models.Session{
			UserID:       userID,
			SessionID:    sessionID,
			StartedAt:    now,
			LastActivity: now,
			DailyQuota:   quota,
			UsageAtStart: usage,
			Status:       models.SessionStarting,
			Activity:     models.NewActivityRing(50),
		},
		spec:   spec,
		worker: worker,
	}
	s.sessions[userID] = h

	go s.consumeEvents(h, worker)

	s.logger.Info("Session started",
		slog.Int("user_id", userID),
		slog.String("session_id", sessionID),
		slog.Int("max_applications", remaining),
	)
	return h.session.Snapshot(), nil
}

// Stop requests a cooperative shutdown and escalates to a hard kill after
// the grace period. The call returns once the stop has been initiated.
func (s *SessionSupervisor) Stop(userID int, reason string) error {
	s.mu.Lock()
	h, live := s.sessions[userID]
	s.mu.Unlock()
	if !live {
		return ErrNotRunning
	}

	h.mu.Lock()
	if h.session.Status == models.SessionStopping {
		h.mu.Unlock()
		return nil
	}
	h.session.Status = models.SessionStopping
	h.session.StopReason = reason
	worker := h.worker
	h.mu.Unlock()

	go s.stopAndReap(h, worker, reason)
	return nil
}

// Status returns the live snapshot, or false when no session exists.
func (s *SessionSupervisor) Status(userID int) (models.SessionSnapshot, bool) {
	s.mu.Lock()
	h, live := s.sessions[userID]
	s.mu.Unlock()
	if !live {
		return models.SessionSnapshot{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.Snapshot(), true
}

// StopAll shuts every live session down; used on supervisor shutdown.
func (s *SessionSupervisor) StopAll(reason string) {
	s.mu.Lock()
	users := make([]int, 0, len(s.sessions))
	for userID := range s.sessions {
		users = append(users, userID)
	}
	s.mu.Unlock()
	for _, userID := range users {
		_ = s.Stop(userID, reason)
	}
}

// Monitor runs the periodic health pass until ctx is cancelled.
func (s *SessionSupervisor) Monitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.monitorPass(now)
		}
	}
}

// monitorPass examines every session once: dead workers are restarted or
// finalized, silent workers are restarted, exhausted quotas stop the
// session.
func (s *SessionSupervisor) monitorPass(now time.Time) {
	s.mu.Lock()
	handles := make([]*sessionHandle, 0, len(s.sessions))
	for _, h := range s.sessions {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		if h.session.Status == models.SessionStopping {
			h.mu.Unlock()
			continue
		}

		switch {
		case !h.worker.Alive():
			switch {
			case h.completed:
				s.finalizeLocked(h, models.SessionStopped, "completed")
			case h.fatal:
				s.finalizeLocked(h, models.SessionError, h.session.StopReason)
			case h.session.RestartCount >= s.cfg.MaxRestarts:
				s.finalizeLocked(h, models.SessionError, "process died, max restarts reached")
			default:
				s.restartLocked(h, "process died")
			}
		case now.Sub(h.session.LastActivity) > s.cfg.ActivityTimeout:
			if h.session.RestartCount >= s.cfg.MaxRestarts {
				worker := h.worker
				h.session.Status = models.SessionStopping
				h.session.StopReason = "activity timeout, max restarts reached"
				go s.stopAndReap(h, worker, h.session.StopReason)
			} else {
				_ = h.worker.Kill()
				s.restartLocked(h, "activity timeout")
			}
		case h.session.Remaining() == 0:
			worker := h.worker
			h.session.Status = models.SessionStopping
			h.session.StopReason = "quota reached"
			go s.stopAndReap(h, worker, "quota reached")
		}
		h.mu.Unlock()
	}
}

// restartLocked replaces the dead worker with a fresh process under a new
// session id. Submitted counts and the original request survive; only the
// remaining budget is recomputed. Caller holds h.mu.
func (s *SessionSupervisor) restartLocked(h *sessionHandle, cause string) {
	sessionID := uuid.New().String()
	spec := h.spec
	spec.SessionID = sessionID
	spec.MaxApplications = h.session.Remaining()

	worker, err := s.launcher.Launch(spec)
	if err != nil {
		s.logger.Error("Worker restart failed",
			slog.Int("user_id", h.session.UserID),
			slog.String("cause", cause),
			slog.Any("error", err),
		)
		s.finalizeLocked(h, models.SessionError, "restart failed: "+err.Error())
		return
	}

	h.spec = spec
	h.worker = worker
	h.session.SessionID = sessionID
	h.session.RestartCount++
	h.session.Status = models.SessionStarting
	h.session.LastActivity = time.Now()
	go s.consumeEvents(h, worker)

	s.logger.Warn("Worker restarted",
		slog.Int("user_id", h.session.UserID),
		slog.String("session_id", sessionID),
		slog.String("cause", cause),
		slog.Int("restart_count", h.session.RestartCount),
	)
}

// stopAndReap waits out the grace period for a cooperative exit, then
// kills the process group and finalizes the session.
func (s *SessionSupervisor) stopAndReap(h *sessionHandle, worker WorkerHandle, reason string) {
	if err := worker.Stop(); err != nil {
		s.logger.Warn("Stop signal failed", slog.Any("error", err))
	}

	done := make(chan struct{})
	go func() {
		_ = worker.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.StopGracePeriod):
		s.logger.Warn("Worker did not exit in grace period, killing process group",
			slog.Int("user_id", h.session.UserID),
		)
		_ = worker.Kill()
		<-done
	}

	h.mu.Lock()
	s.finalizeLocked(h, models.SessionStopped, reason)
	h.mu.Unlock()
}

// finalizeLocked records the terminal state and removes the session from
// the table. Caller holds h.mu.
func (s *SessionSupervisor) finalizeLocked(h *sessionHandle, status models.SessionStatus, reason string) {
	h.session.Status = status
	if reason != "" {
		h.session.StopReason = reason
	}
	s.mu.Lock()
	if cur, ok := s.sessions[h.session.UserID]; ok && cur == h {
		delete(s.sessions, h.session.UserID)
	}
	s.mu.Unlock()

	s.logger.Info("Session finished",
		slog.Int("user_id", h.session.UserID),
		slog.String("session_id", h.session.SessionID),
		slog.String("status", string(status)),
		slog.String("reason", h.session.StopReason),
		slog.Int("submitted", h.session.Submitted),
	)
}

// consumeEvents drains one worker's event stream into the session state.
// Exits when the worker closes its stdout.
func (s *SessionSupervisor) consumeEvents(h *sessionHandle, worker WorkerHandle) {
	for ev := range worker.Events() {
		h.mu.Lock()
		// A restart may have swapped the worker out from under this stream.
		if h.worker != worker {
			h.mu.Unlock()
			continue
		}
		h.session.LastActivity = time.Now()

		switch ev.Kind {
		case models.EventActivity:
			h.session.Activity.Append(models.ActivityEntry{
				Action:    ev.Action,
				Detail:    ev.Detail,
				Severity:  ev.Severity,
				Timestamp: ev.Timestamp,
			})
		case models.EventApplicationSubmitted:
			h.session.Submitted++
			detail := ""
			if ev.Record != nil {
				detail = ev.Record.JobTitle + " at " + ev.Record.Company
			}
			h.session.Activity.Append(models.ActivityEntry{
				Action:    "applied",
				Detail:    detail,
				Severity:  "info",
				Timestamp: ev.Timestamp,
			})
		case models.EventApplicationFailed:
			h.session.Activity.Append(models.ActivityEntry{
				Action:    "application_failed",
				Detail:    ev.Detail,
				Severity:  "warning",
				Timestamp: ev.Timestamp,
			})
		case models.EventStatusChanged:
			switch models.SessionStatus(ev.Status) {
			case models.SessionRunning:
				if h.session.Status == models.SessionStarting {
					h.session.Status = models.SessionRunning
				}
			case models.SessionError:
				h.fatal = true
				h.session.StopReason = ev.Detail
			case models.SessionStopped:
				h.completed = true
				if ev.Detail != "" {
					h.session.StopReason = ev.Detail
				}
			}
		case models.EventEscalation:
			h.session.Activity.Append(models.ActivityEntry{
				Action:    "challenge",
				Detail:    ev.Detail,
				Severity:  "warning",
				Timestamp: ev.Timestamp,
			})
		}
		h.mu.Unlock()
	}
}
