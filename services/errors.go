package services

import (
	"errors"
	"fmt"
)

// Admission errors, returned synchronously by the supervisor before
// anything is started.
var (
	ErrAlreadyRunning     = errors.New("a session is already running for this user")
	ErrQuotaExceeded      = errors.New("daily application quota exhausted")
	ErrCredentialsMissing = errors.New("site credentials are missing for this user")
	ErrNotRunning         = errors.New("no running session for this user")
)

// AuthError is fatal to the worker: restarting will not fix bad
// credentials, so the supervisor must not auto-restart on it.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ChallengeError means the site demands manual verification. The worker
// escalates and waits instead of guessing.
type ChallengeError struct {
	PageURL string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("verification challenge at %s", e.PageURL)
}

// JobError is local to one job candidate: the job is aborted and recorded
// as failed, the traversal continues, and no quota is charged.
type JobError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job failed at %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("job failed at %s: %s", e.Stage, e.Reason)
}

func (e *JobError) Unwrap() error { return e.Err }

// ErrNoCloseAffordance is the hard error raised when a submitted
// application's confirmation UI offers no recognized way to dismiss it.
// The flow cannot confirm clean closure, so it refuses to continue.
var ErrNoCloseAffordance = errors.New("no close affordance found on post-submit confirmation")

// ErrStopRequested is the cooperative-cancellation signal observed by the
// worker between jobs.
var ErrStopRequested = errors.New("stop requested")
