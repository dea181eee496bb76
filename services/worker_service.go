package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync/atomic"

	"applypilot/models"
)

// CredentialSource is the account collaborator's credentials interface.
type CredentialSource interface {
	GetCredentials(userID int) (identity, secret string, err error)
}

// ActivityAppender persists activity rows for the live progress feed.
type ActivityAppender interface {
	Append(userID int, sessionID, action, detail, severity string, metadata map[string]interface{}) error
}

// WorkerService is the runtime of one worker process: it logs the account
// in, runs the traversal, and reports typed events to the supervisor over
// the event stream. One WorkerService serves exactly one session.
type WorkerService struct {
	spec        models.WorkerSpec
	logger      *slog.Logger
	events      *models.EventWriter
	credentials CredentialSource
	recorder    ApplicationRecorder
	discovered  DiscoveredJobSink
	audit       UnresolvedAuditor
	activity    ActivityAppender
	resumes     *S3Service
	gemini      *GeminiClient
	telegram    *TelegramReporter
	classifier  PageClassifier
	stopFlag    *atomic.Bool
}

type WorkerDeps struct {
	Logger      *slog.Logger
	Events      *models.EventWriter
	Credentials CredentialSource
	Recorder    ApplicationRecorder
	Discovered  DiscoveredJobSink
	Audit       UnresolvedAuditor
	Activity    ActivityAppender
	S3          *S3Service
	Gemini      *GeminiClient
	Telegram    *TelegramReporter
	Classifier  PageClassifier
	StopFlag    *atomic.Bool
}

func NewWorkerService(spec models.WorkerSpec, deps WorkerDeps) *WorkerService {
	return &WorkerService{
		spec:        spec,
		logger:      deps.Logger,
		events:      deps.Events,
		credentials: deps.Credentials,
		recorder:    deps.Recorder,
		discovered:  deps.Discovered,
		audit:       deps.Audit,
		activity:    deps.Activity,
		resumes:     deps.S3,
		gemini:      deps.Gemini,
		telegram:    deps.Telegram,
		classifier:  deps.Classifier,
		stopFlag:    deps.StopFlag,
	}
}

// Run executes the whole worker lifecycle. The returned error is nil when
// the traversal completed or was stopped on request; authentication and
// challenge failures come back typed so the entrypoint can map exit codes.
func (w *WorkerService) Run(ctx context.Context) error {
	w.emitStatus(string(models.SessionStarting), "")

	identity, secret, err := w.credentials.GetCredentials(w.spec.UserID)
	if err != nil || identity == "" {
		w.emitStatus(string(models.SessionError), "site credentials unavailable")
		return &AuthError{Reason: "credentials unavailable"}
	}

	browser, err := NewBrowserService(w.classifier, w.escalateChallenge)
	if err != nil {
		w.emitStatus(string(models.SessionError), fmt.Sprintf("browser launch failed: %v", err))
		return err
	}
	defer browser.Close()

	if err := browser.Login(ctx, identity, secret); err != nil {
		var authErr *AuthError
		var chErr *ChallengeError
		switch {
		case errors.As(err, &authErr):
			w.emitStatus(string(models.SessionError), authErr.Error())
		case errors.As(err, &chErr):
			w.emitStatus(string(models.SessionError), "verification challenge not cleared in time")
		default:
			w.emitStatus(string(models.SessionError), fmt.Sprintf("login failed: %v", err))
		}
		return err
	}

	w.emitStatus(string(models.SessionRunning), "")
	w.emitActivity("login", "signed in", "info")

	background := w.buildBackground()
	engine := NewAnswerEngine(w.spec.UserID, w.spec.Answers, background, w.gemini, w.audit)
	filler := NewFormStepFiller(w.spec.Profile, engine, w.resumePath(), w.spec.CoverLetter)
	var uploader ScreenshotUploader
	if w.resumes != nil {
		uploader = w.resumes
	}
	flow := NewApplicationFlowService(w.classifier, filler, w.recorder, uploader, w.spec.UserID, w.spec.SessionID)

	var fit JobFitChecker
	if w.gemini.Available() {
		fit = w.gemini
	}
	filter := NewJobFilter(w.spec.Search, background, fit)

	traversal := NewTraversalService(
		w.spec.Search, filter, flow, w.classifier, w.discovered, w,
		w.spec.UserID, w.spec.MaxApplications, w.stopFlag.Load,
	)

	submitted, err := traversal.Run(ctx, browser.Page())
	if err != nil {
		w.emitStatus(string(models.SessionError), fmt.Sprintf("traversal failed: %v", err))
		return err
	}

	if w.stopFlag.Load() || ctx.Err() != nil {
		w.emitStatus(string(models.SessionStopped), "stopped on request")
		return ErrStopRequested
	}

	w.logger.Info("Traversal complete",
		slog.Int("submitted", submitted),
		slog.Int("seen", filter.SeenCount()),
	)
	w.emitStatus(string(models.SessionStopped), "completed")
	return nil
}

// Activity implements EventSink.
func (w *WorkerService) Activity(action, detail, severity string) {
	w.emitActivity(action, detail, severity)
}

// Submitted implements EventSink.
func (w *WorkerService) Submitted(rec *models.ApplicationRecord) {
	if err := w.events.Write(models.WorkerEvent{
		Kind:      models.EventApplicationSubmitted,
		SessionID: w.spec.SessionID,
		Record:    rec,
	}); err != nil {
		log.Printf("Warning: failed to emit submitted event: %v", err)
	}
}

// Failed implements EventSink.
func (w *WorkerService) Failed(candidate JobCandidate, reason string) {
	_ = w.events.Write(models.WorkerEvent{
		Kind:      models.EventApplicationFailed,
		SessionID: w.spec.SessionID,
		Action:    "application_failed",
		Detail:    fmt.Sprintf("%s at %s: %s", candidate.Title, candidate.Company, reason),
		Severity:  "warning",
	})
	w.appendActivity("application_failed", fmt.Sprintf("%s at %s: %s", candidate.Title, candidate.Company, reason), "warning")
}

func (w *WorkerService) emitStatus(status, detail string) {
	_ = w.events.Write(models.WorkerEvent{
		Kind:      models.EventStatusChanged,
		SessionID: w.spec.SessionID,
		Status:    status,
		Detail:    detail,
	})
}

func (w *WorkerService) emitActivity(action, detail, severity string) {
	_ = w.events.Write(models.WorkerEvent{
		Kind:      models.EventActivity,
		SessionID: w.spec.SessionID,
		Action:    action,
		Detail:    detail,
		Severity:  severity,
	})
	w.appendActivity(action, detail, severity)
}

func (w *WorkerService) appendActivity(action, detail, severity string) {
	if w.activity == nil {
		return
	}
	if err := w.activity.Append(w.spec.UserID, w.spec.SessionID, action, detail, severity, nil); err != nil {
		log.Printf("Warning: failed to append activity log: %v", err)
	}
}

func (w *WorkerService) escalateChallenge(pageURL string) {
	_ = w.events.Write(models.WorkerEvent{
		Kind:      models.EventEscalation,
		SessionID: w.spec.SessionID,
		Action:    "challenge",
		Detail:    pageURL,
		Severity:  "warning",
	})
	if w.telegram != nil {
		if err := w.telegram.ReportChallenge(w.spec.UserID, w.spec.SessionID, pageURL); err != nil {
			log.Printf("Warning: failed to send challenge notification: %v", err)
		}
	}
}

// resumePath returns a closure that downloads the stored resume once and
// reuses the local copy for every application.
func (w *WorkerService) resumePath() func() (string, error) {
	var cached string
	return func() (string, error) {
		if cached != "" {
			return cached, nil
		}
		if w.resumes == nil {
			return "", fmt.Errorf("file store not configured")
		}
		path, err := w.resumes.DownloadToTemp(w.spec.ResumeS3Key)
		if err != nil {
			return "", err
		}
		cached = path
		return cached, nil
	}
}

// buildBackground assembles the candidate context handed to the
// generative fallback. Built once per session.
func (w *WorkerService) buildBackground() string {
	p := w.spec.Profile
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.FullName())
	if p.City != "" {
		fmt.Fprintf(&b, "Location: %s, %s, %s\n", p.City, p.State, p.Country)
	}
	if len(w.spec.Answers.SkillYears) > 0 {
		b.WriteString("Skills (years of experience):\n")
		for skill, years := range w.spec.Answers.SkillYears {
			fmt.Fprintf(&b, "- %s: %d\n", skill, years)
		}
	}
	if p.Background != "" {
		b.WriteString(p.Background)
	}
	return b.String()
}
