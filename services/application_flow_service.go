package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"applypilot/models"
)

// ApplicationRecorder persists the durable outcome of one application.
type ApplicationRecorder interface {
	CreateSubmitted(rec *models.ApplicationRecord) error
	CreateFailed(rec *models.ApplicationRecord) error
}

// ScreenshotUploader stores failure screenshots. May be absent.
type ScreenshotUploader interface {
	UploadBytes(key string, content []byte, contentType string) error
}

// StepFiller fills one classified modal step with the candidate's data.
type StepFiller interface {
	FillStep(ctx context.Context, modal playwright.Locator, kind FormStepKind, candidate JobCandidate) (bool, error)
}

// ApplicationFlowService drives one job's apply modal from open to a
// terminal submitted or aborted state. Steps are classified by heading,
// filled by the matching routine, and advanced via the primary action
// button until the submit label appears.
type ApplicationFlowService struct {
	classifier PageClassifier
	filler     StepFiller
	recorder   ApplicationRecorder
	uploader   ScreenshotUploader
	userID     int
	sessionID  string
	maxSteps   int
}

func NewApplicationFlowService(classifier PageClassifier, filler StepFiller, recorder ApplicationRecorder, uploader ScreenshotUploader, userID int, sessionID string) *ApplicationFlowService {
	return &ApplicationFlowService{
		classifier: classifier,
		filler:     filler,
		recorder:   recorder,
		uploader:   uploader,
		userID:     userID,
		sessionID:  sessionID,
		maxSteps:   20,
	}
}

// Apply runs the state machine for one candidate whose detail page is
// already open. A non-nil record is returned only when the flow reached
// the terminal submit action and the confirmation UI was dismissed; in
// that case the record has been written and quota charged. A JobError
// means the job was aborted and recorded as failed with no quota consumed.
func (s *ApplicationFlowService) Apply(ctx context.Context, page playwright.Page, candidate JobCandidate) (*models.ApplicationRecord, error) {
	applyButton := page.Locator("button.jobs-apply-button, button[aria-label*='Easy Apply']").First()
	if visible, _ := applyButton.IsVisible(); !visible {
		return nil, &JobError{Stage: "open", Reason: "no apply affordance on listing"}
	}
	if err := applyButton.Click(); err != nil {
		return nil, &JobError{Stage: "open", Reason: "failed to open apply flow", Err: err}
	}

	if _, err := page.WaitForSelector("div.jobs-easy-apply-modal", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return nil, &JobError{Stage: "open", Reason: "apply modal did not appear", Err: err}
	}

	modal := page.Locator("div.jobs-easy-apply-modal").First()
	generated := false

	for step := 0; step < s.maxSteps; step++ {
		select {
		case <-ctx.Done():
			s.dismissModal(page, modal)
			return nil, ctx.Err()
		default:
		}

		heading := ""
		if text, err := modal.Locator("h3").First().InnerText(); err == nil {
			heading = strings.TrimSpace(text)
		}
		kind := s.classifier.ClassifyStep(heading)
		log.Printf("Apply step %d: %q", step+1, heading)

		stepGenerated, err := s.filler.FillStep(ctx, modal, kind, candidate)
		if err != nil {
			return nil, s.abort(page, modal, candidate, generated, err)
		}
		generated = generated || stepGenerated

		action := modal.Locator("footer button").Last()
		label, err := action.InnerText()
		if err != nil {
			return nil, s.abort(page, modal, candidate, generated,
				&JobError{Stage: "advance", Reason: "no primary action button", Err: err})
		}
		label = strings.TrimSpace(label)

		if s.classifier.IsSubmitLabel(label) {
			s.unfollowCompany(modal)
			if err := action.Click(); err != nil {
				return nil, s.abort(page, modal, candidate, generated,
					&JobError{Stage: "submit", Reason: "failed to click submit", Err: err})
			}
			HumanDelay(1500, 3000)
			// The submit click can bounce like any other: a validation
			// error leaves the modal open, and its own Dismiss button
			// would pass for a confirmation affordance. Check for the
			// error signature before declaring the application sent.
			if msg, bad := s.validationError(modal); bad {
				return nil, s.abort(page, modal, candidate, generated,
					&JobError{Stage: "submit", Reason: msg})
			}
			if err := s.dismissConfirmation(page); err != nil {
				// The flow cannot confirm clean closure; surface it rather
				// than silently continuing.
				return nil, err
			}
			rec := s.newRecord(candidate, generated)
			if err := s.recorder.CreateSubmitted(rec); err != nil {
				return nil, fmt.Errorf("submitted but failed to write record: %w", err)
			}
			return rec, nil
		}

		if err := action.Click(); err != nil {
			return nil, s.abort(page, modal, candidate, generated,
				&JobError{Stage: "advance", Reason: "failed to advance form", Err: err})
		}
		HumanDelay(1000, 2500)

		if msg, bad := s.validationError(modal); bad {
			return nil, s.abort(page, modal, candidate, generated,
				&JobError{Stage: "validate", Reason: msg})
		}
	}

	return nil, s.abort(page, modal, candidate, generated,
		&JobError{Stage: "advance", Reason: "form exceeded step limit"})
}

// validationError scans the rendered form for a recognized error signature.
func (s *ApplicationFlowService) validationError(modal playwright.Locator) (string, bool) {
	alerts, err := modal.Locator(".artdeco-inline-feedback--error, [role='alert']").All()
	if err != nil {
		return "", false
	}
	for _, alert := range alerts {
		if visible, _ := alert.IsVisible(); !visible {
			continue
		}
		text, err := alert.InnerText()
		if err != nil {
			continue
		}
		if s.classifier.IsValidationError(text) {
			return strings.TrimSpace(text), true
		}
	}
	return "", false
}

// abort records the failure, captures a screenshot, dismisses the modal
// and hands the (job-local) error back to the traversal.
func (s *ApplicationFlowService) abort(page playwright.Page, modal playwright.Locator, candidate JobCandidate, generated bool, cause error) error {
	log.Printf("Aborting application for %q at %q: %v", candidate.Title, candidate.Company, cause)

	s.captureFailure(page, candidate)
	s.dismissModal(page, modal)

	rec := s.newRecord(candidate, generated)
	if err := s.recorder.CreateFailed(rec); err != nil {
		log.Printf("Warning: failed to write failure record: %v", err)
	}
	return cause
}

// dismissModal closes the apply modal, confirming the discard dialog if
// the site asks.
func (s *ApplicationFlowService) dismissModal(page playwright.Page, modal playwright.Locator) {
	dismiss := modal.Locator("button[aria-label='Dismiss']").First()
	if visible, _ := dismiss.IsVisible(); visible {
		_ = dismiss.Click()
		HumanDelay(500, 1200)
	}
	confirm := page.Locator("button[data-control-name='discard_application_confirm_btn'], div[role='alertdialog'] button").First()
	if visible, _ := confirm.IsVisible(); visible {
		_ = confirm.Click()
	}
}

// dismissConfirmation closes the post-submit UI through one of the known
// affordances. Finding none is a hard error.
func (s *ApplicationFlowService) dismissConfirmation(page playwright.Page) error {
	affordances := []string{
		"div[role='dialog'] button[aria-label='Dismiss']",
		"button[aria-label='Dismiss']",
		"div.artdeco-toast-item button[aria-label*='Dismiss']",
		"button:has-text('Done')",
		"button:has-text('Save application')",
	}
	for _, selector := range affordances {
		el := page.Locator(selector).First()
		if visible, _ := el.IsVisible(); visible {
			if err := el.Click(); err == nil {
				return nil
			}
		}
	}
	return ErrNoCloseAffordance
}

// unfollowCompany unticks the follow-company checkbox shown on the final
// step. Best effort; failure never blocks the submit.
func (s *ApplicationFlowService) unfollowCompany(modal playwright.Locator) {
	follow := modal.Locator("label[for='follow-company-checkbox']").First()
	if visible, _ := follow.IsVisible(); visible {
		if err := follow.Click(); err != nil {
			log.Printf("Could not unfollow company: %v", err)
		}
	}
}

func (s *ApplicationFlowService) captureFailure(page playwright.Page, candidate JobCandidate) {
	if s.uploader == nil {
		return
	}
	shot, err := page.Screenshot(playwright.PageScreenshotOptions{})
	if err != nil {
		return
	}
	key := fmt.Sprintf("failures/%s/%s-%d.png", s.sessionID,
		strings.ReplaceAll(strings.ToLower(candidate.Company), " ", "-"), time.Now().UnixMilli())
	if err := s.uploader.UploadBytes(key, shot, "image/png"); err != nil {
		log.Printf("Warning: failed to upload failure screenshot: %v", err)
	}
}

func (s *ApplicationFlowService) newRecord(candidate JobCandidate, generated bool) *models.ApplicationRecord {
	return &models.ApplicationRecord{
		UserID:           s.userID,
		SessionID:        s.sessionID,
		JobTitle:         candidate.Title,
		Company:          candidate.Company,
		Location:         candidate.Location,
		JobURL:           candidate.URL,
		GeneratedContent: generated,
	}
}
