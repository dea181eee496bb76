package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"

	"applypilot/models"
)

// fakeLocator implements the slice of playwright.Locator the flow and
// traversal touch. Selector lookups resolve against a map owned by the
// test; unmapped selectors resolve to an invisible empty node.
// locatorIface aliases playwright.Locator so it can be embedded in
// fakeLocator without the embedded field name colliding with the
// Locator method defined below.
type locatorIface = playwright.Locator

type fakeLocator struct {
	locatorIface
	sel     map[string]*fakeLocator
	text    string
	attrs   map[string]string
	visible bool
	items   []*fakeLocator
	onClick func() error
}

func (l *fakeLocator) Locator(selectorOrLocator interface{}, _ ...playwright.LocatorLocatorOptions) playwright.Locator {
	if selector, ok := selectorOrLocator.(string); ok {
		if child, ok := l.sel[selector]; ok {
			return child
		}
	}
	return &fakeLocator{}
}

func (l *fakeLocator) First() playwright.Locator { return l }
func (l *fakeLocator) Last() playwright.Locator  { return l }

func (l *fakeLocator) InnerText(_ ...playwright.LocatorInnerTextOptions) (string, error) {
	return l.text, nil
}

func (l *fakeLocator) GetAttribute(name string, _ ...playwright.LocatorGetAttributeOptions) (string, error) {
	return l.attrs[name], nil
}

func (l *fakeLocator) IsVisible(_ ...playwright.LocatorIsVisibleOptions) (bool, error) {
	return l.visible, nil
}

func (l *fakeLocator) Click(_ ...playwright.LocatorClickOptions) error {
	if l.onClick != nil {
		return l.onClick()
	}
	return nil
}

func (l *fakeLocator) All() ([]playwright.Locator, error) {
	out := make([]playwright.Locator, len(l.items))
	for i, item := range l.items {
		out[i] = item
	}
	return out, nil
}

func (l *fakeLocator) Count() (int, error) { return len(l.items), nil }

type fakePage struct {
	playwright.Page
	sel map[string]*fakeLocator
}

func (p *fakePage) Locator(selector string, _ ...playwright.PageLocatorOptions) playwright.Locator {
	if node, ok := p.sel[selector]; ok {
		return node
	}
	return &fakeLocator{}
}

func (p *fakePage) WaitForSelector(selector string, _ ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	if _, ok := p.sel[selector]; ok {
		return nil, nil
	}
	return nil, fmt.Errorf("selector %q never appeared", selector)
}

func (p *fakePage) Screenshot(_ ...playwright.PageScreenshotOptions) ([]byte, error) {
	return []byte("png"), nil
}

type captureRecorder struct {
	submitted []*models.ApplicationRecord
	failed    []*models.ApplicationRecord
}

func (r *captureRecorder) CreateSubmitted(rec *models.ApplicationRecord) error {
	r.submitted = append(r.submitted, rec)
	return nil
}

func (r *captureRecorder) CreateFailed(rec *models.ApplicationRecord) error {
	r.failed = append(r.failed, rec)
	return nil
}

type noopFiller struct{}

func (noopFiller) FillStep(_ context.Context, _ playwright.Locator, _ FormStepKind, _ JobCandidate) (bool, error) {
	return false, nil
}

type captureUploader struct {
	keys []string
}

func (u *captureUploader) UploadBytes(key string, _ []byte, _ string) error {
	u.keys = append(u.keys, key)
	return nil
}

// applyFixture is a one-step apply modal. The test scripts what the
// primary action click does to the page.
type applyFixture struct {
	page    *fakePage
	action  *fakeLocator
	alert   *fakeLocator
	confirm *fakeLocator
}

func newApplyFixture(actionLabel string) *applyFixture {
	alert := &fakeLocator{text: "Please enter a valid answer"}
	action := &fakeLocator{text: actionLabel}
	confirm := &fakeLocator{}
	modal := &fakeLocator{
		visible: true,
		sel: map[string]*fakeLocator{
			"h3":            {text: "Additional Questions"},
			"footer button": action,
			".artdeco-inline-feedback--error, [role='alert']": {items: []*fakeLocator{alert}},
			"button[aria-label='Dismiss']":                    {visible: true},
		},
	}
	page := &fakePage{sel: map[string]*fakeLocator{
		"button.jobs-apply-button, button[aria-label*='Easy Apply']": {visible: true},
		"div.jobs-easy-apply-modal":                                  modal,
		"div[role='dialog'] button[aria-label='Dismiss']":            confirm,
	}}
	return &applyFixture{page: page, action: action, alert: alert, confirm: confirm}
}

func testCandidate() JobCandidate {
	return JobCandidate{
		Title:   "Backend Engineer",
		Company: "Globex",
		URL:     "https://www.linkedin.com/jobs/view/100",
	}
}

func TestApplySubmitsCleanly(t *testing.T) {
	fx := newApplyFixture("Submit application")
	fx.action.onClick = func() error {
		fx.confirm.visible = true
		return nil
	}

	recorder := &captureRecorder{}
	flow := NewApplicationFlowService(NewEnglishClassifier(), noopFiller{}, recorder, nil, 7, "sess-1")

	rec, err := flow.Apply(context.Background(), fx.page, testCandidate())
	assert.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, "Globex", rec.Company)
	assert.Len(t, recorder.submitted, 1)
	assert.Empty(t, recorder.failed)
}

func TestApplySubmitBounceRecordsFailure(t *testing.T) {
	// The submit click is rejected: an inline error appears and the
	// modal stays open. No submitted record may be written.
	fx := newApplyFixture("Submit application")
	fx.action.onClick = func() error {
		fx.alert.visible = true
		return nil
	}

	recorder := &captureRecorder{}
	uploader := &captureUploader{}
	flow := NewApplicationFlowService(NewEnglishClassifier(), noopFiller{}, recorder, uploader, 7, "sess-1")

	rec, err := flow.Apply(context.Background(), fx.page, testCandidate())
	assert.Nil(t, rec)

	var jobErr *JobError
	assert.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "submit", jobErr.Stage)

	assert.Empty(t, recorder.submitted)
	assert.Len(t, recorder.failed, 1)
	assert.Len(t, uploader.keys, 1)
}

func TestApplyAdvanceBounceRecordsFailure(t *testing.T) {
	fx := newApplyFixture("Next")
	fx.action.onClick = func() error {
		fx.alert.visible = true
		return nil
	}

	recorder := &captureRecorder{}
	flow := NewApplicationFlowService(NewEnglishClassifier(), noopFiller{}, recorder, nil, 7, "sess-1")

	rec, err := flow.Apply(context.Background(), fx.page, testCandidate())
	assert.Nil(t, rec)

	var jobErr *JobError
	assert.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "validate", jobErr.Stage)

	assert.Empty(t, recorder.submitted)
	assert.Len(t, recorder.failed, 1)
}

func TestApplyWithoutApplyAffordance(t *testing.T) {
	page := &fakePage{sel: map[string]*fakeLocator{}}
	recorder := &captureRecorder{}
	flow := NewApplicationFlowService(NewEnglishClassifier(), noopFiller{}, recorder, nil, 7, "sess-1")

	rec, err := flow.Apply(context.Background(), page, testCandidate())
	assert.Nil(t, rec)

	var jobErr *JobError
	assert.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "open", jobErr.Stage)
	assert.Empty(t, recorder.submitted)
}
