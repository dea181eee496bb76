package services

import (
	"context"
	"errors"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"

	"applypilot/models"
)

type fakeApplier struct {
	errs  []error
	calls []JobCandidate
}

func (a *fakeApplier) Apply(_ context.Context, _ playwright.Page, candidate JobCandidate) (*models.ApplicationRecord, error) {
	i := len(a.calls)
	a.calls = append(a.calls, candidate)
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	return &models.ApplicationRecord{JobTitle: candidate.Title, Company: candidate.Company, JobURL: candidate.URL}, nil
}

type recordingSink struct {
	activities []string
	submitted  []*models.ApplicationRecord
	failures   []string
}

func (s *recordingSink) Activity(action, detail, _ string) {
	s.activities = append(s.activities, action+": "+detail)
}

func (s *recordingSink) Submitted(rec *models.ApplicationRecord) {
	s.submitted = append(s.submitted, rec)
}

func (s *recordingSink) Failed(c JobCandidate, reason string) {
	s.failures = append(s.failures, c.Title+": "+reason)
}

type discoveredStore struct {
	jobs []*models.DiscoveredJob
}

func (d *discoveredStore) Upsert(j *models.DiscoveredJob) error {
	d.jobs = append(d.jobs, j)
	return nil
}

func jobTile(title, company, url string) playwright.Locator {
	link := &fakeLocator{text: title, attrs: map[string]string{"href": url}}
	return &fakeLocator{
		text: title + "\n" + company + "\nEasy Apply",
		sel: map[string]*fakeLocator{
			"a.job-card-container__link, a.job-card-list__title":                         link,
			".artdeco-entity-lockup__subtitle, .job-card-container__primary-description": {text: company},
			".job-card-container__metadata-item":                                         {text: "Remote"},
			".job-card-container__posted-by":                                             {},
		},
	}
}

func newTestTraversal(cfg models.SearchConfig, applier JobApplier, sink *recordingSink, store *discoveredStore, maxApps int) (*TraversalService, *JobFilter) {
	filter := NewJobFilter(cfg, "", nil)
	tr := NewTraversalService(cfg, filter, applier, NewEnglishClassifier(), store, sink, 7, maxApps, nil)
	return tr, filter
}

func searchCfg() models.SearchConfig {
	return models.SearchConfig{Positions: []string{"engineer"}, Locations: []string{"remote"}}
}

func TestTraversalContinuesAfterAbortedApplication(t *testing.T) {
	// First candidate aborts with a job-local error (a rejected form),
	// the second one submits. The failure is reported and the walk
	// keeps going.
	applier := &fakeApplier{errs: []error{
		&JobError{Stage: "validate", Reason: "please enter a valid answer"},
		nil,
	}}
	sink := &recordingSink{}
	store := &discoveredStore{}
	tr, filter := newTestTraversal(searchCfg(), applier, sink, store, 10)

	tiles := []playwright.Locator{
		jobTile("Backend Engineer", "Globex", "https://www.linkedin.com/jobs/view/1"),
		jobTile("Platform Engineer", "Initech", "https://www.linkedin.com/jobs/view/2"),
	}
	err := tr.processTiles(context.Background(), &fakePage{}, tiles)
	assert.NoError(t, err)

	assert.Len(t, applier.calls, 2)
	assert.Len(t, sink.failures, 1)
	assert.Contains(t, sink.failures[0], "please enter a valid answer")
	assert.Len(t, sink.submitted, 1)
	assert.Equal(t, "Platform Engineer", sink.submitted[0].JobTitle)
	assert.Equal(t, 1, tr.submitted)

	// Both candidates were seen and cached, whatever the outcome.
	assert.True(t, filter.Seen("https://www.linkedin.com/jobs/view/1"))
	assert.True(t, filter.Seen("https://www.linkedin.com/jobs/view/2"))
	assert.Len(t, store.jobs, 2)
}

func TestTraversalHaltsOnFatalError(t *testing.T) {
	applier := &fakeApplier{errs: []error{errors.New("browser connection lost")}}
	sink := &recordingSink{}
	tr, _ := newTestTraversal(searchCfg(), applier, sink, &discoveredStore{}, 10)

	tiles := []playwright.Locator{
		jobTile("Backend Engineer", "Globex", "https://www.linkedin.com/jobs/view/1"),
		jobTile("Platform Engineer", "Initech", "https://www.linkedin.com/jobs/view/2"),
	}
	err := tr.processTiles(context.Background(), &fakePage{}, tiles)
	assert.Error(t, err)
	assert.Len(t, applier.calls, 1)
	assert.Empty(t, sink.submitted)
}

func TestTraversalStopsAtMaxApplications(t *testing.T) {
	applier := &fakeApplier{}
	sink := &recordingSink{}
	tr, _ := newTestTraversal(searchCfg(), applier, sink, &discoveredStore{}, 1)

	tiles := []playwright.Locator{
		jobTile("Backend Engineer", "Globex", "https://www.linkedin.com/jobs/view/1"),
		jobTile("Platform Engineer", "Initech", "https://www.linkedin.com/jobs/view/2"),
	}
	err := tr.processTiles(context.Background(), &fakePage{}, tiles)
	assert.NoError(t, err)
	assert.Len(t, applier.calls, 1)
	assert.Equal(t, 1, tr.submitted)
}

func TestTraversalSkipsBlacklistedWithoutApplying(t *testing.T) {
	cfg := searchCfg()
	cfg.CompanyBlacklist = []string{"Initech"}

	applier := &fakeApplier{}
	sink := &recordingSink{}
	store := &discoveredStore{}
	tr, filter := newTestTraversal(cfg, applier, sink, store, 10)

	tiles := []playwright.Locator{
		jobTile("Platform Engineer", "Initech", "https://www.linkedin.com/jobs/view/2"),
		jobTile("Backend Engineer", "Globex", "https://www.linkedin.com/jobs/view/1"),
	}
	err := tr.processTiles(context.Background(), &fakePage{}, tiles)
	assert.NoError(t, err)

	assert.Len(t, applier.calls, 1)
	assert.Equal(t, "Backend Engineer", applier.calls[0].Title)
	// Skipped candidates still land in the seen set and the cache.
	assert.True(t, filter.Seen("https://www.linkedin.com/jobs/view/2"))
	assert.Len(t, store.jobs, 2)
	assert.Empty(t, sink.failures)
}
