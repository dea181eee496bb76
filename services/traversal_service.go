package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"

	"github.com/playwright-community/playwright-go"

	"applypilot/models"
)

// DiscoveredJobSink caches listings for manual browsing. Writes are best
// effort and idempotent.
type DiscoveredJobSink interface {
	Upsert(job *models.DiscoveredJob) error
}

// EventSink receives traversal progress for the supervisor and the live
// activity feed.
type EventSink interface {
	Activity(action, detail, severity string)
	Submitted(rec *models.ApplicationRecord)
	Failed(rec JobCandidate, reason string)
}

// JobApplier runs the apply flow for one candidate whose detail pane is
// open. A *JobError means the candidate was aborted and recorded as
// failed; any other error is fatal to the traversal.
type JobApplier interface {
	Apply(ctx context.Context, page playwright.Page, candidate JobCandidate) (*models.ApplicationRecord, error)
}

const (
	resultsPerPage    = 25
	staleReadRetries  = 3
	defaultMaxPages   = 10
	searchResultsList = "li.scaffold-layout__list-item, div.job-card-container"
)

// TraversalService walks paginated search results for every configured
// (position, location) pair, filters candidates, and hands survivors to
// the application flow. Candidates are processed strictly in page order.
type TraversalService struct {
	cfg        models.SearchConfig
	filter     *JobFilter
	flow       JobApplier
	classifier PageClassifier
	discovered DiscoveredJobSink
	events     EventSink
	userID     int
	maxApps    int
	submitted  int
	stopped    func() bool
}

func NewTraversalService(cfg models.SearchConfig, filter *JobFilter, flow JobApplier, classifier PageClassifier, discovered DiscoveredJobSink, events EventSink, userID, maxApplications int, stopped func() bool) *TraversalService {
	if stopped == nil {
		stopped = func() bool { return false }
	}
	return &TraversalService{
		cfg:        cfg,
		filter:     filter,
		flow:       flow,
		classifier: classifier,
		discovered: discovered,
		events:     events,
		userID:     userID,
		maxApps:    maxApplications,
		stopped:    stopped,
	}
}

// Run processes every search pair until they are exhausted, the maximum
// application count is reached, or a stop is requested. The pair order is
// randomized per run so the crawl signature differs between sessions.
func (t *TraversalService) Run(ctx context.Context, page playwright.Page) (int, error) {
	pairs := t.searchPairs()
	rand.Shuffle(len(pairs), func(i, j int) {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	})

	for _, pair := range pairs {
		if t.done(ctx) {
			break
		}
		t.events.Activity("search", fmt.Sprintf("searching %q in %q", pair[0], pair[1]), "info")
		if err := t.runSearchPair(ctx, page, pair[0], pair[1]); err != nil {
			return t.submitted, err
		}
	}
	return t.submitted, nil
}

func (t *TraversalService) searchPairs() [][2]string {
	var pairs [][2]string
	for _, position := range t.cfg.Positions {
		for _, location := range t.cfg.Locations {
			pairs = append(pairs, [2]string{position, location})
		}
	}
	return pairs
}

func (t *TraversalService) done(ctx context.Context) bool {
	return ctx.Err() != nil || t.stopped() || (t.maxApps > 0 && t.submitted >= t.maxApps)
}

func (t *TraversalService) runSearchPair(ctx context.Context, page playwright.Page, position, location string) error {
	maxPages := t.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	for pageNum := 0; pageNum < maxPages; pageNum++ {
		if t.done(ctx) {
			return nil
		}

		searchURL := fmt.Sprintf(
			"https://www.linkedin.com/jobs/search/?keywords=%s&location=%s&f_AL=true&start=%d",
			url.QueryEscape(position), url.QueryEscape(location), pageNum*resultsPerPage,
		)
		if _, err := page.Goto(searchURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(30000),
		}); err != nil {
			log.Printf("Failed to load search page %d for %q: %v", pageNum, position, err)
			return nil
		}
		HumanDelay(2000, 4000)
		HumanScroll(page)

		if t.endOfResults(page) {
			log.Printf("No more results for %q in %q (page %d)", position, location, pageNum)
			return nil
		}

		tiles, err := page.Locator(searchResultsList).All()
		if err != nil || len(tiles) == 0 {
			return nil
		}
		log.Printf("Found %d listings on page %d", len(tiles), pageNum)

		if err := t.processTiles(ctx, page, tiles); err != nil {
			return err
		}
	}
	return nil
}

// endOfResults reports whether the page shows no job list or an explicit
// no-matching-jobs banner.
func (t *TraversalService) endOfResults(page playwright.Page) bool {
	if count, err := page.Locator(searchResultsList).Count(); err == nil && count == 0 {
		return true
	}
	banner := page.Locator("div.jobs-search-no-results-banner, .jobs-search-results-list__banner").First()
	if visible, _ := banner.IsVisible(); visible {
		if text, err := banner.InnerText(); err == nil && t.classifier.IsNoResultsBanner(text) {
			return true
		}
	}
	return false
}

func (t *TraversalService) processTiles(ctx context.Context, page playwright.Page, tiles []playwright.Locator) error {
	for _, tile := range tiles {
		if t.done(ctx) {
			return nil
		}

		candidate, err := t.readCandidate(tile)
		if err != nil {
			log.Printf("Skipping unreadable tile: %v", err)
			continue
		}

		reason := t.filter.Evaluate(ctx, candidate)

		// Every candidate is marked seen and cached, whatever the outcome.
		t.filter.MarkSeen(candidate.URL)
		t.cacheDiscovered(candidate)

		if reason != SkipNone {
			t.events.Activity("filter", fmt.Sprintf("%s: %s", candidate.Title, reason), "info")
			continue
		}

		if err := t.applyTo(ctx, page, tile, candidate); err != nil {
			return err
		}
	}
	return nil
}

// readCandidate extracts the listing fields from a result tile, retrying
// a bounded number of times on stale reads.
func (t *TraversalService) readCandidate(tile playwright.Locator) (JobCandidate, error) {
	var lastErr error
	for attempt := 0; attempt < staleReadRetries; attempt++ {
		candidate, err := t.readCandidateOnce(tile)
		if err == nil {
			return candidate, nil
		}
		lastErr = err
		HumanDelay(500, 1000)
	}
	return JobCandidate{}, fmt.Errorf("tile read failed after %d attempts: %w", staleReadRetries, lastErr)
}

func (t *TraversalService) readCandidateOnce(tile playwright.Locator) (JobCandidate, error) {
	link := tile.Locator("a.job-card-container__link, a.job-card-list__title").First()
	href, err := link.GetAttribute("href")
	if err != nil || href == "" {
		return JobCandidate{}, fmt.Errorf("listing link missing: %v", err)
	}
	if strings.HasPrefix(href, "/") {
		href = "https://www.linkedin.com" + href
	}
	if i := strings.Index(href, "?"); i > 0 {
		href = href[:i]
	}

	title, err := link.InnerText()
	if err != nil {
		return JobCandidate{}, fmt.Errorf("listing title unreadable: %v", err)
	}

	candidate := JobCandidate{
		Title: strings.TrimSpace(title),
		URL:   href,
	}
	if company, err := tile.Locator(".artdeco-entity-lockup__subtitle, .job-card-container__primary-description").First().InnerText(); err == nil {
		candidate.Company = strings.TrimSpace(company)
	}
	if loc, err := tile.Locator(".job-card-container__metadata-item").First().InnerText(); err == nil {
		candidate.Location = strings.TrimSpace(loc)
	}
	if poster, err := tile.Locator(".job-card-container__posted-by").First().InnerText(); err == nil {
		candidate.Poster = strings.TrimSpace(poster)
	}
	if text, err := tile.InnerText(); err == nil && strings.Contains(text, "Easy Apply") {
		candidate.ApplyMethod = "easy_apply"
	}
	return candidate, nil
}

func (t *TraversalService) cacheDiscovered(candidate JobCandidate) {
	if t.discovered == nil {
		return
	}
	err := t.discovered.Upsert(&models.DiscoveredJob{
		UserID:      t.userID,
		JobTitle:    candidate.Title,
		Company:     candidate.Company,
		Location:    candidate.Location,
		JobURL:      candidate.URL,
		ApplyMethod: candidate.ApplyMethod,
	})
	if err != nil {
		log.Printf("Warning: failed to cache discovered job: %v", err)
	}
}

func (t *TraversalService) applyTo(ctx context.Context, page playwright.Page, tile playwright.Locator, candidate JobCandidate) error {
	// Open the detail pane; the apply button lives there.
	if err := tile.Click(); err != nil {
		log.Printf("Could not open listing %q: %v", candidate.Title, err)
		return nil
	}
	HumanDelay(1500, 3000)

	rec, err := t.flow.Apply(ctx, page, candidate)
	if err != nil {
		var jobErr *JobError
		if errors.As(err, &jobErr) {
			// Local to this candidate: record it and keep traversing.
			t.events.Failed(candidate, jobErr.Reason)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}

	t.submitted++
	t.events.Submitted(rec)
	t.events.Activity("applied", fmt.Sprintf("%s at %s", candidate.Title, candidate.Company), "info")
	return nil
}
