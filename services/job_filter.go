package services

import (
	"context"
	"log"
	"strings"

	"golang.org/x/text/cases"

	"applypilot/models"
)

// JobCandidate is one discovered listing under consideration. It lives only
// for the duration of the session that discovered it.
type JobCandidate struct {
	Title       string
	Company     string
	Poster      string
	Location    string
	URL         string
	ApplyMethod string
	Description string
}

type SkipReason string

const (
	SkipNone               SkipReason = ""
	SkipCompanyBlacklisted SkipReason = "company blacklisted"
	SkipPosterBlacklisted  SkipReason = "poster blacklisted"
	SkipTitleKeyword       SkipReason = "blacklisted keyword in title"
	SkipAlreadySeen        SkipReason = "already seen this session"
	SkipPoorFit            SkipReason = "ai evaluation: poor fit"
)

// JobFitChecker is the optional AI pre-screen applied after the
// deterministic filters.
type JobFitChecker interface {
	EvaluateJobFit(ctx context.Context, background, title, description string) (bool, error)
}

// JobFilter applies the exclusion rules in fixed order, first match wins.
// Matching is case-insensitive via Unicode case folding.
type JobFilter struct {
	companies  map[string]struct{}
	posters    map[string]struct{}
	titleWords map[string]struct{}
	seen       map[string]struct{}
	fitCheck   bool
	fit        JobFitChecker
	background string
	folder     cases.Caser
}

func NewJobFilter(cfg models.SearchConfig, background string, fit JobFitChecker) *JobFilter {
	f := &JobFilter{
		companies:  make(map[string]struct{}),
		posters:    make(map[string]struct{}),
		titleWords: make(map[string]struct{}),
		seen:       make(map[string]struct{}),
		fitCheck:   cfg.JobFitCheck,
		fit:        fit,
		background: background,
		folder:     cases.Fold(),
	}
	for _, c := range cfg.CompanyBlacklist {
		f.companies[f.fold(c)] = struct{}{}
	}
	for _, p := range cfg.PosterBlacklist {
		f.posters[f.fold(p)] = struct{}{}
	}
	for _, w := range cfg.TitleBlacklist {
		f.titleWords[f.fold(w)] = struct{}{}
	}
	return f
}

func (f *JobFilter) fold(s string) string {
	return f.folder.String(strings.TrimSpace(s))
}

// Evaluate runs the exclusion chain against one candidate. It does not
// mark the candidate seen; the traversal does that for every candidate
// regardless of the outcome.
func (f *JobFilter) Evaluate(ctx context.Context, c JobCandidate) SkipReason {
	if _, ok := f.companies[f.fold(c.Company)]; ok {
		return SkipCompanyBlacklisted
	}
	if c.Poster != "" {
		if _, ok := f.posters[f.fold(c.Poster)]; ok {
			return SkipPosterBlacklisted
		}
	}
	for _, token := range strings.Fields(c.Title) {
		if _, ok := f.titleWords[f.fold(token)]; ok {
			return SkipTitleKeyword
		}
	}
	if f.Seen(c.URL) {
		return SkipAlreadySeen
	}
	if f.fitCheck && f.fit != nil {
		apply, err := f.fit.EvaluateJobFit(ctx, f.background, c.Title, c.Description)
		if err != nil {
			// Fit check is advisory only; on error the candidate proceeds.
			log.Printf("job fit check failed for %q: %v", c.Title, err)
		} else if !apply {
			return SkipPoorFit
		}
	}
	return SkipNone
}

func (f *JobFilter) Seen(url string) bool {
	_, ok := f.seen[url]
	return ok
}

// MarkSeen records the URL in the session's seen-set. A URL is processed
// at most once per session.
func (f *JobFilter) MarkSeen(url string) {
	f.seen[url] = struct{}{}
}

func (f *JobFilter) SeenCount() int {
	return len(f.seen)
}
