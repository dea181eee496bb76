package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"applypilot/models"
)

type fakeFitChecker struct {
	apply bool
	err   error
	calls int
}

func (f *fakeFitChecker) EvaluateJobFit(ctx context.Context, background, title, description string) (bool, error) {
	f.calls++
	return f.apply, f.err
}

func TestJobFilterEvaluate(t *testing.T) {
	cfg := models.SearchConfig{
		CompanyBlacklist: []string{"Acme Corp", "Initech"},
		PosterBlacklist:  []string{"Jordan Recruiter"},
		TitleBlacklist:   []string{"senior", "clearance"},
	}
	filter := NewJobFilter(cfg, "", nil)

	tests := []struct {
		name      string
		candidate JobCandidate
		want      SkipReason
	}{
		{
			name:      "clean candidate passes",
			candidate: JobCandidate{Title: "Backend Engineer", Company: "Globex", URL: "https://jobs.example/1"},
			want:      SkipNone,
		},
		{
			name:      "blacklisted company case insensitive",
			candidate: JobCandidate{Title: "Backend Engineer", Company: "ACME CORP", URL: "https://jobs.example/2"},
			want:      SkipCompanyBlacklisted,
		},
		{
			name:      "blacklisted poster",
			candidate: JobCandidate{Title: "Backend Engineer", Company: "Globex", Poster: "jordan recruiter", URL: "https://jobs.example/3"},
			want:      SkipPosterBlacklisted,
		},
		{
			name:      "title keyword matches whole tokens",
			candidate: JobCandidate{Title: "Senior Backend Engineer", Company: "Globex", URL: "https://jobs.example/4"},
			want:      SkipTitleKeyword,
		},
		{
			name:      "keyword inside a longer word does not match",
			candidate: JobCandidate{Title: "Clearances-Adjacent Engineer", Company: "Globex", URL: "https://jobs.example/5"},
			want:      SkipNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.Evaluate(context.Background(), tt.candidate))
		})
	}
}

func TestJobFilterOrderCompanyBeforeTitle(t *testing.T) {
	filter := NewJobFilter(models.SearchConfig{
		CompanyBlacklist: []string{"Acme"},
		TitleBlacklist:   []string{"senior"},
	}, "", nil)

	// Both rules match; the company rule comes first.
	reason := filter.Evaluate(context.Background(), JobCandidate{
		Title: "Senior Engineer", Company: "Acme", URL: "https://jobs.example/9",
	})
	assert.Equal(t, SkipCompanyBlacklisted, reason)
}

func TestJobFilterSeen(t *testing.T) {
	filter := NewJobFilter(models.SearchConfig{}, "", nil)
	candidate := JobCandidate{Title: "Engineer", Company: "Globex", URL: "https://jobs.example/7"}

	assert.Equal(t, SkipNone, filter.Evaluate(context.Background(), candidate))
	filter.MarkSeen(candidate.URL)
	assert.Equal(t, SkipAlreadySeen, filter.Evaluate(context.Background(), candidate))
	assert.Equal(t, 1, filter.SeenCount())
}

func TestJobFilterFitCheck(t *testing.T) {
	candidate := JobCandidate{Title: "Engineer", Company: "Globex", URL: "https://jobs.example/8"}

	t.Run("poor fit skips", func(t *testing.T) {
		fit := &fakeFitChecker{apply: false}
		filter := NewJobFilter(models.SearchConfig{JobFitCheck: true}, "background", fit)
		assert.Equal(t, SkipPoorFit, filter.Evaluate(context.Background(), candidate))
	})

	t.Run("fit errors are advisory", func(t *testing.T) {
		fit := &fakeFitChecker{apply: false, err: errors.New("model unavailable")}
		filter := NewJobFilter(models.SearchConfig{JobFitCheck: true}, "background", fit)
		assert.Equal(t, SkipNone, filter.Evaluate(context.Background(), candidate))
	})

	t.Run("disabled fit check never calls the model", func(t *testing.T) {
		fit := &fakeFitChecker{apply: false}
		filter := NewJobFilter(models.SearchConfig{JobFitCheck: false}, "background", fit)
		assert.Equal(t, SkipNone, filter.Evaluate(context.Background(), candidate))
		assert.Zero(t, fit.calls)
	})

	t.Run("deterministic rules run before the model", func(t *testing.T) {
		fit := &fakeFitChecker{apply: false}
		filter := NewJobFilter(models.SearchConfig{
			JobFitCheck:      true,
			CompanyBlacklist: []string{"Globex"},
		}, "background", fit)
		assert.Equal(t, SkipCompanyBlacklisted, filter.Evaluate(context.Background(), candidate))
		assert.Zero(t, fit.calls)
	})
}
