package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"applypilot/models"
)

type fakeGenerator struct {
	reply  string
	err    error
	calls  int
	online bool
}

func (g *fakeGenerator) Available() bool { return g.online }

func (g *fakeGenerator) GenerateAnswer(ctx context.Context, background string, q Question) (string, error) {
	g.calls++
	return g.reply, g.err
}

type auditEntry struct {
	question  string
	fieldKind string
	answer    string
}

type fakeAudit struct {
	entries []auditEntry
}

func (a *fakeAudit) Append(userID int, question, fieldKind string, options []string, answerGiven string) error {
	a.entries = append(a.entries, auditEntry{question: question, fieldKind: fieldKind, answer: answerGiven})
	return nil
}

func newTestEngine(cfg models.AnswerConfig, gen TextGenerator, audit UnresolvedAuditor) *AnswerEngine {
	return NewAnswerEngine(1, cfg, "Software engineer, 6 years in backend services", gen, audit)
}

func TestResolveApplicationCritical(t *testing.T) {
	audit := &fakeAudit{}
	engine := newTestEngine(models.AnswerConfig{}, nil, audit)

	tests := []struct {
		name     string
		question Question
		want     string
		wantIdx  int
	}{
		{
			name: "relocation radio picks affirmative option",
			question: Question{
				Text:    "Are you willing to relocate to Austin, TX?",
				Kind:    FieldRadio,
				Options: []string{"Yes", "No"},
			},
			want:    "Yes",
			wantIdx: 0,
		},
		{
			name: "work authorization radio",
			question: Question{
				Text:    "Are you legally authorized to work in the United States?",
				Kind:    FieldRadio,
				Options: []string{"Yes", "No"},
			},
			want:    "Yes",
			wantIdx: 0,
		},
		{
			name: "free text commitment question",
			question: Question{
				Text: "Are you able to commit to a 6 month contract?",
				Kind: FieldText,
			},
			want:    "Yes",
			wantIdx: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := engine.Resolve(context.Background(), tt.question)
			assert.Equal(t, tt.want, ans.Value)
			assert.Equal(t, tt.wantIdx, ans.OptionIndex)
			assert.Equal(t, "application-critical", ans.Rule)
			assert.False(t, ans.Generated)
		})
	}

	// Rule hits never reach the audit trail.
	assert.Empty(t, audit.entries)
}

func TestResolveSponsorship(t *testing.T) {
	question := Question{
		Text:    "Will you now or in the future require sponsorship for employment visa status?",
		Kind:    FieldRadio,
		Options: []string{"Yes", "No"},
	}

	t.Run("no sponsorship needed answers no", func(t *testing.T) {
		engine := newTestEngine(models.AnswerConfig{RequiresSponsorship: false}, nil, nil)
		ans := engine.Resolve(context.Background(), question)
		assert.Equal(t, "No", ans.Value)
		assert.Equal(t, 1, ans.OptionIndex)
		assert.Equal(t, "sponsorship", ans.Rule)
	})

	t.Run("sponsorship needed answers yes", func(t *testing.T) {
		engine := newTestEngine(models.AnswerConfig{RequiresSponsorship: true}, nil, nil)
		ans := engine.Resolve(context.Background(), question)
		assert.Equal(t, "Yes", ans.Value)
		assert.Equal(t, 0, ans.OptionIndex)
	})
}

func TestResolveDemographic(t *testing.T) {
	t.Run("picks the decline option when present", func(t *testing.T) {
		audit := &fakeAudit{}
		engine := newTestEngine(models.AnswerConfig{}, nil, audit)
		ans := engine.Resolve(context.Background(), Question{
			Text:    "What is your gender?",
			Kind:    FieldDropdown,
			Options: []string{"Male", "Female", "Prefer not to say"},
		})
		assert.Equal(t, "Prefer not to say", ans.Value)
		assert.Equal(t, 2, ans.OptionIndex)
		assert.Equal(t, "demographic", ans.Rule)
		assert.Empty(t, audit.entries)
	})

	t.Run("falls through without a neutral option", func(t *testing.T) {
		audit := &fakeAudit{}
		engine := newTestEngine(models.AnswerConfig{}, nil, audit)
		ans := engine.Resolve(context.Background(), Question{
			Text:    "Are you a veteran?",
			Kind:    FieldRadio,
			Options: []string{"Protected veteran", "Not a protected veteran"},
		})
		// Last resort picks the first option; the fall-through is audited.
		assert.Equal(t, "last-resort", ans.Rule)
		assert.Len(t, audit.entries, 1)
	})
}

func TestResolveExperienceYears(t *testing.T) {
	cfg := models.AnswerConfig{
		DefaultYears: 3,
		SkillYears:   map[string]int{"Go": 6, "Kubernetes": 2},
	}
	engine := newTestEngine(cfg, nil, nil)

	tests := []struct {
		name     string
		question string
		want     string
	}{
		{"named skill uses its years", "How many years of work experience do you have with Go?", "6"},
		{"unknown skill uses default", "How many years of experience do you have with Erlang?", "3"},
		{"case folded skill match", "How many years of experience do you have with KUBERNETES?", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := engine.Resolve(context.Background(), Question{Text: tt.question, Kind: FieldNumeric})
			assert.Equal(t, tt.want, ans.Value)
			assert.Equal(t, "years-of-experience", ans.Rule)
		})
	}

	t.Run("longest skill match wins", func(t *testing.T) {
		// "JavaScript" contains "Java"; the more specific entry must
		// win no matter the map's iteration order.
		engine := newTestEngine(models.AnswerConfig{
			DefaultYears: 3,
			SkillYears:   map[string]int{"Java": 8, "JavaScript": 2},
		}, nil, nil)
		for i := 0; i < 20; i++ {
			ans := engine.Resolve(context.Background(), Question{
				Text: "How many years of experience do you have with JavaScript?",
				Kind: FieldNumeric,
			})
			assert.Equal(t, "2", ans.Value)
		}
	})

	t.Run("never answers zero years", func(t *testing.T) {
		engine := newTestEngine(models.AnswerConfig{DefaultYears: 0}, nil, nil)
		ans := engine.Resolve(context.Background(), Question{
			Text: "How many years of experience do you have with COBOL?",
			Kind: FieldNumeric,
		})
		assert.Equal(t, "1", ans.Value)
	})
}

func TestResolveNoticeAndSalary(t *testing.T) {
	engine := newTestEngine(models.AnswerConfig{NoticePeriodDays: 14, MinSalary: 120000}, nil, nil)

	ans := engine.Resolve(context.Background(), Question{
		Text: "What is your notice period in days?",
		Kind: FieldNumeric,
	})
	assert.Equal(t, "14", ans.Value)
	assert.Equal(t, "notice-period", ans.Rule)

	ans = engine.Resolve(context.Background(), Question{
		Text: "What is your expected salary?",
		Kind: FieldNumeric,
	})
	assert.Equal(t, "120000", ans.Value)
	assert.Equal(t, "salary", ans.Rule)
}

func TestResolveGenerative(t *testing.T) {
	question := Question{
		Text: "Describe your approach to mentoring junior engineers.",
		Kind: FieldText,
	}

	t.Run("text answer comes back verbatim and is audited", func(t *testing.T) {
		gen := &fakeGenerator{reply: "I pair weekly and review design docs together.", online: true}
		audit := &fakeAudit{}
		engine := newTestEngine(models.AnswerConfig{}, gen, audit)

		ans := engine.Resolve(context.Background(), question)
		assert.Equal(t, gen.reply, ans.Value)
		assert.True(t, ans.Generated)
		assert.Equal(t, "generative", ans.Rule)
		assert.Len(t, audit.entries, 1)
		assert.Equal(t, ans.Value, audit.entries[0].answer)
	})

	t.Run("choice reply by option number", func(t *testing.T) {
		gen := &fakeGenerator{reply: "2", online: true}
		engine := newTestEngine(models.AnswerConfig{}, gen, nil)

		ans := engine.Resolve(context.Background(), Question{
			Text:    "Which shift can you work?",
			Kind:    FieldDropdown,
			Options: []string{"Day", "Night", "Either"},
		})
		assert.Equal(t, "Night", ans.Value)
		assert.Equal(t, 1, ans.OptionIndex)
	})

	t.Run("out of range choice falls to last resort", func(t *testing.T) {
		gen := &fakeGenerator{reply: "7", online: true}
		engine := newTestEngine(models.AnswerConfig{}, gen, nil)

		ans := engine.Resolve(context.Background(), Question{
			Text:    "Which shift can you work?",
			Kind:    FieldDropdown,
			Options: []string{"Day", "Night"},
		})
		assert.Equal(t, "last-resort", ans.Rule)
		assert.Equal(t, "Day", ans.Value)
		assert.Equal(t, 0, ans.OptionIndex)
	})

	t.Run("generator error falls to last resort", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("timeout"), online: true}
		audit := &fakeAudit{}
		engine := newTestEngine(models.AnswerConfig{DefaultYears: 4}, gen, audit)

		ans := engine.Resolve(context.Background(), Question{
			Text: "How many direct reports have you managed?",
			Kind: FieldNumeric,
		})
		assert.Equal(t, "4", ans.Value)
		assert.Equal(t, "last-resort", ans.Rule)
		assert.Len(t, audit.entries, 1)
	})

	t.Run("offline generator is skipped", func(t *testing.T) {
		gen := &fakeGenerator{reply: "ignored", online: false}
		engine := newTestEngine(models.AnswerConfig{}, gen, nil)

		ans := engine.Resolve(context.Background(), question)
		assert.Equal(t, "last-resort", ans.Rule)
		assert.Zero(t, gen.calls)
	})
}

func TestLeadingNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOk bool
	}{
		{"3", 3, true},
		{"2. Yes", 2, true},
		{" 14 days", 14, true},
		{"about five", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := leadingNumber(tt.in)
		assert.Equal(t, tt.wantOk, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
