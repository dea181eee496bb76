package services

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"applypilot/models"
)

type FieldKind string

const (
	FieldRadio    FieldKind = "radio"
	FieldNumeric  FieldKind = "numeric"
	FieldText     FieldKind = "text"
	FieldDropdown FieldKind = "dropdown"
)

// Question is one form field handed to the answer engine.
type Question struct {
	Text    string
	Kind    FieldKind
	Options []string
}

// Answer is the resolved value for a question. OptionIndex is -1 unless the
// answer selects one of the question's options. Generated marks values that
// came from the generative fallback rather than a deterministic rule.
type Answer struct {
	Value       string
	OptionIndex int
	Generated   bool
	Rule        string
}

// TextGenerator is the generative fallback capability.
type TextGenerator interface {
	Available() bool
	GenerateAnswer(ctx context.Context, background string, q Question) (string, error)
}

// UnresolvedAuditor records questions no deterministic rule could answer.
type UnresolvedAuditor interface {
	Append(userID int, question, fieldKind string, options []string, answerGiven string) error
}

// Questions containing any of these are application-critical: a negative
// answer silently disqualifies the application with no visible error, so
// they always resolve to the affirmative option.
var criticalKeywords = []string{
	"willing", "able", "authorized", "authorised", "eligible", "available",
	"interested", "commit", "relocate", "travel", "experience", "qualified",
	"meet the requirement", "meet this requirement",
}

var affirmativeKeywords = []string{
	"yes", "willing", "able", "qualified", "interested", "available", "authorized",
}

var neutralKeywords = []string{
	"prefer not", "decline", "do not wish", "don't wish", "rather not",
}

var demographicKeywords = []string{
	"race", "ethnic", "gender", "veteran", "disability", "disabilities",
	"indigenous", "aboriginal", "torres strait", "orientation", "transgender",
}

type answerRule struct {
	name    string
	matches func(q Question) bool
	resolve func(q Question) (Answer, bool)
}

// AnswerEngine resolves arbitrary form questions through an ordered rule
// list, a generative fallback, and a deterministic last resort. Anything
// that gets past the rules is appended to the unresolved-question audit.
type AnswerEngine struct {
	userID     int
	cfg        models.AnswerConfig
	background string
	rules      []answerRule
	generator  TextGenerator
	audit      UnresolvedAuditor
	genTimeout time.Duration
	folder     cases.Caser
}

func NewAnswerEngine(userID int, cfg models.AnswerConfig, background string, generator TextGenerator, audit UnresolvedAuditor) *AnswerEngine {
	e := &AnswerEngine{
		userID:     userID,
		cfg:        cfg,
		background: background,
		generator:  generator,
		audit:      audit,
		genTimeout: 25 * time.Second,
		folder:     cases.Fold(),
	}
	e.rules = []answerRule{
		{name: "application-critical", matches: e.matchesCritical, resolve: e.resolveAffirmative},
		{name: "sponsorship", matches: e.matchesSponsorship, resolve: e.resolveSponsorship},
		{name: "demographic", matches: e.matchesDemographic, resolve: e.resolveNeutral},
		{name: "notice-period", matches: e.matchesNotice, resolve: e.resolveNotice},
		{name: "salary", matches: e.matchesSalary, resolve: e.resolveSalary},
		{name: "years-of-experience", matches: e.matchesExperienceYears, resolve: e.resolveExperienceYears},
	}
	return e
}

// Resolve runs the resolution order from §rules down to the deterministic
// last resort. It always produces an answer.
func (e *AnswerEngine) Resolve(ctx context.Context, q Question) Answer {
	for _, rule := range e.rules {
		if !rule.matches(q) {
			continue
		}
		if ans, ok := rule.resolve(q); ok {
			ans.Rule = rule.name
			return ans
		}
	}

	// No rule produced an answer; from here on the question is audited so
	// a rule can be added later, whichever path answers it.
	ans, ok := e.resolveGenerative(ctx, q)
	if !ok {
		ans = e.resolveLastResort(q)
	}
	if e.audit != nil {
		if err := e.audit.Append(e.userID, q.Text, string(q.Kind), q.Options, ans.Value); err != nil {
			log.Printf("failed to record unresolved question: %v", err)
		}
	}
	return ans
}

func (e *AnswerEngine) fold(s string) string {
	return e.folder.String(s)
}

func (e *AnswerEngine) questionContains(q Question, keywords []string) bool {
	text := e.fold(q.Text)
	for _, kw := range keywords {
		if strings.Contains(text, e.fold(kw)) {
			return true
		}
	}
	return false
}

func (e *AnswerEngine) optionMatching(options, keywords []string) int {
	for i, opt := range options {
		folded := e.fold(opt)
		for _, kw := range keywords {
			if strings.Contains(folded, e.fold(kw)) {
				return i
			}
		}
	}
	return -1
}

func (e *AnswerEngine) matchesCritical(q Question) bool {
	// Numeric questions mentioning experience belong to the years rule.
	if q.Kind == FieldNumeric {
		return false
	}
	return e.questionContains(q, criticalKeywords)
}

func (e *AnswerEngine) resolveAffirmative(q Question) (Answer, bool) {
	if len(q.Options) > 0 {
		if idx := e.optionMatching(q.Options, affirmativeKeywords); idx >= 0 {
			return Answer{Value: q.Options[idx], OptionIndex: idx}, true
		}
		return Answer{}, false
	}
	return Answer{Value: "Yes", OptionIndex: -1}, true
}

func (e *AnswerEngine) matchesSponsorship(q Question) bool {
	return e.questionContains(q, []string{"sponsor", "visa", "work permit"})
}

func (e *AnswerEngine) resolveSponsorship(q Question) (Answer, bool) {
	// "Do you require sponsorship?" must be answered "no" for candidates
	// who do not need a visa, and "yes" otherwise.
	want := "no"
	if e.cfg.RequiresSponsorship {
		want = "yes"
	}
	if len(q.Options) > 0 {
		for i, opt := range q.Options {
			if strings.HasPrefix(e.fold(strings.TrimSpace(opt)), want) {
				return Answer{Value: q.Options[i], OptionIndex: i}, true
			}
		}
		return Answer{}, false
	}
	return Answer{Value: strings.ToUpper(want[:1]) + want[1:], OptionIndex: -1}, true
}

func (e *AnswerEngine) matchesDemographic(q Question) bool {
	return e.questionContains(q, demographicKeywords)
}

func (e *AnswerEngine) resolveNeutral(q Question) (Answer, bool) {
	if idx := e.optionMatching(q.Options, neutralKeywords); idx >= 0 {
		return Answer{Value: q.Options[idx], OptionIndex: idx}, true
	}
	return Answer{}, false
}

func (e *AnswerEngine) matchesNotice(q Question) bool {
	return e.cfg.NoticePeriodDays > 0 && e.questionContains(q, []string{"notice period", "notice do you"})
}

func (e *AnswerEngine) resolveNotice(q Question) (Answer, bool) {
	return e.pickNumeric(q, e.cfg.NoticePeriodDays)
}

func (e *AnswerEngine) matchesSalary(q Question) bool {
	return e.cfg.MinSalary > 0 && e.questionContains(q, []string{"salary", "compensation", "pay expectation"})
}

func (e *AnswerEngine) resolveSalary(q Question) (Answer, bool) {
	return e.pickNumeric(q, e.cfg.MinSalary)
}

func (e *AnswerEngine) matchesExperienceYears(q Question) bool {
	if q.Kind != FieldNumeric {
		return false
	}
	return e.questionContains(q, []string{"experience", "years"})
}

func (e *AnswerEngine) resolveExperienceYears(q Question) (Answer, bool) {
	years := e.cfg.DefaultYears
	text := e.fold(q.Text)
	// Prefer the longest matching skill so "javascript" never resolves
	// through a configured "java" entry. Ties break lexically to keep
	// the answer stable across runs.
	matched := ""
	for skill, y := range e.cfg.SkillYears {
		if !strings.Contains(text, e.fold(skill)) {
			continue
		}
		if len(skill) > len(matched) || (len(skill) == len(matched) && skill < matched) {
			matched = skill
			years = y
		}
	}
	// Never answer zero years for a skill the form asks about by name.
	if years < 1 {
		years = 1
	}
	return Answer{Value: strconv.Itoa(years), OptionIndex: -1}, true
}

func (e *AnswerEngine) pickNumeric(q Question, value int) (Answer, bool) {
	if len(q.Options) > 0 {
		// Choice question over ranges; defer to the generative fallback.
		return Answer{}, false
	}
	return Answer{Value: strconv.Itoa(value), OptionIndex: -1}, true
}

func (e *AnswerEngine) resolveGenerative(ctx context.Context, q Question) (Answer, bool) {
	if e.generator == nil || !e.generator.Available() {
		return Answer{}, false
	}

	genCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	reply, err := e.generator.GenerateAnswer(genCtx, e.background, q)
	if err != nil {
		log.Printf("generative fallback failed: %v", err)
		return Answer{}, false
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Answer{}, false
	}

	switch q.Kind {
	case FieldNumeric:
		n, ok := leadingNumber(reply)
		if !ok {
			return Answer{}, false
		}
		return Answer{Value: strconv.Itoa(n), OptionIndex: -1, Generated: true, Rule: "generative"}, true
	case FieldRadio, FieldDropdown:
		if n, ok := leadingNumber(reply); ok && n >= 1 && n <= len(q.Options) {
			return Answer{Value: q.Options[n-1], OptionIndex: n - 1, Generated: true, Rule: "generative"}, true
		}
		folded := e.fold(reply)
		for i, opt := range q.Options {
			if strings.Contains(folded, e.fold(opt)) || strings.Contains(e.fold(opt), folded) {
				return Answer{Value: q.Options[i], OptionIndex: i, Generated: true, Rule: "generative"}, true
			}
		}
		return Answer{}, false
	default:
		return Answer{Value: reply, OptionIndex: -1, Generated: true, Rule: "generative"}, true
	}
}

func (e *AnswerEngine) resolveLastResort(q Question) Answer {
	if len(q.Options) > 0 {
		if idx := e.optionMatching(q.Options, affirmativeKeywords); idx >= 0 {
			return Answer{Value: q.Options[idx], OptionIndex: idx, Rule: "last-resort"}
		}
		return Answer{Value: q.Options[0], OptionIndex: 0, Rule: "last-resort"}
	}
	if q.Kind == FieldNumeric {
		years := e.cfg.DefaultYears
		if years < 1 {
			years = 1
		}
		return Answer{Value: strconv.Itoa(years), OptionIndex: -1, Rule: "last-resort"}
	}
	return Answer{Value: "Yes", OptionIndex: -1, Rule: "last-resort"}
}

// leadingNumber extracts the integer at the start of a model reply like
// "3" or "2. Yes".
func leadingNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
