package services

import (
	"strings"
)

// FormStepKind is the classification of one modal step of the apply flow.
type FormStepKind int

const (
	StepGenericQuestions FormStepKind = iota
	StepHomeAddress
	StepContactInfo
	StepResumeUpload
)

// PageClassifier isolates every locale-specific phrase the engine matches
// against site copy. The site rewords its UI regularly, so nothing outside
// this interface may hold phrase lists; swapping locales or sites means
// swapping the classifier.
type PageClassifier interface {
	ClassifyStep(heading string) FormStepKind
	IsSubmitLabel(label string) bool
	IsValidationError(text string) bool
	IsNoResultsBanner(text string) bool
	IsChallengePage(url, title string) bool
}

type phraseClassifier struct {
	homeAddress    []string
	contactInfo    []string
	resumeUpload   []string
	submitLabels   []string
	validationErrs []string
	noResults      []string
	challengeURLs  []string
	challengeWords []string
}

// NewEnglishClassifier returns the classifier for the site's en-US copy.
func NewEnglishClassifier() PageClassifier {
	return &phraseClassifier{
		homeAddress: []string{
			"home address",
			"address",
		},
		contactInfo: []string{
			"contact info",
			"contact information",
		},
		resumeUpload: []string{
			"resume",
			"be sure to include an updated resume",
			"upload resume",
		},
		submitLabels: []string{
			"submit application",
			"submit",
		},
		validationErrs: []string{
			"please enter a valid answer",
			"enter a valid",
			"file is required",
			"please make a selection",
			"this field is required",
			"required field",
		},
		noResults: []string{
			"no matching jobs found",
			"didn't match any jobs",
			"unfortunately, things aren",
		},
		challengeURLs: []string{
			"/checkpoint/challenge",
			"/uas/login-submit",
			"captcha",
		},
		challengeWords: []string{
			"security verification",
			"let's do a quick security check",
			"verify your identity",
		},
	}
}

func (c *phraseClassifier) ClassifyStep(heading string) FormStepKind {
	h := strings.ToLower(strings.TrimSpace(heading))
	switch {
	case containsAny(h, c.contactInfo):
		return StepContactInfo
	case containsAny(h, c.resumeUpload):
		return StepResumeUpload
	case containsAny(h, c.homeAddress):
		return StepHomeAddress
	default:
		return StepGenericQuestions
	}
}

func (c *phraseClassifier) IsSubmitLabel(label string) bool {
	return containsAny(strings.ToLower(label), c.submitLabels)
}

func (c *phraseClassifier) IsValidationError(text string) bool {
	return containsAny(strings.ToLower(text), c.validationErrs)
}

func (c *phraseClassifier) IsNoResultsBanner(text string) bool {
	return containsAny(strings.ToLower(text), c.noResults)
}

func (c *phraseClassifier) IsChallengePage(url, title string) bool {
	return containsAny(strings.ToLower(url), c.challengeURLs) ||
		containsAny(strings.ToLower(title), c.challengeWords)
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
