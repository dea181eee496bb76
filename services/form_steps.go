package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/playwright-community/playwright-go"

	"applypilot/models"
)

// FormStepFiller fills one classified step of the apply modal. Address and
// contact steps come straight from the candidate profile; the resume step
// attaches stored files; everything else goes through the answer engine.
type FormStepFiller struct {
	profile     models.CandidateProfile
	engine      *AnswerEngine
	resumePath  func() (string, error)
	coverLetter string
}

func NewFormStepFiller(profile models.CandidateProfile, engine *AnswerEngine, resumePath func() (string, error), coverLetter string) *FormStepFiller {
	return &FormStepFiller{
		profile:     profile,
		engine:      engine,
		resumePath:  resumePath,
		coverLetter: coverLetter,
	}
}

// FillStep dispatches to the routine for the classified step kind. The
// returned flag reports whether any generated content was used.
func (f *FormStepFiller) FillStep(ctx context.Context, modal playwright.Locator, kind FormStepKind, candidate JobCandidate) (bool, error) {
	switch kind {
	case StepHomeAddress:
		return false, f.fillHomeAddress(modal)
	case StepContactInfo:
		return false, f.fillContactInfo(modal)
	case StepResumeUpload:
		return false, f.fillResumeUpload(modal, candidate)
	default:
		return f.fillGenericQuestions(ctx, modal)
	}
}

func (f *FormStepFiller) fillHomeAddress(modal playwright.Locator) error {
	fields := []struct {
		selectors []string
		value     string
	}{
		{[]string{"input[id*='line1']", "input[id*='street']", "input[aria-label*='Street']"}, f.profile.Street},
		{[]string{"input[id*='postalCode']", "input[id*='zip']", "input[aria-label*='ZIP']"}, f.profile.ZipCode},
		{[]string{"input[id*='state']", "input[aria-label*='State']"}, f.profile.State},
	}
	for _, field := range fields {
		f.tryFillField(modal, field.selectors, field.value)
	}

	// City fields are autocompletes: type, wait for suggestions, pick the
	// first one.
	citySelectors := []string{"input[id*='city']", "input[aria-label*='City']"}
	for _, sel := range citySelectors {
		city := modal.Locator(sel).First()
		if visible, _ := city.IsVisible(); !visible {
			continue
		}
		if err := city.Fill(f.profile.City); err != nil {
			continue
		}
		HumanDelay(1200, 2200)
		_ = city.Press("ArrowDown")
		_ = city.Press("Enter")
		break
	}
	return nil
}

func (f *FormStepFiller) fillContactInfo(modal playwright.Locator) error {
	f.tryFillField(modal, []string{
		"input[id*='phoneNumber']",
		"input[type='tel']",
		"input[aria-label*='phone']",
	}, f.profile.Phone)

	// The email field is usually a dropdown over the account's verified
	// addresses.
	email := f.profile.AltEmail
	if email == "" {
		email = f.profile.Email
	}
	emailSelect := modal.Locator("select[id*='email'], select[aria-label*='email']").First()
	if visible, _ := emailSelect.IsVisible(); visible && email != "" {
		if _, err := emailSelect.SelectOption(playwright.SelectOptionValues{Values: &[]string{email}}); err != nil {
			// Address may be listed with different casing; fall back to label match.
			_, _ = emailSelect.SelectOption(playwright.SelectOptionValues{Labels: &[]string{email}})
		}
	}
	return nil
}

func (f *FormStepFiller) fillResumeUpload(modal playwright.Locator, candidate JobCandidate) error {
	path, err := f.resumePath()
	if err != nil {
		return &JobError{Stage: "resume-upload", Reason: "stored resume unavailable", Err: err}
	}

	fileInputs, err := modal.Locator("input[type='file']").All()
	if err != nil || len(fileInputs) == 0 {
		// Some flows preselect the stored resume and show no input.
		return nil
	}

	if err := fileInputs[0].SetInputFiles(path); err != nil {
		return &JobError{Stage: "resume-upload", Reason: "failed to attach resume", Err: err}
	}
	log.Printf("✓ Attached resume")
	HumanDelay(1500, 3000)

	// A second file input means a cover letter slot. Only fill it when a
	// letter is configured or the slot is required.
	if len(fileInputs) > 1 {
		required := false
		if attr, _ := fileInputs[1].GetAttribute("aria-required"); attr == "true" {
			required = true
		}
		if f.coverLetter != "" || required {
			coverPath, err := BuildCoverLetterFile(f.coverLetter, candidate)
			if err != nil {
				if required {
					return &JobError{Stage: "resume-upload", Reason: "cover letter required but unavailable", Err: err}
				}
				return nil
			}
			if err := fileInputs[1].SetInputFiles(coverPath); err == nil {
				log.Printf("✓ Attached cover letter")
			}
		}
	}
	return nil
}

func (f *FormStepFiller) fillGenericQuestions(ctx context.Context, modal playwright.Locator) (bool, error) {
	generated := false

	// Dropdown questions
	selects, _ := modal.Locator("select").All()
	for _, sel := range selects {
		question := f.questionText(modal, sel)
		options := f.selectOptions(sel)
		if question == "" || len(options) == 0 {
			continue
		}
		ans := f.engine.Resolve(ctx, Question{Text: question, Kind: FieldDropdown, Options: options})
		generated = generated || ans.Generated
		if _, err := sel.SelectOption(playwright.SelectOptionValues{Labels: &[]string{ans.Value}}); err != nil {
			log.Printf("Failed to select %q for %q: %v", ans.Value, question, err)
		}
	}

	// Radio questions
	fieldsets, _ := modal.Locator("fieldset").All()
	for _, fs := range fieldsets {
		question := f.legendText(fs)
		labels, _ := fs.Locator("label").All()
		var options []string
		for _, l := range labels {
			if text, err := l.InnerText(); err == nil {
				options = append(options, strings.TrimSpace(text))
			}
		}
		if question == "" || len(options) == 0 {
			continue
		}
		ans := f.engine.Resolve(ctx, Question{Text: question, Kind: FieldRadio, Options: options})
		generated = generated || ans.Generated
		if ans.OptionIndex >= 0 && ans.OptionIndex < len(labels) {
			if err := labels[ans.OptionIndex].Click(); err != nil {
				log.Printf("Failed to pick %q for %q: %v", ans.Value, question, err)
			}
		}
	}

	// Free-text and numeric inputs
	inputs, _ := modal.Locator("input[type='text']:visible, textarea:visible").All()
	for _, input := range inputs {
		value, _ := input.InputValue()
		if value != "" {
			continue
		}
		question := f.questionText(modal, input)
		if question == "" {
			continue
		}
		kind := FieldText
		if id, _ := input.GetAttribute("id"); strings.Contains(strings.ToLower(id), "numeric") {
			kind = FieldNumeric
		} else if mode, _ := input.GetAttribute("inputmode"); mode == "numeric" {
			kind = FieldNumeric
		}
		ans := f.engine.Resolve(ctx, Question{Text: question, Kind: kind})
		generated = generated || ans.Generated
		if err := input.Fill(ans.Value); err != nil {
			log.Printf("Failed to fill %q for %q: %v", ans.Value, question, err)
		}
		HumanDelay(300, 800)
	}

	return generated, nil
}

func (f *FormStepFiller) tryFillField(modal playwright.Locator, selectors []string, value string) bool {
	if value == "" {
		return false
	}
	for _, selector := range selectors {
		element := modal.Locator(selector).First()
		if visible, _ := element.IsVisible(); visible {
			_ = element.Clear()
			if err := element.Fill(value); err == nil {
				log.Printf("✓ Filled field with selector '%s'", selector)
				return true
			}
		}
	}
	return false
}

// questionText finds the visible label for an input or select.
func (f *FormStepFiller) questionText(modal playwright.Locator, el playwright.Locator) string {
	if label, _ := el.GetAttribute("aria-label"); label != "" {
		return strings.TrimSpace(label)
	}
	if id, _ := el.GetAttribute("id"); id != "" {
		label := modal.Locator(fmt.Sprintf("label[for='%s']", id)).First()
		if text, err := label.InnerText(); err == nil {
			return strings.TrimSpace(text)
		}
	}
	if placeholder, _ := el.GetAttribute("placeholder"); placeholder != "" {
		return strings.TrimSpace(placeholder)
	}
	return ""
}

func (f *FormStepFiller) legendText(fieldset playwright.Locator) string {
	legend := fieldset.Locator("legend").First()
	if text, err := legend.InnerText(); err == nil {
		return strings.TrimSpace(text)
	}
	return ""
}

func (f *FormStepFiller) selectOptions(sel playwright.Locator) []string {
	var options []string
	opts, _ := sel.Locator("option").All()
	for _, opt := range opts {
		text, err := opt.InnerText()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" || strings.Contains(strings.ToLower(text), "select an option") {
			continue
		}
		options = append(options, text)
	}
	return options
}
