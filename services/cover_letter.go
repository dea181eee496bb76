package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"baliance.com/gooxml/document"
)

// BuildCoverLetterFile renders the configured cover letter text into a
// .docx in a temp directory, substituting the job's title and company.
// Returns the file path; the caller removes it after upload.
func BuildCoverLetterFile(template string, candidate JobCandidate) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("no cover letter configured")
	}

	text := strings.NewReplacer(
		"{{position}}", candidate.Title,
		"{{company}}", candidate.Company,
	).Replace(template)

	doc := document.New()
	for _, para := range strings.Split(text, "\n\n") {
		doc.AddParagraph().AddRun().AddText(strings.TrimSpace(para))
	}

	dir, err := os.MkdirTemp("", "applypilot-cover")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "cover_letter.docx")
	if err := doc.SaveToFile(path); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to write cover letter: %v", err)
	}
	return path, nil
}
