package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type GeminiRequest struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Parts []Part `json:"parts"`
	Role  string `json:"role"`
}

type Part struct {
	Text string `json:"text"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiClient is the generative fallback used when no deterministic answer
// rule matches, and the optional job-fit pre-screen. Calls carry a bounded
// timeout; on timeout the answer engine falls through to its last resort.
type GeminiClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		model:      "gemini-1.5-pro",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Available reports whether the client is configured with an API key.
func (c *GeminiClient) Available() bool {
	return c != nil && c.apiKey != ""
}

func (c *GeminiClient) generateContent(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey)

	requestBody := GeminiRequest{
		Contents: []Content{
			{
				Role: "user",
				Parts: []Part{
					{Text: prompt},
				},
			},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API error: %s", b)
	}

	var gemResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gemResp); err != nil {
		return "", err
	}

	if len(gemResp.Candidates) == 0 || len(gemResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no predictions returned")
	}

	return strings.TrimSpace(gemResp.Candidates[0].Content.Parts[0].Text), nil
}

// GenerateAnswer asks the model to answer one application question in the
// candidate's voice. For choice and numeric questions the reply is asked as
// a bare number so the caller can validate it.
func (c *GeminiClient) GenerateAnswer(ctx context.Context, background string, q Question) (string, error) {
	prompt := buildAnswerPrompt(background, q)
	return c.generateContent(ctx, prompt)
}

// EvaluateJobFit asks the model whether the candidate should apply to the
// listing at all. Errors are treated as "apply" by the caller.
func (c *GeminiClient) EvaluateJobFit(ctx context.Context, background, title, description string) (bool, error) {
	prompt := fmt.Sprintf(`You are screening job listings for a candidate.

Candidate background:
%s

Job title: %s

Job description:
%s

Should the candidate apply? Reply with exactly one word: APPLY or SKIP.`, background, title, description)

	reply, err := c.generateContent(ctx, prompt)
	if err != nil {
		return true, err
	}
	return !strings.Contains(strings.ToUpper(reply), "SKIP"), nil
}

func buildAnswerPrompt(background string, q Question) string {
	var b strings.Builder
	b.WriteString("You are filling a job application form on behalf of a candidate.\n\n")
	b.WriteString("Candidate background:\n")
	b.WriteString(background)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(q.Text)
	b.WriteString("\n")

	switch q.Kind {
	case FieldNumeric:
		b.WriteString("Answer with a single whole number only, no words.")
	case FieldRadio, FieldDropdown:
		b.WriteString("Options:\n")
		for i, opt := range q.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
		}
		b.WriteString("Answer with the number of the best option only.")
	default:
		b.WriteString("Answer in at most two short sentences, first person, no preamble.")
	}

	return b.String()
}
