package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"
)

// BrowserService owns the controlled browser for one worker: launch,
// login, challenge handling, teardown.
type BrowserService struct {
	pw         *playwright.Playwright
	browser    playwright.Browser
	page       playwright.Page
	classifier PageClassifier
	escalate   func(pageURL string)
}

// NewBrowserService launches a hardened Chromium and opens the worker's
// single page. escalate is called (once per challenge) when the site
// demands manual verification; it may be nil.
func NewBrowserService(classifier PageClassifier, escalate func(pageURL string)) (*BrowserService, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-blink-features=AutomationControlled",
			"--disable-extensions",
			"--disable-plugins-discovery",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	ctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		Viewport:  &playwright.Size{Width: 1366, Height: 768},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := ctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &BrowserService{
		pw:         pw,
		browser:    browser,
		page:       page,
		classifier: classifier,
		escalate:   escalate,
	}, nil
}

func (b *BrowserService) Page() playwright.Page {
	return b.page
}

// Login signs the account in and verifies the authenticated navigation bar
// is present. Bad credentials return an AuthError (fatal, no restart); a
// verification challenge escalates and waits for a human to clear it.
func (b *BrowserService) Login(ctx context.Context, identity, secret string) error {
	log.Println("Navigating to login page...")
	if _, err := b.page.Goto("https://www.linkedin.com/login", playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	}); err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}

	HumanDelay(800, 2000)

	if err := b.page.Locator("#username").Fill(identity); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	HumanDelay(400, 900)
	if err := b.page.Locator("#password").Fill(secret); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	HumanDelay(400, 900)
	if err := b.page.Locator("button[type='submit']").Click(); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	// Either the authenticated nav appears, or we landed on a challenge or
	// an error page.
	_, navErr := b.page.WaitForSelector("#global-nav", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(15000),
	})
	if navErr == nil {
		log.Println("Login confirmed")
		return nil
	}

	title, _ := b.page.Title()
	if b.classifier.IsChallengePage(b.page.URL(), title) {
		return b.waitForChallenge(ctx)
	}

	if visible, _ := b.page.Locator("#error-for-password, #error-for-username").First().IsVisible(); visible {
		return &AuthError{Reason: "credentials rejected by site"}
	}
	return &AuthError{Reason: fmt.Sprintf("unexpected page after login: %s", b.page.URL())}
}

// waitForChallenge pauses until a human clears the verification challenge,
// polling for the authenticated nav. The worker neither fails nor guesses.
func (b *BrowserService) waitForChallenge(ctx context.Context) error {
	pageURL := b.page.URL()
	log.Printf("Verification challenge detected at %s, waiting for manual resolution", pageURL)
	if b.escalate != nil {
		b.escalate(pageURL)
	}

	deadline := time.Now().Add(10 * time.Minute)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
		}
		if visible, _ := b.page.Locator("#global-nav").IsVisible(); visible {
			log.Println("Challenge cleared, continuing")
			return nil
		}
	}
	return &ChallengeError{PageURL: pageURL}
}

// Goto navigates with a bounded timeout.
func (b *BrowserService) Goto(url string) error {
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	return err
}

// Screenshot captures the current page for failure records.
func (b *BrowserService) Screenshot() ([]byte, error) {
	return b.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
	})
}

// Close tears the browser down. Cleanup errors are logged, never returned:
// they must not block forward progress.
func (b *BrowserService) Close() {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			log.Printf("Warning: failed to close browser: %v", err)
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			log.Printf("Warning: failed to stop playwright: %v", err)
		}
	}
}

// HumanDelay sleeps a random interval to avoid a mechanical cadence.
func HumanDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		time.Sleep(time.Duration(minMs) * time.Millisecond)
		return
	}
	d := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(d) * time.Millisecond)
}

// HumanScroll nudges the page like a reader would.
func HumanScroll(page playwright.Page) {
	for i := 0; i < 3; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, window.innerHeight * 0.6)`); err != nil {
			return
		}
		HumanDelay(400, 1200)
	}
}
