package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const (
	loginURL         = "https://www.tistory.com/auth/login"
	kakaoLoginButton = ".btn_login.link_kakao_id"
	emailInput       = `input[name="email"]`
	passwordInput    = `input[name="password"]`
)

// ChromeBrowser drives a Chrome instance through the DevTools protocol
type ChromeBrowser struct {
	ctx          context.Context
	cancel       context.CancelFunc
	loginTimeout time.Duration
}

// NewChromeBrowser launches Chrome; the window is visible unless settings ask for headless
func NewChromeBrowser(settings BrowserSettings) (*ChromeBrowser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", settings.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(browserUserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(debugLog))

	// the first Run starts the browser and binds it to browserCtx
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &ChromeBrowser{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		loginTimeout: durationOr(settings.LoginTimeout, 300*time.Second),
	}, nil
}

// Close shuts the browser down
func (b *ChromeBrowser) Close() {
	b.cancel()
}

// run executes actions in the browser tab, aborting when ctx is done
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (b *ChromeBrowser) runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return b.run(tctx, actions...)
}

// Navigate opens url in the current tab
func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	debugLog("navigate %s", url)
	return b.run(ctx, chromedp.Navigate(url))
}

// WaitReady blocks until selector is present or timeout elapses
func (b *ChromeBrowser) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return b.runWithTimeout(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// HTML returns the rendered document
func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page: %w", err)
	}
	return html, nil
}

// CurrentURL returns the location of the current tab
func (b *ChromeBrowser) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := b.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// Login opens the login page and, when credentials are given, fills the Kakao
// form. Either way it waits for the operator to land in the admin console.
func (b *ChromeBrowser) Login(ctx context.Context, id, password string) error {
	log.Printf("→ Opening login page")
	if err := b.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	if id != "" && password != "" {
		if err := b.fillLoginForm(ctx, id, password); err != nil {
			log.Printf("⚠ Automatic login failed, finish logging in from the browser window: %v", err)
		}
	} else {
		log.Printf("→ No TISTORY_ID/TISTORY_PW set, log in from the browser window")
	}

	log.Printf("→ Waiting up to %s for login to complete", b.loginTimeout)
	deadline := time.Now().Add(b.loginTimeout)
	for time.Now().Before(deadline) {
		location, err := b.CurrentURL(ctx)
		if err != nil {
			return fmt.Errorf("reading location: %w", err)
		}
		if loggedIn(location) {
			log.Printf("✓ Logged in")
			return nil
		}
		if err := sleepContext(ctx, time.Second); err != nil {
			return err
		}
	}
	return fmt.Errorf("login did not complete within %s", b.loginTimeout)
}

func (b *ChromeBrowser) fillLoginForm(ctx context.Context, id, password string) error {
	if err := b.runWithTimeout(ctx, 5*time.Second,
		chromedp.WaitVisible(kakaoLoginButton, chromedp.ByQuery),
		chromedp.Click(kakaoLoginButton, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("kakao login button: %w", err)
	}

	return b.runWithTimeout(ctx, 10*time.Second,
		chromedp.WaitVisible(emailInput, chromedp.ByQuery),
		chromedp.Clear(emailInput, chromedp.ByQuery),
		chromedp.SendKeys(emailInput, id, chromedp.ByQuery),
		chromedp.Clear(passwordInput, chromedp.ByQuery),
		chromedp.SendKeys(passwordInput, password+kb.Enter, chromedp.ByQuery),
	)
}

func loggedIn(location string) bool {
	return strings.Contains(location, "tistory.com/manage") || strings.Contains(location, "tistory.com/feed")
}
