package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/formrunner/pkg/engine"
)

// Session is a single browser page used for every row of a run.
type Session struct {
	mu     sync.Mutex
	opts   Options
	pw     *playwright.Playwright
	brw    playwright.Browser
	bctx   playwright.BrowserContext
	page   playwright.Page
	closed bool
}

// Open installs the Playwright driver if needed, launches the browser and
// opens a page.
func Open(opts Options) (*Session, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{opts.Browser},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if !opts.SkipInstall {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	brw, err := browserType(pw, opts.Browser).Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", opts.Browser, err)
	}

	bctx, err := brw.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = brw.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = brw.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(opts.Timeout.Milliseconds()))

	return &Session{
		opts: opts,
		pw:   pw,
		brw:  brw,
		bctx: bctx,
		page: page,
	}, nil
}

func browserType(pw *playwright.Playwright, name string) playwright.BrowserType {
	switch name {
	case "firefox":
		return pw.Firefox
	case "webkit":
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

// Navigate opens url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return classify(err, false)
	}
	return nil
}

// Locate waits for the first element matching locator to be attached.
func (s *Session) Locate(ctx context.Context, locator string) (engine.Handle, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	loc := page.Locator(locator).First()
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateAttached,
	}); err != nil {
		return nil, classify(err, true)
	}
	return loc, nil
}

// SetValue fills text inputs, selects options and sets checkbox state.
func (s *Session) SetValue(ctx context.Context, h engine.Handle, v engine.Value) error {
	loc, err := s.locator(ctx, h)
	if err != nil {
		return err
	}

	switch v := v.(type) {
	case engine.Text:
		err = loc.Fill(string(v))
	case engine.Choice:
		_, err = loc.SelectOption(playwright.SelectOptionValues{
			Values: playwright.StringSlice(string(v)),
		})
	case engine.Checkbox:
		err = loc.SetChecked(bool(v))
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	if err != nil {
		return classify(err, false)
	}
	return nil
}

// Click clicks the element.
func (s *Session) Click(ctx context.Context, h engine.Handle) error {
	loc, err := s.locator(ctx, h)
	if err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return classify(err, false)
	}
	return nil
}

// ReadState returns the text content of the element for locator.
func (s *Session) ReadState(ctx context.Context, locator string) (string, error) {
	h, err := s.Locate(ctx, locator)
	if err != nil {
		return "", err
	}
	text, err := h.(playwright.Locator).TextContent()
	if err != nil {
		return "", classify(err, false)
	}
	return text, nil
}

// Close releases the page, context and browser and stops the driver. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.page.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, err)
	}
	if err := s.bctx.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, err)
	}
	if err := s.brw.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		errs = append(errs, err)
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) current(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.page == nil || s.page.IsClosed() {
		return nil, fmt.Errorf("page is closed: %w", engine.ErrActuatorUnavailable)
	}
	return s.page, nil
}

func (s *Session) locator(ctx context.Context, h engine.Handle) (playwright.Locator, error) {
	loc, ok := h.(playwright.Locator)
	if !ok {
		return nil, fmt.Errorf("handle %T is not a playwright locator", h)
	}
	if _, err := s.current(ctx); err != nil {
		return nil, err
	}
	return loc, nil
}
