// Package rodbrowser is an alternative actuator that drives Chrome over the
// DevTools protocol with go-rod. It needs no Playwright driver, only a local
// Chrome or Chromium, which the launcher downloads when none is found.
package rodbrowser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/entrhq/formrunner/pkg/engine"
)

// DefaultTimeout bounds page operations when Options.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Options configures a rod Session.
type Options struct {
	// Bin is the browser executable. Empty lets the launcher find or fetch one.
	Bin string

	// ControlURL connects to an already running browser instead of launching.
	ControlURL string

	Headless bool
	Timeout  time.Duration
}

// Session is a single Chrome page used for every row of a run.
type Session struct {
	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	closed  bool

	// launched is nil when connected to an existing browser.
	launched *launcher.Launcher
}

// Open launches (or connects to) Chrome and opens a blank page.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var launched *launcher.Launcher
	controlURL := opts.ControlURL
	if controlURL == "" {
		launched = launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			launched = launched.Bin(opts.Bin)
		}
		u, err := launched.Launch()
		if err != nil {
			stopLauncher(launched)
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		stopLauncher(launched)
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		stopLauncher(launched)
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Rows run under their own contexts; the connection outlives a cancelled run
	// until Close.
	return &Session{
		browser:  browser.Context(context.WithoutCancel(ctx)),
		page:     page,
		timeout:  opts.Timeout,
		launched: launched,
	}, nil
}

// stopLauncher kills a browser this package launched and removes its
// temporary profile. Cleanup waits for the process to exit, so a launcher
// that never started a process is left alone.
func stopLauncher(l *launcher.Launcher) {
	if l == nil || l.PID() == 0 {
		return
	}
	l.Kill()
	l.Cleanup()
}

// Navigate opens url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	p := page.Context(ctx).Timeout(s.timeout)
	if err := p.Navigate(url); err != nil {
		return s.classify(err, false)
	}
	if err := p.WaitLoad(); err != nil {
		return s.classify(err, false)
	}
	return nil
}

// Locate waits for the first element matching the CSS selector locator.
func (s *Session) Locate(ctx context.Context, locator string) (engine.Handle, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	el, err := page.Context(ctx).Timeout(s.timeout).Element(locator)
	if err != nil {
		return nil, s.classify(err, true)
	}
	return el, nil
}

// SetValue types text, selects an option by value (falling back to its
// label) and toggles checkboxes only when their state differs.
func (s *Session) SetValue(ctx context.Context, h engine.Handle, v engine.Value) error {
	el, err := s.element(ctx, h)
	if err != nil {
		return err
	}

	switch v := v.(type) {
	case engine.Text:
		if err = el.SelectAllText(); err == nil {
			err = el.Input(string(v))
		}
	case engine.Choice:
		byValue := fmt.Sprintf("option[value=%s]", strconv.Quote(string(v)))
		if err = el.Select([]string{byValue}, true, rod.SelectorTypeCSSSector); err != nil {
			err = el.Select([]string{string(v)}, true, rod.SelectorTypeText)
		}
	case engine.Checkbox:
		var checked bool
		checked, err = isChecked(el)
		if err == nil && checked != bool(v) {
			err = el.Click(proto.InputMouseButtonLeft, 1)
		}
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	if err != nil {
		return s.classify(err, false)
	}
	return nil
}

func isChecked(el *rod.Element) (bool, error) {
	prop, err := el.Property("checked")
	if err != nil {
		return false, err
	}
	return prop.Bool(), nil
}

// Click clicks the element with the left mouse button.
func (s *Session) Click(ctx context.Context, h engine.Handle) error {
	el, err := s.element(ctx, h)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return s.classify(err, false)
	}
	return nil
}

// ReadState returns the visible text of the element for locator.
func (s *Session) ReadState(ctx context.Context, locator string) (string, error) {
	h, err := s.Locate(ctx, locator)
	if err != nil {
		return "", err
	}
	text, err := h.(*rod.Element).Text()
	if err != nil {
		return "", s.classify(err, false)
	}
	return text, nil
}

// Close closes the browser and, when it was launched by Open, stops the
// process and removes its profile directory. It is safe to call more than
// once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.browser.Close()
	stopLauncher(s.launched)
	return err
}

func (s *Session) current(ctx context.Context) (*rod.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.page == nil {
		return nil, fmt.Errorf("browser is closed: %w", engine.ErrActuatorUnavailable)
	}
	return s.page, nil
}

func (s *Session) element(ctx context.Context, h engine.Handle) (*rod.Element, error) {
	el, ok := h.(*rod.Element)
	if !ok {
		return nil, fmt.Errorf("handle %T is not a rod element", h)
	}
	if _, err := s.current(ctx); err != nil {
		return nil, err
	}
	return el.Context(ctx).Timeout(s.timeout), nil
}

// classify maps rod errors onto the engine's sentinels. A failure with a
// dead browser connection is fatal; a timeout while locating means nothing
// matched.
func (s *Session) classify(err error, locating bool) error {
	if !s.alive() {
		return fmt.Errorf("%w: %v", engine.ErrActuatorUnavailable, err)
	}
	return classifyErr(err, locating)
}

func classifyErr(err error, locating bool) error {
	var notFound *rod.ElementNotFoundError
	switch {
	case locating && errors.Is(err, context.DeadlineExceeded):
		return engine.ErrNotFound
	case locating && errors.As(err, &notFound):
		return engine.ErrNotFound
	default:
		return err
	}
}

func (s *Session) alive() bool {
	_, err := s.browser.Version()
	return err == nil
}
