package browser

import (
	"fmt"
	"strings"
	"time"
)

// Default values for session options.
const (
	DefaultBrowser        = "chromium"
	DefaultTimeout        = 10 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Browsers lists the supported browser engines.
var Browsers = []string{"chromium", "firefox", "webkit"}

// browserAliases maps other common names onto a supported engine.
var browserAliases = map[string]string{
	"chrome":        "chromium",
	"google-chrome": "chromium",
	"safari":        "webkit",
}

// NormalizeBrowser lower-cases name and resolves aliases such as chrome.
func NormalizeBrowser(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := browserAliases[name]; ok {
		return alias
	}
	return name
}

// Options configures a new Session.
type Options struct {
	// Browser is one of chromium, firefox or webkit.
	Browser string

	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// Timeout bounds every page operation.
	Timeout time.Duration

	// Viewport sets the page size. Nil uses the default.
	Viewport *Viewport

	// SkipInstall skips downloading the driver and browser binaries.
	SkipInstall bool
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// withDefaults fills unset options and checks the browser name.
func (o Options) withDefaults() (Options, error) {
	o.Browser = NormalizeBrowser(o.Browser)
	if o.Browser == "" {
		o.Browser = DefaultBrowser
	}
	if !ValidBrowser(o.Browser) {
		return o, fmt.Errorf("unsupported browser %q (must be one of %v)", o.Browser, Browsers)
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Viewport == nil {
		o.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	return o, nil
}

// ValidBrowser reports whether name is a supported browser engine or an
// alias of one.
func ValidBrowser(name string) bool {
	name = NormalizeBrowser(name)
	for _, b := range Browsers {
		if b == name {
			return true
		}
	}
	return false
}
