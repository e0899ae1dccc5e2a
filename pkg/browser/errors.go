package browser

import (
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/formrunner/pkg/engine"
)

// classify maps Playwright errors onto the engine's sentinels. A timeout
// while locating means nothing matched.
func classify(err error, locating bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTargetClosed):
		return fmt.Errorf("%w: %v", engine.ErrActuatorUnavailable, err)
	case locating && errors.Is(err, playwright.ErrTimeout):
		return engine.ErrNotFound
	default:
		return err
	}
}
