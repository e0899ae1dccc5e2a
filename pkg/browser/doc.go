// Package browser drives a real browser through Playwright.
//
// A Session owns one browser, one context and one page for the lifetime of a
// run and implements engine.Actuator on top of it:
//
//	session, err := browser.Open(browser.Options{Browser: "chromium", Headless: true})
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
// Locators are Playwright selectors, so CSS, text= and xpath= all work. Every
// operation is bounded by Options.Timeout. A locator that does not attach
// within the timeout is reported as engine.ErrNotFound; a closed page or
// browser is reported as engine.ErrActuatorUnavailable.
package browser
