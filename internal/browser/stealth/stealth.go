// File: internal/browser/stealth/stealth.go

// Package stealth patches the fingerprint surfaces the municipal portals
// inspect before letting a login proceed.
package stealth

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

//go:embed evasions.js
var evasionsScript string

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultPersona is an Israeli resident's desktop Chrome. The timezone and
// language ordering must agree with what evasions.js reports, or the
// mismatch itself becomes a signal.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"he-IL", "he", "en-US", "en"},
	Timezone:  "Asia/Jerusalem",
	Locale:    "he-IL",
}

// Tasks builds the CDP actions that install the persona on a page context.
func Tasks(p Persona) chromedp.Tasks {
	return chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent),

		// AddScriptToEvaluateOnNewDocument runs the evasions before any page
		// script on every navigation, including popups.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),

		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": fmt.Sprintf("%s,%s;q=0.9", p.Languages[0], p.Languages[1]),
		}),
	}
}

// Apply installs the default persona on a chromedp context.
func Apply(ctx context.Context) error {
	return chromedp.Run(ctx, Tasks(DefaultPersona))
}
