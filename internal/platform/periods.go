// File: internal/platform/periods.go

package platform

import (
	"fmt"

	"github.com/billfetch/billfetch-cli/internal/config"
)

// PeriodsToDownload expands a platform's configured billing window into the
// concrete periods for the configured year. The window is inclusive on both
// ends.
func PeriodsToDownload(billing config.BillingConfig, platformName string) ([]Period, error) {
	window, ok := billing.Windows[platformName]
	if !ok {
		known := make([]string, 0, len(billing.Windows))
		for name := range billing.Windows {
			known = append(known, name)
		}
		return nil, &UnknownPlatformError{Platform: platformName, Known: known}
	}
	if window.Start < 1 || window.End < window.Start {
		return nil, fmt.Errorf("invalid billing window %d-%d for platform %s", window.Start, window.End, platformName)
	}

	periods := make([]Period, 0, window.End-window.Start+1)
	for i := window.Start; i <= window.End; i++ {
		periods = append(periods, Period{Year: billing.Year, Index: i})
	}
	return periods, nil
}
