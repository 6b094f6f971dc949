// File: cmd/fetch.go

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/config"
	"github.com/billfetch/billfetch-cli/internal/observability"
	"github.com/billfetch/billfetch-cli/internal/platform"
)

var (
	fetchAll     bool
	fetchYear    int
	fetchPeriods string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [platform...]",
	Short: "Download the billing window's invoices for one or more platforms",
	Long: `Fetch establishes an authenticated browser session for each named platform,
replaying persisted login state when possible, and downloads every invoice in
the platform's configured billing window. Documents land under the download
directory as <year>/<platform>/<period>.pdf.

--year and --periods override the configured billing year and window, e.g.
"billfetch fetch arnona --year 2025 --periods 1-3".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		platforms := args
		if fetchAll {
			platforms = platform.Known()
		}
		if len(platforms) == 0 {
			return fmt.Errorf("no platforms given (known: %v)", platform.Known())
		}

		if fetchYear != 0 {
			cfg.Billing.Year = fetchYear
		}
		if fetchPeriods != "" {
			window, err := parsePeriodRange(fetchPeriods)
			if err != nil {
				return err
			}
			for _, name := range platforms {
				cfg.Billing.Windows[name] = window
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		runner, cleanup, err := buildRunner(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		logger := observability.GetLogger()
		var failed []string
		for _, name := range platforms {
			paths, err := runner.Fetch(cmd.Context(), name)
			if err != nil {
				logger.Error("Platform fetch failed.",
					zap.String("platform", name),
					zap.Int("fetched_before_failure", len(paths)),
					zap.Error(err))
				failed = append(failed, name)
				continue
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("fetch failed for platforms: %v", failed)
		}
		return nil
	},
}

// parsePeriodRange parses "a-b" (or a bare "a") into an inclusive window.
func parsePeriodRange(s string) (config.PeriodWindow, error) {
	start, end, found := strings.Cut(s, "-")
	if !found {
		end = start
	}
	first, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return config.PeriodWindow{}, fmt.Errorf("invalid period range %q: %w", s, err)
	}
	last, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return config.PeriodWindow{}, fmt.Errorf("invalid period range %q: %w", s, err)
	}
	if first < 1 || last < first {
		return config.PeriodWindow{}, fmt.Errorf("invalid period range %q", s)
	}
	return config.PeriodWindow{Start: first, End: last}, nil
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "fetch every registered platform")
	fetchCmd.Flags().IntVar(&fetchYear, "year", 0, "override the configured billing year")
	fetchCmd.Flags().StringVar(&fetchPeriods, "periods", "", "override the billing window, e.g. 1-3")
	rootCmd.AddCommand(fetchCmd)
}
