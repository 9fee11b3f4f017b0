package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/flowrunner/internal/catalog"
	"github.com/xkilldash9x/flowrunner/internal/config"
	"github.com/xkilldash9x/flowrunner/internal/driver"
	"github.com/xkilldash9x/flowrunner/internal/driver/cdp"
	"github.com/xkilldash9x/flowrunner/internal/driver/pw"
	"github.com/xkilldash9x/flowrunner/internal/flow"
	"github.com/xkilldash9x/flowrunner/internal/observability"
	"github.com/xkilldash9x/flowrunner/internal/runner"
)

// Injected for tests.
var newDriver = func(cfg *config.Config, installBrowsers bool, logger *zap.Logger) (driver.Driver, error) {
	switch strings.ToLower(cfg.Browser.Engine) {
	case config.EngineChromedp:
		return cdp.New(logger), nil
	case config.EnginePlaywright:
		return pw.New(logger, installBrowsers), nil
	}
	return nil, fmt.Errorf("unsupported browser engine %q", cfg.Browser.Engine)
}

func newRunCmd() *cobra.Command {
	var (
		all             bool
		tags            []string
		installBrowsers bool
	)

	runCmd := &cobra.Command{
		Use:   "run [case...]",
		Short: "Runs test cases against the target application",
		Long: `Runs the named cases, or every known case with --all. Cases come from
the built-in catalog plus any YAML files under --cases-dir.

Exit status is 0 when every case passed, 1 when a case failed, and 2 when a
case could not be executed.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all cannot be combined with case names")
			}
			if !all && len(args) == 0 && len(tags) == 0 {
				return errors.New("name at least one case, or pass --all or --tag")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			known, err := loadCases(cfg)
			if err != nil {
				return err
			}
			selected, err := selectCases(known, all, tags, args)
			if err != nil {
				return err
			}

			drv, err := newDriver(cfg, installBrowsers, logger)
			if err != nil {
				return err
			}

			results := runCases(ctx, cfg, drv, selected, logger)
			printResults(cmd.OutOrStdout(), results)

			if code := runner.ExitCode(results); code != 0 {
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	runCmd.Flags().BoolVar(&all, "all", false, "Run every known case")
	runCmd.Flags().StringSliceVar(&tags, "tag", nil, "Run cases carrying any of these tags")
	runCmd.Flags().String("base-url", "", "Base URL of the application under test")
	runCmd.Flags().String("engine", config.EngineChromedp, "Browser engine: chromedp or playwright")
	runCmd.Flags().Bool("headless", true, "Run the browser without a window")
	runCmd.Flags().IntP("concurrency", "j", 1, "Number of cases run in parallel")
	runCmd.Flags().String("cases-dir", "", "Directory of YAML case files")
	runCmd.Flags().Duration("timeout", 5*time.Second, "Default timeout for locating and acting on elements")
	runCmd.Flags().BoolVar(&installBrowsers, "install-browsers", false, "Install the playwright driver and Chromium if missing")
	return runCmd
}

// loadCases returns the built-in catalog merged with the cases found in
// the configured directory.
func loadCases(cfg *config.Config) ([]flow.TestCase, error) {
	cases := catalog.Cases(catalog.EnvFromConfig(cfg.Target))
	if cfg.Cases.Dir == "" {
		return cases, nil
	}
	fromDir, err := flow.LoadDir(cfg.Cases.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading cases from %s: %w", cfg.Cases.Dir, err)
	}
	return catalog.Merge(cases, fromDir)
}

func selectCases(known []flow.TestCase, all bool, tags, names []string) ([]flow.TestCase, error) {
	if all {
		return known, nil
	}
	selected, err := catalog.Select(known, names...)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return selected, nil
	}

	seen := make(map[string]bool, len(selected))
	for _, tc := range selected {
		seen[tc.Name()] = true
	}
	for _, tc := range known {
		if seen[tc.Name()] {
			continue
		}
		for _, tag := range tags {
			if tc.HasTag(tag) {
				selected = append(selected, tc)
				seen[tc.Name()] = true
				break
			}
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no case carries tag(s): %s", strings.Join(tags, ", "))
	}
	return selected, nil
}

func runCases(ctx context.Context, cfg *config.Config, drv driver.Driver, cases []flow.TestCase, logger *zap.Logger) []runner.Result {
	r := runner.New(drv, runner.OptionsFromConfig(cfg), logger)
	suite := runner.NewSuite(r, cfg.Runner.Concurrency, cfg.Runner.LaunchInterval, logger)

	logger.Info("Running cases",
		zap.Int("count", len(cases)),
		zap.String("engine", cfg.Browser.Engine),
		zap.String("base_url", cfg.Target.BaseURL),
		zap.Int("concurrency", cfg.Runner.Concurrency),
	)
	return suite.Run(ctx, cases)
}

// printResults writes one line per result followed by a summary.
func printResults(w io.Writer, results []runner.Result) {
	var passed, failed, errored int
	for _, res := range results {
		switch res.Status {
		case runner.StatusPassed:
			passed++
		case runner.StatusFailed:
			failed++
		default:
			errored++
		}

		line := fmt.Sprintf("%-7s %s (%s)", res.Status, res.Case, res.Duration.Round(time.Millisecond))
		if !res.Passed() && res.Message != "" {
			line += ": " + res.Message
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d errored\n", passed, failed, errored)
}
