package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/flowrunner/internal/flow"
)

// Suite runs many cases, each on its own session, with bounded concurrency
// and optional spacing between browser launches.
type Suite struct {
	runner         *Runner
	concurrency    int
	launchInterval time.Duration
	logger         *zap.Logger
}

// NewSuite creates a Suite. Concurrency below one is treated as one.
func NewSuite(r *Runner, concurrency int, launchInterval time.Duration, logger *zap.Logger) *Suite {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{runner: r, concurrency: concurrency, launchInterval: launchInterval, logger: logger.Named("suite")}
}

// Run executes every case and returns results in input order. A failing
// case does not stop the others; a canceled context does.
func (s *Suite) Run(ctx context.Context, cases []flow.TestCase) []Result {
	results := make([]Result, len(cases))

	limit := rate.Inf
	if s.launchInterval > 0 {
		limit = rate.Every(s.launchInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	s.logger.Info("Starting suite.", zap.Int("cases", len(cases)), zap.Int("concurrency", s.concurrency))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, tc := range cases {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				results[i] = Result{
					Case:    tc.Name(),
					Status:  StatusErrored,
					Err:     err,
					Message: fmt.Sprintf("not started: %v", err),
					Started: time.Now(),
				}
				return nil
			}
			results[i] = s.runner.Run(ctx, tc)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Suite finished.", zap.Int("exit_code", ExitCode(results)))
	return results
}
