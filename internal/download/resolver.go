// File: internal/download/resolver.go

// Package download acquires invoice PDFs from portal pages. The portals are
// inconsistent about how a document leaves the browser: sometimes a click
// starts a native download, sometimes it opens a viewer popup that only ever
// holds a blob URL. Rather than guessing, both acquisition strategies run
// against the same click and the first to produce a file wins.
package download

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/billfetch/billfetch-cli/internal/observability"
)

// ErrTimeout indicates no strategy produced a file before the deadline.
var ErrTimeout = errors.New("download timed out before any strategy produced a file")

// Strategy is one way of turning a triggered portal download into a file on
// disk. Arm installs any listeners that must exist before the trigger fires;
// Collect blocks until the strategy has written its file and returns the
// final path.
type Strategy interface {
	Name() string
	Arm(ctx context.Context) error
	Collect(ctx context.Context) (string, error)
}

// Outcome reports which strategy won and where the file landed.
type Outcome struct {
	Path     string
	Strategy string
}

// RaceError aggregates the failures of all strategies when none succeeded.
type RaceError struct {
	Failures map[string]error
}

func (e *RaceError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for name, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", name, err))
	}
	return "all download strategies failed (" + strings.Join(parts, "; ") + ")"
}

// Resolver races download strategies against a single trigger.
type Resolver struct {
	logger *zap.Logger
}

func NewResolver() *Resolver {
	return &Resolver{logger: observability.GetLogger().Named("download")}
}

type collectResult struct {
	strategy string
	path     string
	err      error
}

// Acquire arms every strategy, fires trigger exactly once, and waits for the
// first strategy to produce a file. Remaining strategies are cancelled as
// soon as one wins. If every strategy fails the combined reasons come back
// as a *RaceError; if the deadline passes first the error is ErrTimeout.
//
// A strategy that fails to arm is dropped from the race with a warning; the
// trigger never retries, so at least one strategy must arm.
func (r *Resolver) Acquire(ctx context.Context, timeout time.Duration, trigger func(ctx context.Context) error, strategies ...Strategy) (Outcome, error) {
	if len(strategies) == 0 {
		return Outcome{}, errors.New("no download strategies provided")
	}

	raceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	armed := make([]Strategy, 0, len(strategies))
	for _, s := range strategies {
		if err := s.Arm(raceCtx); err != nil {
			r.logger.Warn("Download strategy failed to arm, excluding it from the race.",
				zap.String("strategy", s.Name()), zap.Error(err))
			continue
		}
		armed = append(armed, s)
	}
	if len(armed) == 0 {
		return Outcome{}, errors.New("no download strategy could be armed")
	}

	if err := trigger(raceCtx); err != nil {
		return Outcome{}, fmt.Errorf("download trigger failed: %w", err)
	}

	// Buffered so losing goroutines can always deliver and exit.
	results := make(chan collectResult, len(armed))
	for _, s := range armed {
		go func(s Strategy) {
			path, err := s.Collect(raceCtx)
			results <- collectResult{strategy: s.Name(), path: path, err: err}
		}(s)
	}

	failures := make(map[string]error, len(armed))
	for pending := len(armed); pending > 0; pending-- {
		select {
		case res := <-results:
			if res.err == nil {
				cancel()
				r.logger.Info("Download resolved.",
					zap.String("strategy", res.strategy),
					zap.String("path", res.path))
				return Outcome{Path: res.path, Strategy: res.strategy}, nil
			}
			failures[res.strategy] = res.err
			r.logger.Debug("Download strategy failed.",
				zap.String("strategy", res.strategy), zap.Error(res.err))
		case <-raceCtx.Done():
			if ctx.Err() != nil {
				return Outcome{}, fmt.Errorf("download cancelled: %w", ctx.Err())
			}
			return Outcome{}, ErrTimeout
		}
	}

	if ctx.Err() != nil {
		return Outcome{}, fmt.Errorf("download cancelled: %w", ctx.Err())
	}

	// Losers that died only because the deadline hit are a timeout, not a
	// strategy failure.
	allDeadline := true
	for _, err := range failures {
		if !errors.Is(err, context.DeadlineExceeded) {
			allDeadline = false
			break
		}
	}
	if allDeadline && raceCtx.Err() != nil {
		return Outcome{}, ErrTimeout
	}
	return Outcome{}, &RaceError{Failures: failures}
}
