package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/dockagent/config"
	"github.com/mohammad-safakhou/dockagent/internal/agent/core"
	"github.com/mohammad-safakhou/dockagent/internal/capability"
)

// Runner executes the concrete work for one tool invocation. Runners report
// recoverable failures as "Error: ..." observations; a returned error is
// treated as a runner fault and degraded to an observation by the Invoker.
type Runner func(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error)

// Metrics aggregates optional telemetry callbacks.
type Metrics struct {
	Duration func(ctx context.Context, tool string, d time.Duration, success bool)
	Timeout  func(ctx context.Context, tool string)
}

// Option configures invoker behaviour.
type Option func(*Invoker)

// WithMetrics sets invoker metrics callbacks.
func WithMetrics(m Metrics) Option {
	return func(inv *Invoker) {
		inv.metrics = m
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(inv *Invoker) {
		inv.logger = logger
	}
}

// Invoker dispatches tool calls to a runner table under per-tool deadlines.
// It implements core.ToolInvoker: soft failures and missing runners come back
// as observations, a blown deadline comes back as core.ErrToolTimeout, and
// caller cancellation propagates unchanged.
type Invoker struct {
	cfg     config.AgentConfig
	runners map[string]Runner
	logger  *log.Logger
	metrics Metrics
}

// New creates an Invoker over the supplied runner table.
func New(cfg config.AgentConfig, runners map[string]Runner, opts ...Option) *Invoker {
	inv := &Invoker{
		cfg:     cfg,
		runners: runners,
		logger:  log.New(log.Writer(), "[EXEC] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Timeout returns the deadline for one invocation of tool: its advertised
// estimate scaled by the configured multiplier, never below the floor.
func (inv *Invoker) Timeout(tool capability.Tool) time.Duration {
	multiplier := inv.cfg.ToolTimeoutMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	floor := inv.cfg.ToolTimeoutFloor
	if floor <= 0 {
		floor = 30 * time.Second
	}
	d := time.Duration(tool.EstimatedTime * multiplier * float64(time.Second))
	if d < floor {
		d = floor
	}
	return d
}

// Invoke runs one tool call to completion or deadline.
func (inv *Invoker) Invoke(ctx context.Context, call core.ToolCall) (core.ToolOutcome, error) {
	runner, ok := inv.runners[call.Tool.Name]
	if !ok {
		// Registered metadata without an execution path. Soft failure so the
		// decision engine can route around it.
		return core.ToolOutcome{Observation: fmt.Sprintf("Tool %s not yet implemented", call.Tool.Name)}, nil
	}

	timeout := inv.Timeout(call.Tool)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	outcome, err := runGuarded(runCtx, runner, call)
	elapsed := time.Since(started)

	if err != nil {
		inv.observe(ctx, call.Tool.Name, elapsed, false)
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			inv.logger.Printf("tool %s exceeded its %v deadline", call.Tool.Name, timeout)
			if inv.metrics.Timeout != nil {
				inv.metrics.Timeout(ctx, call.Tool.Name)
			}
			return core.ToolOutcome{}, fmt.Errorf("tool %s exceeded %v: %w", call.Tool.Name, timeout, core.ErrToolTimeout)
		case ctx.Err() != nil:
			return core.ToolOutcome{}, ctx.Err()
		default:
			inv.logger.Printf("tool %s failed: %v", call.Tool.Name, err)
			return core.ToolOutcome{Observation: fmt.Sprintf("Error: %v", err)}, nil
		}
	}

	inv.observe(ctx, call.Tool.Name, elapsed, !strings.HasPrefix(outcome.Observation, "Error"))
	return outcome, nil
}

// runGuarded runs the runner on its own goroutine so a runner that ignores
// its context cannot wedge the session past the deadline.
func runGuarded(ctx context.Context, runner Runner, call core.ToolCall) (core.ToolOutcome, error) {
	type reply struct {
		outcome core.ToolOutcome
		err     error
	}
	done := make(chan reply, 1)
	go func() {
		outcome, err := runner(ctx, call)
		done <- reply{outcome: outcome, err: err}
	}()
	select {
	case r := <-done:
		return r.outcome, r.err
	case <-ctx.Done():
		return core.ToolOutcome{}, ctx.Err()
	}
}

func (inv *Invoker) observe(ctx context.Context, tool string, d time.Duration, success bool) {
	if inv.metrics.Duration != nil {
		inv.metrics.Duration(ctx, tool, d, success)
	}
}
