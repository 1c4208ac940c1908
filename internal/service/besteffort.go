package service

import (
	"context"
	"log/slog"
	"time"
)

// BestEffortCall describes a remote call whose failure must not affect the caller.
type BestEffortCall struct {
	Name    string
	Timeout time.Duration
	Logger  *slog.Logger
	Fn      func(ctx context.Context) error
}

// BestEffort runs call.Fn once, bounded by call.Timeout and detached from the caller's
// cancellation. A failure is logged and swallowed. It reports whether Fn succeeded.
func BestEffort(ctx context.Context, call BestEffortCall) bool {
	if call.Fn == nil {
		return false
	}
	logger := call.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx := context.WithoutCancel(ctx)
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, call.Timeout)
		defer cancel()
	}

	if err := call.Fn(runCtx); err != nil {
		logger.WarnContext(ctx, "best-effort call failed", "call", call.Name, "error", err)
		return false
	}
	return true
}
