// Package async runs work detached from the request that triggered it.
// The Slack webhook must acknowledge within three seconds, so event
// processing continues here after the handler has returned.
package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine on a fresh background context
// so it survives cancellation of the inbound request. The request logger
// is carried over; errors and panics are logged, never propagated.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.From(bgCtx).Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logging.From(bgCtx).Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}
