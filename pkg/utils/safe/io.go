// Package safe wraps I/O calls whose errors have no caller that can act
// on them, such as response body closes and webhook ack writes. Failures
// are logged and swallowed.
package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/potenza-io/opsbot/pkg/utils/logging"
)

// Close closes an io.Closer, tolerating nil, and logs a failure
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("failed to close", slog.Any("error", err))
	}
}

// Write writes data to an io.Writer, tolerating nil, and logs a failure.
// Used for HTTP response bodies after the status line is already out.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Error("failed to write", slog.Any("error", err))
	}
}
