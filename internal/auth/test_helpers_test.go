package auth

import (
	"io"
	"log/slog"
)

// discardLogger returns a logger that drops everything, for tests that
// exercise code paths with mandatory logging.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
