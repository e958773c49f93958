// Package recovery converts panics in plugin code into gRPC errors.
// A panicking function handler or script engine fails its own call and
// leaves the server running.
package recovery

import (
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoverToError runs fn and converts a panic into a codes.Internal error.
//
//	err := recovery.RecoverToError(logger, "ExecuteFunction", func() error {
//	    return handler.Execute(ctx, in, out)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// RecoverToValue is RecoverToError for functions returning a value.
// On panic the zero value is returned.
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
			var zero T
			result = zero
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}

// Recover runs fn and logs a panic without reporting it.
// Used for callbacks whose failure must not affect the call, such as dispatch hooks.
func Recover(logger *slog.Logger, operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, operation, r)
		}
	}()

	fn()
}

func logPanic(logger *slog.Logger, operation string, r any) {
	logger.Error("Panic recovered",
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
}
