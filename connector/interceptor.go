package connector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/qlik-sse-go/internal/recovery"
)

// UnaryServerInterceptor creates a gRPC unary interceptor that assigns a call
// id, logs the call and converts panics into Internal errors.
func UnaryServerInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx = EnrichContext(ctx)
		start := time.Now()

		resp, err := recovery.RecoverToValue(logger, info.FullMethod, func() (any, error) {
			return handler(ctx, req)
		})

		logCall(ctx, logger, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor creates a gRPC stream interceptor that assigns a
// call id, logs the call and converts panics into Internal errors.
func StreamServerInterceptor(logger *slog.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx := EnrichContext(ss.Context())
		wrappedStream := &wrappedServerStream{
			ServerStream: ss,
			ctx:          ctx,
		}
		start := time.Now()

		err := recovery.RecoverToError(logger, info.FullMethod, func() error {
			return handler(srv, wrappedStream)
		})

		logCall(ctx, logger, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, logger *slog.Logger, method string, start time.Time, err error) {
	attrs := []any{
		"call_id", CallIDFromContext(ctx),
		"method", method,
		"duration", time.Since(start),
	}
	if meta := CallMetaFromContext(ctx); meta != nil && meta.Peer != "" {
		attrs = append(attrs, "peer", meta.Peer)
	}
	if err != nil {
		attrs = append(attrs, "code", status.Code(err).String())
	}
	logger.Debug("RPC finished", attrs...)
}

// Limiter bounds the number of calls served concurrently. A call holds its
// slot for its whole lifetime; waiting callers give up when their context ends.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a limiter admitting n concurrent calls.
func NewLimiter(n int64) *Limiter {
	return &Limiter{sem: semaphore.NewWeighted(n)}
}

// UnaryServerInterceptor returns an interceptor enforcing the limit on unary calls.
func (l *Limiter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, status.FromContextError(err).Err()
		}
		defer l.sem.Release(1)
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns an interceptor enforcing the limit on streaming calls.
func (l *Limiter) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		_ *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := l.sem.Acquire(ss.Context(), 1); err != nil {
			return status.FromContextError(err).Err()
		}
		defer l.sem.Release(1)
		return handler(srv, ss)
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's custom context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
