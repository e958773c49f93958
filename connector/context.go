package connector

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const (
	callMetaKey contextKey = iota
)

// CallMeta is the per-call data attached to the context by EnrichContext.
type CallMeta struct {
	CallID string
	Peer   string
}

// WithCallMeta returns a context carrying meta.
func WithCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey, &meta)
}

// CallMetaFromContext returns the call meta, or nil when the context was not enriched.
func CallMetaFromContext(ctx context.Context) *CallMeta {
	meta, _ := ctx.Value(callMetaKey).(*CallMeta)
	return meta
}

// CallIDFromContext returns the call id, or empty string if not set.
func CallIDFromContext(ctx context.Context) string {
	meta := CallMetaFromContext(ctx)
	if meta == nil {
		return ""
	}
	return meta.CallID
}

// EnrichContext assigns a call id and records the remote peer.
// If the context is already enriched, it is returned unchanged.
func EnrichContext(ctx context.Context) context.Context {
	if CallMetaFromContext(ctx) != nil {
		return ctx
	}

	meta := CallMeta{CallID: uuid.NewString()}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		meta.Peer = p.Addr.String()
	}
	return WithCallMeta(ctx, meta)
}

// textMetadata returns the non-binary incoming metadata as a flat map.
func textMetadata(ctx context.Context) map[string]string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, vals := range md {
		if strings.HasSuffix(k, "-bin") || len(vals) == 0 {
			continue
		}
		out[k] = vals[0]
	}
	return out
}
