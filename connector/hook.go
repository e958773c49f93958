package connector

import (
	"context"

	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// Method names reported in CallInfo.Method.
const (
	MethodExecuteFunction = "ExecuteFunction"
	MethodEvaluateScript  = "EvaluateScript"
)

// DispatchHook provides observability callpoints around function and script calls.
// Implementations must be safe for concurrent use.
type DispatchHook interface {
	OnCallStart(ctx context.Context, info CallInfo) (context.Context, HookToken)
	OnCallEnd(ctx context.Context, token HookToken, info CallInfo, stats *rowstream.Stats, err error)
}

// HookToken is an opaque value returned by OnCallStart and passed back to
// OnCallEnd. Only meaningful to the DispatchHook that created it.
type HookToken any

// CallInfo describes one dispatched call.
type CallInfo struct {
	Method       string            // MethodExecuteFunction or MethodEvaluateScript
	CallID       string            // Server-assigned call identifier
	FunctionID   int32             // Registered function id; -1 for scripts
	FunctionName string            // Registered function name; empty for scripts
	FunctionType wire.FunctionType // Declared or script function type
	AppID        string            // From the common request header, when sent
	UserID       string            // From the common request header, when sent
	Metadata     map[string]string // Text (non-binary) call metadata, for trace propagation
}

type noopHook struct{}

func (noopHook) OnCallStart(ctx context.Context, _ CallInfo) (context.Context, HookToken) {
	return ctx, nil
}

func (noopHook) OnCallEnd(context.Context, HookToken, CallInfo, *rowstream.Stats, error) {}

// MultiHook fans out to several hooks. Start callbacks run in order and end
// callbacks in reverse order.
func MultiHook(hooks ...DispatchHook) DispatchHook {
	return multiHook(hooks)
}

type multiHook []DispatchHook

func (m multiHook) OnCallStart(ctx context.Context, info CallInfo) (context.Context, HookToken) {
	tokens := make([]HookToken, len(m))
	for i, h := range m {
		ctx, tokens[i] = h.OnCallStart(ctx, info)
	}
	return ctx, tokens
}

func (m multiHook) OnCallEnd(ctx context.Context, token HookToken, info CallInfo, stats *rowstream.Stats, err error) {
	tokens, _ := token.([]HookToken)
	for i := len(m) - 1; i >= 0; i-- {
		var tok HookToken
		if i < len(tokens) {
			tok = tokens[i]
		}
		m[i].OnCallEnd(ctx, tok, info, stats, err)
	}
}
