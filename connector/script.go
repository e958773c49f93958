package connector

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/script"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// EvaluateScript gates a script call on its function type. Aggregation and
// tensor scripts are forwarded with their header unmodified to the script
// engine; every other type fails with Unimplemented naming the type.
func (s *Server) EvaluateScript(stream wire.EvaluateScriptServer) error {
	ctx := stream.Context()

	header, err := wire.ScriptHeader.DecodeIncoming(ctx)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	if err := script.Classify(header.FunctionType); err != nil {
		s.logger.Info("Script rejected",
			"call_id", CallIDFromContext(ctx),
			"function_type", header.FunctionType.String(),
		)
		return status.Error(codes.Unimplemented, err.Error())
	}
	if s.engine == nil {
		return status.Error(codes.Unimplemented, "script evaluation is not enabled in this plugin")
	}

	info := CallInfo{
		Method:       MethodEvaluateScript,
		CallID:       CallIDFromContext(ctx),
		FunctionID:   -1,
		FunctionType: header.FunctionType,
	}
	return s.dispatch(ctx, stream, info, len(header.Params),
		func(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error {
			return s.engine.Evaluate(ctx, header, in, out)
		})
}
