package connector

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/qlik-sse-go/wire"
)

// ExecuteFunction routes a call to the handler registered under the id in
// the function request header.
//
// Protocol:
//   - the qlik-functionrequestheader-bin metadata names the function
//   - the client streams parameter rows; every row carries at least one cell
//     per declared parameter, in parameter name order
//   - the server streams result rows, optionally preceded by a table
//     description in the response header
//
// A missing or undecodable header fails with InvalidArgument and an unknown
// id with NotFound, both before any row is read.
func (s *Server) ExecuteFunction(stream wire.ExecuteFunctionServer) error {
	ctx := stream.Context()

	header, err := wire.FunctionHeader.DecodeIncoming(ctx)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	desc, err := s.registry.Describe(header.FunctionID)
	if err != nil {
		s.logger.Warn("Unknown function requested",
			"call_id", CallIDFromContext(ctx),
			"function_id", header.FunctionID,
		)
		return status.Errorf(codes.NotFound, "function %d is not registered", header.FunctionID)
	}
	handler, err := s.handlers.Lookup(desc.ID)
	if err != nil {
		return toStatus(err)
	}

	info := CallInfo{
		Method:       MethodExecuteFunction,
		CallID:       CallIDFromContext(ctx),
		FunctionID:   desc.ID,
		FunctionName: desc.Name,
		FunctionType: desc.Kind,
	}
	return s.dispatch(ctx, stream, info, desc.Arity(), handler.Execute)
}
