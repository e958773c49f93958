// Package sse provides a high-level API for building Qlik Server-Side
// Extension (SSE) plugins: gRPC services that Qlik calls to run custom
// functions and scripts over streamed rows.
//
// The sse package simplifies building plugins by:
//   - Registering the Connector service on an existing grpc.Server
//   - Loading the function catalog from a definition file
//   - Dispatching function calls by id to registered handlers
//   - Gating script evaluation by function type
//   - Reshaping the row stream into and out of response bundles
//
// # Quick Start
//
//	reg, err := registry.Load("functions.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handlers := function.NewTable().
//	    MustRegister(0, function.HandlerFunc(func(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error {
//	        for in.Next() {
//	            if err := out.WriteValues(in.Row().Duals[0]); err != nil {
//	                return err
//	            }
//	        }
//	        return in.Err()
//	    }))
//
//	config := sse.ServerConfig{
//	    Registry: reg,
//	    Handlers: handlers,
//	    Plugin:   registry.PluginInfo{Identifier: "Echo", Version: "v1.0.0"},
//	}
//	grpcServer := grpc.NewServer(sse.ServerOptions(config)...)
//	if err := sse.NewServer(grpcServer, config); err != nil {
//	    log.Fatal(err)
//	}
//	lis, _ := net.Listen("tcp", ":50055")
//	grpcServer.Serve(lis)
//
// # Server Lifecycle
//
// The package registers the Connector service on a user-provided grpc.Server
// but does NOT manage server lifecycle (start/stop/listen). Use ServerOptions
// to get the codec, interceptors, worker limit and TLS credentials the
// service expects, and stop the server with grpcServer.GracefulStop().
//
// # Scripts
//
// Aggregation and tensor scripts are forwarded to ServerConfig.ScriptEngine
// unmodified; scalar scripts are rejected with codes.Unimplemented. Without an
// engine, the plugin advertises AllowScript false.
//
// # Logging
//
// The package logs through ServerConfig.Logger, or slog.Default() when it is
// nil. Every call is logged with its call id and function id.
package sse
