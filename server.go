package sse

import (
	"fmt"
	"log/slog"
	"os"

	"google.golang.org/grpc"

	"github.com/hugr-lab/qlik-sse-go/connector"
	"github.com/hugr-lab/qlik-sse-go/internal/compress"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// NewServer registers the Connector service on the provided gRPC server.
// This is the main entry point for the sse package.
//
// The function:
//  1. Validates the ServerConfig
//  2. Creates the Connector service implementation
//  3. Registers it on grpcServer
//
// Returns error if config is invalid (e.g., nil Registry or a registered
// function without handler). Does NOT start the gRPC server - user controls
// lifecycle via grpcServer.Serve().
//
// The server must be created with ServerOptions(config):
//
//	grpcServer := grpc.NewServer(sse.ServerOptions(config)...)
//	err := sse.NewServer(grpcServer, config)
func NewServer(grpcServer *grpc.Server, config ServerConfig) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := resolveLogger(config)

	srv, err := connector.NewServer(connector.Config{
		Registry:   config.Registry,
		Handlers:   config.Handlers,
		Engine:     config.ScriptEngine,
		Plugin:     config.Plugin,
		Logger:     logger,
		BundleSize: config.BundleSize,
		Hook:       config.Hook,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	wire.RegisterConnectorServer(grpcServer, srv)

	logger.Info("Qlik SSE plugin registered",
		"plugin", config.Plugin.Identifier,
		"version", config.Plugin.Version,
		"functions", config.Registry.Len(),
		"allow_script", config.Plugin.AllowScript && config.ScriptEngine != nil,
		"tls", config.Credentials != nil,
	)
	return nil
}

// validateConfig checks that required ServerConfig fields are valid.
func validateConfig(config ServerConfig) error {
	if config.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if config.Handlers == nil {
		return fmt.Errorf("handler table is required")
	}
	if config.MaxConcurrentCalls < 0 {
		return fmt.Errorf("max concurrent calls must not be negative, got %d", config.MaxConcurrentCalls)
	}
	if config.BundleSize < 0 {
		return fmt.Errorf("bundle size must not be negative, got %d", config.BundleSize)
	}
	return nil
}

func resolveLogger(config ServerConfig) *slog.Logger {
	if config.Logger != nil {
		return config.Logger
	}
	if config.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *config.LogLevel}))
	}
	return slog.Default()
}

// ServerOptions returns the gRPC server options the Connector service needs:
// the wire codec, call logging and panic recovery, the worker limit, message
// size limits, TLS credentials and zstd compression support.
//
// Example:
//
//	opts := sse.ServerOptions(config)
//	grpcServer := grpc.NewServer(opts...)
//	sse.NewServer(grpcServer, config)
func ServerOptions(config ServerConfig) []grpc.ServerOption {
	compress.Register()

	logger := resolveLogger(config)

	workers := config.MaxConcurrentCalls
	if workers <= 0 {
		workers = DefaultMaxConcurrentCalls
	}
	limiter := connector.NewLimiter(int64(workers))

	opts := []grpc.ServerOption{
		wire.ServerCodec(),
		grpc.ChainUnaryInterceptor(
			connector.UnaryServerInterceptor(logger),
			limiter.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			connector.StreamServerInterceptor(logger),
			limiter.StreamServerInterceptor(),
		),
	}

	if config.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(config.MaxMessageSize),
			grpc.MaxSendMsgSize(config.MaxMessageSize),
		)
	}

	if config.Credentials != nil {
		opts = append(opts, grpc.Creds(config.Credentials))
	}

	return opts
}
