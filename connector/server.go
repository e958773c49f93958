// Package connector implements the Connector service handlers: capability
// advertisement, function dispatch and script gating.
package connector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hugr-lab/qlik-sse-go/function"
	"github.com/hugr-lab/qlik-sse-go/internal/recovery"
	"github.com/hugr-lab/qlik-sse-go/registry"
	"github.com/hugr-lab/qlik-sse-go/rowstream"
	"github.com/hugr-lab/qlik-sse-go/script"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// Config contains the collaborators of a connector Server.
type Config struct {
	// Registry is the advertised function catalog. REQUIRED.
	Registry *registry.Registry

	// Handlers binds every registry id to its implementation. REQUIRED.
	Handlers *function.Table

	// Engine evaluates scripts. OPTIONAL: when nil, script evaluation is
	// disabled and AllowScript is advertised as false.
	Engine script.Engine

	// Plugin carries the plugin identity and the AllowScript flag.
	Plugin registry.PluginInfo

	// Logger for call logging. OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger

	// BundleSize is the maximum number of rows per response chunk.
	// OPTIONAL: uses rowstream.DefaultBundleSize if 0.
	BundleSize int

	// Hook observes every dispatched call. OPTIONAL.
	Hook DispatchHook
}

// Server implements wire.ConnectorServer.
type Server struct {
	registry   *registry.Registry
	handlers   *function.Table
	engine     script.Engine
	plugin     registry.PluginInfo
	logger     *slog.Logger
	bundleSize int
	hook       DispatchHook
}

var _ wire.ConnectorServer = (*Server)(nil)

// NewServer validates config and creates a Server.
// Every function in the registry must have a bound handler.
func NewServer(config Config) (*Server, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}
	if config.Handlers == nil {
		return nil, fmt.Errorf("%w: handler table is required", ErrInvalidConfig)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, d := range config.Registry.Functions() {
		if _, err := config.Handlers.Lookup(d.ID); err != nil {
			return nil, fmt.Errorf("%w: function %s (%d) has no handler", ErrInvalidConfig, d.Name, d.ID)
		}
	}
	for _, id := range config.Handlers.IDs() {
		if _, err := config.Registry.Describe(id); err != nil {
			logger.Warn("Handler bound to unregistered function id, ignoring", "function_id", id)
		}
	}

	hook := config.Hook
	if hook == nil {
		hook = noopHook{}
	}

	return &Server{
		registry:   config.Registry,
		handlers:   config.Handlers,
		engine:     config.Engine,
		plugin:     config.Plugin,
		logger:     logger,
		bundleSize: config.BundleSize,
		hook:       hook,
	}, nil
}

// GetCapabilities returns the plugin identity and function catalog.
// Every call returns the same content.
func (s *Server) GetCapabilities(ctx context.Context, _ *wire.Empty) (*wire.Capabilities, error) {
	info := s.plugin
	info.AllowScript = info.AllowScript && s.engine != nil

	caps := s.registry.Capabilities(info)
	s.logger.Debug("Capabilities requested",
		"call_id", CallIDFromContext(ctx),
		"functions", len(caps.Functions),
		"allow_script", caps.AllowScript,
	)
	return caps, nil
}

type callFunc func(ctx context.Context, in *rowstream.Reader, out *rowstream.Writer) error

type rowStream interface {
	rowstream.Source
	rowstream.Sink
	Context() context.Context
}

// dispatch runs one call: it wires the row reader and writer to the stream,
// reports the call to the hook and maps the outcome to a status.
func (s *Server) dispatch(ctx context.Context, stream rowStream, info CallInfo, arity int, run callFunc) (err error) {
	if info.CallID == "" {
		ctx = EnrichContext(ctx)
		info.CallID = CallIDFromContext(ctx)
	}
	info.Metadata = textMetadata(ctx)
	if common, cerr := wire.CommonHeader.DecodeIncoming(ctx); cerr == nil {
		info.AppID = common.AppID
		info.UserID = common.UserID
	}

	logger := s.logger.With(
		"call_id", info.CallID,
		"method", info.Method,
		"function_id", info.FunctionID,
		"function_type", info.FunctionType.String(),
	)
	if info.FunctionName != "" {
		logger = logger.With("function", info.FunctionName)
	}
	logger.Debug("Call started", "app_id", info.AppID, "user_id", info.UserID)

	stats := &rowstream.Stats{}
	var token HookToken
	recovery.Recover(logger, "OnCallStart", func() {
		ctx, token = s.hook.OnCallStart(ctx, info)
	})
	defer func() {
		recovery.Recover(logger, "OnCallEnd", func() {
			s.hook.OnCallEnd(ctx, token, info, stats, err)
		})
	}()

	in := rowstream.NewReader(stream,
		rowstream.WithArity(arity),
		rowstream.WithInputStats(stats),
		rowstream.WithContext(ctx),
	)
	out := rowstream.NewWriter(stream,
		rowstream.WithBundleSize(s.bundleSize),
		rowstream.WithOutputStats(stats),
	)

	err = recovery.RecoverToError(logger, info.Method, func() error {
		return run(ctx, in, out)
	})
	if err == nil {
		err = out.Close()
	}
	if err != nil {
		err = toStatus(err)
		if isTransportError(err) {
			logger.Debug("Call aborted", "error", err)
		} else {
			logger.Error("Call failed", "error", err)
		}
		return err
	}

	logger.Debug("Call completed",
		"rows_in", stats.InputRows(),
		"rows_out", stats.OutputRows(),
		"chunks_out", stats.OutputChunks(),
	)
	return nil
}
