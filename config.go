package sse

import (
	"errors"
	"log/slog"

	"google.golang.org/grpc/credentials"

	"github.com/hugr-lab/qlik-sse-go/connector"
	"github.com/hugr-lab/qlik-sse-go/function"
	"github.com/hugr-lab/qlik-sse-go/registry"
	"github.com/hugr-lab/qlik-sse-go/script"
)

// DefaultMaxConcurrentCalls is the number of calls served at once when
// ServerConfig.MaxConcurrentCalls is 0.
const DefaultMaxConcurrentCalls = 10

// ServerConfig contains configuration for a Qlik SSE plugin server.
type ServerConfig struct {
	// Registry is the advertised function catalog.
	// REQUIRED: MUST NOT be nil.
	Registry *registry.Registry

	// Handlers binds every registered function id to its implementation.
	// REQUIRED: MUST NOT be nil and MUST cover every function in Registry.
	Handlers *function.Table

	// ScriptEngine evaluates aggregation and tensor scripts.
	// OPTIONAL: If nil, script evaluation is disabled.
	ScriptEngine script.Engine

	// Plugin carries the plugin identifier, version and AllowScript flag.
	Plugin registry.PluginInfo

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// MaxConcurrentCalls bounds the number of calls served at once. Further
	// calls wait for a free slot.
	// OPTIONAL: If 0, uses DefaultMaxConcurrentCalls.
	MaxConcurrentCalls int

	// MaxMessageSize sets maximum gRPC message size in bytes.
	// OPTIONAL: If 0, uses gRPC default (4MB).
	MaxMessageSize int

	// BundleSize is the maximum number of rows per response bundle.
	// OPTIONAL: If 0, uses rowstream.DefaultBundleSize.
	BundleSize int

	// Hook observes every function and script call, for example
	// telemetry.NewHook.
	// OPTIONAL: If nil, calls are not observed.
	Hook connector.DispatchHook

	// Credentials secures the listener, see LoadTLSCredentials.
	// OPTIONAL: If nil, the server runs without TLS.
	Credentials credentials.TransportCredentials
}

// Standard errors returned by the sse package.
var (
	// ErrInvalidConfig indicates ServerConfig validation failed.
	ErrInvalidConfig = errors.New("invalid server config")

	// ErrInvalidCertificates indicates the TLS material could not be loaded.
	ErrInvalidCertificates = errors.New("invalid certificates")
)
