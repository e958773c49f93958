package sse_test

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/qlik-sse-go"
	"github.com/hugr-lab/qlik-sse-go/function"
	"github.com/hugr-lab/qlik-sse-go/internal/compress"
	"github.com/hugr-lab/qlik-sse-go/plugins/sentiment"
	"github.com/hugr-lab/qlik-sse-go/registry"
	"github.com/hugr-lab/qlik-sse-go/script"
	"github.com/hugr-lab/qlik-sse-go/wire"
)

// testServer wraps a plugin server for integration testing.
type testServer struct {
	grpcServer *grpc.Server
	listener   net.Listener
	address    string
}

// stubAnalyzer scores every text as mildly positive.
var stubAnalyzer = sentiment.AnalyzerFunc(func(string) (sentiment.Scores, error) {
	return sentiment.Scores{Neu: 0.5, Pos: 0.5, Compound: 0.25}, nil
})

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pluginConfig serves the bundled definition file with the sentiment functions.
func pluginConfig(t testing.TB) sse.ServerConfig {
	t.Helper()

	reg, err := registry.Load("cmd/sse-sentiment/functions.json")
	if err != nil {
		t.Fatalf("Failed to load definitions: %v", err)
	}
	return sse.ServerConfig{
		Registry:     reg,
		Handlers:     sentiment.Handlers(stubAnalyzer, nil),
		ScriptEngine: script.NewDuckDB(script.WithInitSQL("SET threads = 1")),
		Plugin:       registry.PluginInfo{Identifier: "Sentiment", Version: "v1.1.0", AllowScript: true},
		Logger:       quietLogger(),
	}
}

// newTestServer creates and starts a test plugin server.
func newTestServer(t testing.TB, config sse.ServerConfig) *testServer {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}

	grpcServer := grpc.NewServer(sse.ServerOptions(config)...)
	if err := sse.NewServer(grpcServer, config); err != nil {
		t.Fatalf("Failed to register server: %v", err)
	}

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	s := &testServer{
		grpcServer: grpcServer,
		listener:   lis,
		address:    lis.Addr().String(),
	}
	t.Cleanup(s.stop)
	return s
}

// stop gracefully stops the test server.
func (s *testServer) stop() {
	s.grpcServer.GracefulStop()
	s.listener.Close()
}

func dial(t testing.TB, address string, opts ...grpc.DialOption) wire.ConnectorClient {
	t.Helper()

	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return wire.NewConnectorClient(conn)
}

type result struct {
	rows  []wire.Row
	table *wire.TableDescription
}

func collect(t *testing.T, stream grpc.BidiStreamingClient[wire.BundledRows, wire.BundledRows], rows ...wire.Row) (result, error) {
	t.Helper()

	if len(rows) > 0 {
		if err := stream.Send(&wire.BundledRows{Rows: rows}); err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("Send failed: %v", err)
		}
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("CloseSend failed: %v", err)
	}

	var res result
	for {
		b, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, err
		}
		res.rows = append(res.rows, b.Rows...)
	}
	if md, err := stream.Header(); err == nil {
		if td, err := wire.TableHeader.Decode(md); err == nil {
			res.table = td
		}
	}
	return res, nil
}

func execute(t *testing.T, client wire.ConnectorClient, id int32, rows []wire.Row, opts ...grpc.CallOption) (result, error) {
	t.Helper()

	ctx, err := wire.FunctionHeader.AppendOutgoing(context.Background(), &wire.FunctionRequestHeader{FunctionID: id})
	if err != nil {
		t.Fatalf("AppendOutgoing failed: %v", err)
	}
	stream, err := client.ExecuteFunction(ctx, opts...)
	if err != nil {
		t.Fatalf("ExecuteFunction failed: %v", err)
	}
	return collect(t, stream, rows...)
}

// TestNewServerValidation tests ServerConfig validation.
func TestNewServerValidation(t *testing.T) {
	valid := pluginConfig(t)

	tests := []struct {
		name   string
		mutate func(*sse.ServerConfig)
	}{
		{"nil registry", func(c *sse.ServerConfig) { c.Registry = nil }},
		{"nil handlers", func(c *sse.ServerConfig) { c.Handlers = nil }},
		{"negative workers", func(c *sse.ServerConfig) { c.MaxConcurrentCalls = -1 }},
		{"negative bundle size", func(c *sse.ServerConfig) { c.BundleSize = -5 }},
		{"missing handler", func(c *sse.ServerConfig) { c.Handlers = function.NewTable() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			err := sse.NewServer(grpc.NewServer(), config)
			if !errors.Is(err, sse.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if err := sse.NewServer(grpc.NewServer(), valid); err != nil {
		t.Errorf("Expected valid config to register, got %v", err)
	}
}

// TestSentimentPlugin exercises the bundled plugin over a real connection.
func TestSentimentPlugin(t *testing.T) {
	server := newTestServer(t, pluginConfig(t))
	client := dial(t, server.address)

	t.Run("Capabilities", func(t *testing.T) {
		caps, err := client.GetCapabilities(context.Background(), &wire.Empty{})
		if err != nil {
			t.Fatalf("GetCapabilities failed: %v", err)
		}
		if caps.PluginIdentifier != "Sentiment" || caps.PluginVersion != "v1.1.0" || !caps.AllowScript {
			t.Errorf("Unexpected plugin info: %+v", caps)
		}
		if len(caps.Functions) != 4 {
			t.Fatalf("Expected 4 functions, got %d", len(caps.Functions))
		}
		if caps.Functions[1].Name != "SentimentScript" || caps.Functions[1].FunctionType != wire.FunctionTypeTensor {
			t.Errorf("Unexpected second function: %+v", caps.Functions[1])
		}
	})

	t.Run("Sentiment", func(t *testing.T) {
		res, err := execute(t, client, sentiment.FunctionSentiment, []wire.Row{
			wire.NewRow(wire.StringDual("nice"), wire.StringDual("comp")),
			wire.NewRow(wire.StringDual("nice"), wire.StringDual("all")),
		})
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if len(res.rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(res.rows))
		}
		if got := res.rows[0].Duals[0].StrData; got != "0.25" {
			t.Errorf("Expected compound 0.25, got %q", got)
		}
		if got := res.rows[1].Duals[0].StrData; got != "neg: 0.0| neu: 0.5| pos: 0.5| compound: 0.25|" {
			t.Errorf("Unexpected all scores %q", got)
		}
	})

	t.Run("CleanTweetScriptCompressed", func(t *testing.T) {
		res, err := execute(t, client, sentiment.FunctionCleanTweetScript, []wire.Row{
			wire.NewRow(wire.NumericDual(1), wire.StringDual("RT @qlik: SSE rocks!! https://qlik.com")),
		}, grpc.UseCompressor(compress.Name))
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if res.table == nil || res.table.Name != sentiment.CleanTweetTable {
			t.Errorf("Expected table description %s, got %+v", sentiment.CleanTweetTable, res.table)
		}
		if len(res.rows) != 1 || res.rows[0].Duals[0].NumData != 1 || res.rows[0].Duals[1].StrData != "SSE rocks" {
			t.Errorf("Unexpected rows: %+v", res.rows)
		}
	})

	t.Run("UnknownFunction", func(t *testing.T) {
		if _, err := execute(t, client, 42, nil); status.Code(err) != codes.NotFound {
			t.Errorf("Expected NotFound, got %v", err)
		}
	})

	t.Run("Script", func(t *testing.T) {
		ctx, err := wire.ScriptHeader.AppendOutgoing(context.Background(), &wire.ScriptRequestHeader{
			Script:       "SELECT avg(x) FROM args",
			FunctionType: wire.FunctionTypeAggregation,
			ReturnType:   wire.DataTypeNumeric,
			Params:       []wire.Parameter{{Name: "x", DataType: wire.DataTypeNumeric}},
		})
		if err != nil {
			t.Fatalf("AppendOutgoing failed: %v", err)
		}
		stream, err := client.EvaluateScript(ctx)
		if err != nil {
			t.Fatalf("EvaluateScript failed: %v", err)
		}
		res, err := collect(t, stream,
			wire.NewRow(wire.NumericDual(2)),
			wire.NewRow(wire.NumericDual(4)),
		)
		if err != nil {
			t.Fatalf("Script failed: %v", err)
		}
		if len(res.rows) != 1 || res.rows[0].Duals[0].NumData != 3 {
			t.Errorf("Expected average 3, got %+v", res.rows)
		}
	})

	t.Run("ScalarScript", func(t *testing.T) {
		ctx, err := wire.ScriptHeader.AppendOutgoing(context.Background(), &wire.ScriptRequestHeader{
			Script:       "x",
			FunctionType: wire.FunctionTypeScalar,
		})
		if err != nil {
			t.Fatalf("AppendOutgoing failed: %v", err)
		}
		stream, err := client.EvaluateScript(ctx)
		if err != nil {
			t.Fatalf("EvaluateScript failed: %v", err)
		}
		_, err = collect(t, stream)
		if st, _ := status.FromError(err); st.Code() != codes.Unimplemented ||
			st.Message() != "Function type Scalar is not supported in this plugin." {
			t.Errorf("Expected Unimplemented for scalar script, got %v", err)
		}
	})
}

// TestWithoutScriptEngine tests that AllowScript follows the engine.
func TestWithoutScriptEngine(t *testing.T) {
	config := pluginConfig(t)
	config.ScriptEngine = nil
	server := newTestServer(t, config)

	caps, err := dial(t, server.address).GetCapabilities(context.Background(), &wire.Empty{})
	if err != nil {
		t.Fatalf("GetCapabilities failed: %v", err)
	}
	if caps.AllowScript {
		t.Error("Expected AllowScript false without an engine")
	}
}

// TestMaxMessageSize tests that oversized requests are refused.
func TestMaxMessageSize(t *testing.T) {
	config := pluginConfig(t)
	config.MaxMessageSize = 1024
	server := newTestServer(t, config)
	client := dial(t, server.address)

	big := make([]byte, 4096)
	for i := range big {
		big[i] = 'a'
	}
	_, err := execute(t, client, sentiment.FunctionCleanTweet, []wire.Row{wire.NewRow(wire.StringDual(string(big)))})
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("Expected ResourceExhausted, got %v", err)
	}
}
