package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/hugr-lab/qlik-sse-go"
	"github.com/hugr-lab/qlik-sse-go/plugins/sentiment"
	"github.com/hugr-lab/qlik-sse-go/registry"
	"github.com/hugr-lab/qlik-sse-go/script"
	"github.com/hugr-lab/qlik-sse-go/telemetry"
)

const (
	pluginIdentifier = "Sentiment"
	pluginVersion    = "v1.1.0"

	metricsInterval = time.Minute
)

func pemFiles() []string {
	return []string{sse.ServerKeyFile, sse.ServerCertFile, sse.RootCertFile}
}

// run serves the plugin until ctx is canceled, then drains in-flight calls
// for at most the shutdown timeout.
func run(ctx context.Context, opts options) error {
	return serve(ctx, opts, nil)
}

// serve is run with an optional callback receiving the bound address.
func serve(ctx context.Context, opts options, ready func(net.Addr)) error {
	logger, closeLog, err := newLogger(os.Stderr, opts.LogLevel, opts.LogFormat, opts.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	config, shutdownTelemetry, err := buildConfig(opts, logger)
	if err != nil {
		logger.Error("Failed to configure plugin", "error", err)
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			logger.Warn("Failed to flush telemetry", "error", err)
		}
	}()

	grpcServer := grpc.NewServer(sse.ServerOptions(config)...)
	if err := sse.NewServer(grpcServer, config); err != nil {
		logger.Error("Failed to register plugin", "error", err)
		return err
	}

	lis, err := net.Listen("tcp", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	if err != nil {
		logger.Error("Failed to listen", "port", opts.Port, "error", err)
		return err
	}
	if config.Credentials != nil {
		logger.Info("Running server in secure mode", "address", lis.Addr().String())
	} else {
		logger.Info("Running server in insecure mode", "address", lis.Addr().String())
	}
	if ready != nil {
		ready(lis.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", opts.ShutdownTimeout)
		stopGracefully(grpcServer, opts.ShutdownTimeout, logger)
		return nil
	})
	return g.Wait()
}

// stopGracefully waits for in-flight calls and forces the stop after timeout.
func stopGracefully(grpcServer *grpc.Server, timeout time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Warn("Shutdown timeout exceeded, closing open calls")
		grpcServer.Stop()
		<-done
	}
}

// buildConfig loads the definitions and assembles the plugin collaborators.
func buildConfig(opts options, logger *slog.Logger) (sse.ServerConfig, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	path, err := resolveDefinitionFile(opts.DefinitionFile)
	if err != nil {
		return sse.ServerConfig{}, noop, err
	}
	reg, err := registry.Load(path)
	if err != nil {
		return sse.ServerConfig{}, noop, err
	}
	logger.Info("Function definitions loaded", "file", path, "functions", reg.Len())

	config := sse.ServerConfig{
		Registry: reg,
		Handlers: sentiment.Handlers(sentiment.Serialized(sentiment.NewVader()), memory.NewGoAllocator()),
		Plugin: registry.PluginInfo{
			Identifier:  pluginIdentifier,
			Version:     pluginVersion,
			AllowScript: !opts.DisableScripts,
		},
		Logger:             logger,
		MaxConcurrentCalls: opts.MaxWorkers,
		MaxMessageSize:     opts.MaxMessageSize,
		BundleSize:         opts.BundleSize,
	}
	if !opts.DisableScripts {
		config.ScriptEngine = script.NewDuckDB(script.WithLogger(logger))
	}

	if opts.PemDir != "" {
		creds, err := sse.LoadTLSCredentials(opts.PemDir)
		if err != nil {
			return sse.ServerConfig{}, noop, err
		}
		config.Credentials = creds
	}

	shutdown := noop
	if opts.Telemetry == "stdout" {
		providers, err := telemetry.NewStdoutProviders(os.Stdout, metricsInterval)
		if err != nil {
			return sse.ServerConfig{}, noop, fmt.Errorf("failed to set up telemetry: %w", err)
		}
		config.Hook = telemetry.NewHook(providers.Config())
		shutdown = providers.Shutdown
	}
	return config, shutdown, nil
}
