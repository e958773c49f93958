package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// options holds the resolved process configuration.
type options struct {
	Host            string
	Port            int
	PemDir          string
	DefinitionFile  string
	LogLevel        string
	LogFile         string
	LogFormat       string
	MaxWorkers      int
	MaxMessageSize  int
	BundleSize      int
	Telemetry       string
	ShutdownTimeout time.Duration
	DisableScripts  bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "sse-sentiment",
		Short: "Qlik Server-Side Extension serving sentiment analysis",
		Long: `sse-sentiment is a Qlik Server-Side Extension plugin. It advertises the
functions of a definition file and serves them over gRPC:

  Sentiment(text, type)       VADER scores of a text (all, pos, neg, neu, comp)
  SentimentScript(id, text)   table of ids and all scores
  CleanTweet(tweet)           tweet text without mentions, links and punctuation
  CleanTweetScript(id, tweet) table of ids and cleansed tweets

Aggregation and tensor scripts are evaluated as DuckDB SQL over the table
"args". Every flag can also be set as an SSE_ environment variable, for
example SSE_PORT=50056 or SSE_PEM_DIR=/etc/sse/certs.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cmd, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	flags.String("host", "", "interface to listen on (default all)")
	flags.Int("port", 50055, "port to listen on")
	flags.String("pem-dir", "", "directory with "+strings.Join(pemFiles(), ", ")+" (default insecure)")
	flags.String("definition-file", "functions.json", "function definition file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also append logs to this file")
	flags.String("log-format", "text", "log format (text, json, logfmt)")
	flags.Int("max-workers", 10, "maximum number of concurrent calls")
	flags.Int("max-message-size", 0, "maximum gRPC message size in bytes (default 4MB)")
	flags.Int("bundle-size", 0, "maximum rows per response bundle (default 1000)")
	flags.String("telemetry", "none", "telemetry exporter (none, stdout)")
	flags.Duration("shutdown-timeout", 10*time.Second, "time to drain calls on shutdown")
	flags.Bool("disable-scripts", false, "do not evaluate scripts")

	return cmd
}

// initConfig binds flags, SSE_ environment variables and the optional config
// file. Flags set on the command line take precedence.
func initConfig(v *viper.Viper, cmd *cobra.Command, cfgFile string) error {
	v.SetEnvPrefix("SSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

func loadOptions(v *viper.Viper) (options, error) {
	opts := options{
		Host:            v.GetString("host"),
		Port:            v.GetInt("port"),
		PemDir:          v.GetString("pem-dir"),
		DefinitionFile:  v.GetString("definition-file"),
		LogLevel:        v.GetString("log-level"),
		LogFile:         v.GetString("log-file"),
		LogFormat:       v.GetString("log-format"),
		MaxWorkers:      v.GetInt("max-workers"),
		MaxMessageSize:  v.GetInt("max-message-size"),
		BundleSize:      v.GetInt("bundle-size"),
		Telemetry:       v.GetString("telemetry"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		DisableScripts:  v.GetBool("disable-scripts"),
	}

	if opts.Port < 0 || opts.Port > 65535 {
		return opts, fmt.Errorf("invalid port %d", opts.Port)
	}
	if opts.MaxWorkers < 1 {
		return opts, fmt.Errorf("max-workers must be at least 1, got %d", opts.MaxWorkers)
	}
	switch opts.Telemetry {
	case "none", "stdout":
	default:
		return opts, fmt.Errorf("unknown telemetry exporter %q", opts.Telemetry)
	}
	return opts, nil
}

// resolveDefinitionFile finds a relative definition file in the working
// directory first, then next to the executable.
func resolveDefinitionFile(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("definition file %s not found: %w", path, err)
	}
	candidate := filepath.Join(filepath.Dir(exe), path)
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("definition file %s not found in working directory or %s", path, filepath.Dir(exe))
	}
	return candidate, nil
}
