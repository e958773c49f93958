package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// newLogger creates the process logger. Records go to w and, when file is
// set, are appended to that file as well. The returned close function
// releases the file.
func newLogger(w io.Writer, level, format, file string) (*slog.Logger, func() error, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var formatter log.Formatter
	switch format {
	case "", "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", format)
	}

	closeFn := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          "sse",
	})
	return slog.New(handler), closeFn, nil
}
