package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/giygas/rxnorm-search-api/config"
)

func TestLogLevels(t *testing.T) {
	parsed := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range parsed {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}

	console := []struct {
		env     config.Environment
		level   string
		verbose bool
		want    slog.Level
	}{
		{config.EnvDevelopment, "", false, slog.LevelInfo},
		{config.EnvStaging, "", false, slog.LevelWarn},
		{config.EnvProduction, "", false, slog.LevelWarn},
		{config.EnvProduction, "debug", false, slog.LevelDebug},
		{config.EnvTest, "", false, slog.LevelError},
		{config.EnvTest, "debug", false, slog.LevelError},
		{config.EnvTest, "", true, slog.LevelInfo},
	}
	for _, tc := range console {
		if got := GetConsoleLogLevel(tc.env, tc.level, tc.verbose); got != tc.want {
			t.Errorf("GetConsoleLogLevel(%s, %q, %v) = %v, want %v", tc.env, tc.level, tc.verbose, got, tc.want)
		}
	}

	if GetFileLogLevel() != slog.LevelDebug {
		t.Error("Expected files to keep debug records")
	}
}

func TestErrorContextAndCloseWithoutLogger(t *testing.T) {
	DefaultLoggingService = nil

	ErrorContext(context.Background(), "search failed", "term", "advil")

	if err := Close(); err != nil {
		t.Errorf("Close on a nil service should succeed, got %v", err)
	}
}

type recordingHandler struct {
	level   slog.Level
	records []slog.Record
	attrs   []slog.Attr
}

func (h *recordingHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{level: h.level, attrs: append(h.attrs, attrs...)}
}

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func TestMultiHandlerRespectsEachLevel(t *testing.T) {
	console := &recordingHandler{level: slog.LevelWarn}
	file := &recordingHandler{level: slog.LevelDebug}
	logger := slog.New(&multiHandler{handlers: []slog.Handler{console, file}})

	logger.Debug("cache sweep")
	logger.Warn("rxnav slow")

	if len(console.records) != 1 || console.records[0].Message != "rxnav slow" {
		t.Errorf("Expected only the warning on the console handler, got %d records", len(console.records))
	}
	if len(file.records) != 2 {
		t.Errorf("Expected both records on the file handler, got %d", len(file.records))
	}

	withAttrs := logger.Handler().WithAttrs([]slog.Attr{slog.String("component", "scheduler")})
	mh, ok := withAttrs.(*multiHandler)
	if !ok || len(mh.handlers) != 2 {
		t.Fatalf("Expected WithAttrs to keep both handlers, got %T", withAttrs)
	}
	if rh := mh.handlers[0].(*recordingHandler); len(rh.attrs) != 1 {
		t.Errorf("Expected attrs forwarded to each handler, got %v", rh.attrs)
	}
}
