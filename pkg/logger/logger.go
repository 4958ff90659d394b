package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelMuxHandler пишет записи в stdout и, начиная с уровня fileLevel, в файл.
type LevelMuxHandler struct {
	stdout    slog.Handler
	file      slog.Handler
	fileLevel slog.Level
}

type LoggerWithFile struct {
	Logger  *slog.Logger
	LogFile *os.File
}

func NewLevelMuxHandler(stdout, file io.Writer, level slog.Level) *LevelMuxHandler {
	fileLevel := level
	if fileLevel < slog.LevelInfo {
		fileLevel = slog.LevelInfo
	}
	return &LevelMuxHandler{
		stdout: slog.NewJSONHandler(stdout, &slog.HandlerOptions{
			Level: level,
		}),
		file: slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level:     fileLevel,
			AddSource: true,
		}),
		fileLevel: fileLevel,
	}
}

func (h *LevelMuxHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stdout.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *LevelMuxHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.fileLevel {
		if err := h.file.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	if h.stdout.Enabled(ctx, r.Level) {
		return h.stdout.Handle(ctx, r)
	}
	return nil
}

func (h *LevelMuxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelMuxHandler{
		stdout:    h.stdout.WithAttrs(attrs),
		file:      h.file.WithAttrs(attrs),
		fileLevel: h.fileLevel,
	}
}

func (h *LevelMuxHandler) WithGroup(name string) slog.Handler {
	return &LevelMuxHandler{
		stdout:    h.stdout.WithGroup(name),
		file:      h.file.WithGroup(name),
		fileLevel: h.fileLevel,
	}
}

// ParseLevel понимает debug, info, warn, error; всё остальное трактуется как info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLoggerWithFile(fileName, level string) (*LoggerWithFile, error) {
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл логов: %w", err)
	}

	handler := NewLevelMuxHandler(os.Stdout, logFile, ParseLevel(level))
	return &LoggerWithFile{
		Logger:  slog.New(handler),
		LogFile: logFile,
	}, nil
}

func (l *LoggerWithFile) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}
