package log

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/motemen/go-loghttp"
)

// Logger is the global logger instance
var Logger *slog.Logger

// InitLogger initializes the global logger.
// Output always goes to stderr; stdout belongs to the MCP stdio transport.
// X402SEARCH_DEBUG enables debug level, X402SEARCH_LOG_FORMAT=json switches to JSON lines.
func InitLogger() {
	opts := &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}

	if os.Getenv("X402SEARCH_DEBUG") != "" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("X402SEARCH_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	loghttp.DefaultTransport.LogRequest = func(req *http.Request) {
		Debug("HTTP request",
			"method", req.Method,
			"url", req.URL.String(),
		)
	}

	loghttp.DefaultTransport.LogResponse = func(resp *http.Response) {
		Debug("HTTP response",
			"method", resp.Request.Method,
			"url", resp.Request.URL.String(),
			"status_code", resp.StatusCode,
			"content_type", resp.Header.Get("Content-Type"),
			"payment_scheme", resp.Header.Get("X-Payment-Scheme"),
		)
	}
}

// init initializes the logger when the package is imported
func init() {
	InitLogger()
}

// Transport returns the logging round tripper shared by every outbound client.
// Credential headers are never logged.
func Transport() http.RoundTripper {
	return loghttp.DefaultTransport
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
