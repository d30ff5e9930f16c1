// Package logger provides structured logging with automatic credential redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - HTTP exchange logging (handshake, attachment upload, conversation listing)
//   - Chat hub frame logging (outbound and inbound WebSocket frames)
//   - Automatic redaction of session cookies and conversation signatures
//   - Contextual logging with conversation and turn identifiers
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	// level is shared by every handler built here.
	level = new(slog.LevelVar)

	// logOutput is where handlers built by this package write.
	logOutput io.Writer = os.Stderr

	// customHandler is set by SetLogger and suppresses reconfiguration.
	customHandler slog.Handler
)

func init() {
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level.Set(ParseLevel(envLevel))
	}
	DefaultLogger = slog.New(NewContextHandler(textHandler()))
}

func textHandler() slog.Handler {
	return slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: level})
}

// ParseLevel converts a level name into a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// SetLevel changes the level of the package's handlers. A handler installed
// with SetLogger keeps its own level.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetLogger installs a caller-provided handler. Passing nil restores the default
// text handler.
func SetLogger(h slog.Handler) {
	customHandler = h
	if h == nil {
		DefaultLogger = slog.New(NewContextHandler(textHandler()))
		return
	}
	DefaultLogger = slog.New(h)
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// TurnStarted logs the submission of a chat or compose turn.
func TurnStarted(ctx context.Context, kind, style string, invocationID int, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"kind", kind,
		"style", style,
		"invocation_id", invocationID,
	)
	allAttrs = append(allAttrs, attrs...)
	InfoContext(ctx, "💬 Turn submitted", allAttrs...)
}

// TurnFinished logs the terminal outcome of a turn.
func TurnFinished(ctx context.Context, kind string, frames, chars int, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"kind", kind,
		"frames", frames,
		"chars", chars,
	)
	allAttrs = append(allAttrs, attrs...)
	InfoContext(ctx, "✅ Turn finished", allAttrs...)
}

// TurnFailed logs a turn that ended with an error.
func TurnFailed(ctx context.Context, kind string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"kind", kind,
		"error", err,
	)
	allAttrs = append(allAttrs, attrs...)
	ErrorContext(ctx, "❌ Turn failed", allAttrs...)
}

var (
	// sensitivePatterns match the credential material this client handles.
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`_U=[^;\s"]+`),
		regexp.MustCompile(`sec_access_token=[^&\s"]+`),
		regexp.MustCompile(`(?i)(encryptedconversationsignature"?\s*[:=]\s*"?)[^"\s,}]+`),
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_\-.=+/]+`),
	}
)

// RedactSensitiveData removes session cookies, access tokens and encrypted
// conversation signatures from strings.
//
// Supported patterns:
//   - _U cookie values: "_U=[REDACTED]"
//   - sec_access_token query values: "sec_access_token=[REDACTED]"
//   - encrypted conversation signatures in JSON or header dumps
//   - Bearer tokens: "Bearer [REDACTED]"
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			switch {
			case strings.HasPrefix(match, "Bearer"):
				return "Bearer [REDACTED]"
			case strings.HasPrefix(match, "_U="):
				return "_U=[REDACTED]"
			case strings.HasPrefix(match, "sec_access_token="):
				return "sec_access_token=[REDACTED]"
			}
			sub := pattern.FindStringSubmatch(match)
			if len(sub) > 1 {
				return sub[1] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// APIRequest logs HTTP request details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled.
func APIRequest(endpoint, method, url string, headers map[string]string, body interface{}) {
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"endpoint", endpoint,
		"method", method,
		"url", RedactSensitiveData(url),
	)

	if len(headers) > 0 {
		redactedHeaders := make(map[string]string, len(headers))
		for key, value := range headers {
			redactedHeaders[key] = RedactSensitiveData(value)
		}
		attrs = append(attrs, "headers", redactedHeaders)
	}

	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body", RedactSensitiveData(string(bodyJSON)))
		}
	}

	Debug("🔵 API Request", attrs...)
}

// APIResponse logs HTTP response details at debug level with automatic redaction.
// Status codes are logged with emoji indicators: 🟢 (2xx), 🟡 (3xx), 🔴 (4xx/5xx).
func APIResponse(endpoint string, statusCode int, body string, err error) {
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 6)
	attrs = append(attrs,
		"endpoint", endpoint,
		"status_code", statusCode,
	)

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		Error("🔴 API Response Error", attrs...)
		return
	}

	var emoji string
	switch {
	case statusCode >= 200 && statusCode < 300:
		emoji = "🟢"
	case statusCode >= 400:
		emoji = "🔴"
	default:
		emoji = "🟡"
	}

	if body != "" {
		attrs = append(attrs, "body", RedactSensitiveData(body))
	}

	Debug(emoji+" API Response", attrs...)
}

// FrameOut logs an outbound chat hub frame at debug level.
func FrameOut(ctx context.Context, data []byte) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	DebugContext(ctx, "⬆️ Frame sent", "bytes", len(data), "frame", RedactSensitiveData(trimDelimiter(data)))
}

// FrameIn logs an inbound chat hub message at debug level.
func FrameIn(ctx context.Context, data []byte) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	DebugContext(ctx, "⬇️ Frame received", "bytes", len(data), "frame", RedactSensitiveData(trimDelimiter(data)))
}

func trimDelimiter(data []byte) string {
	return strings.ReplaceAll(string(data), "\x1e", " ")
}
