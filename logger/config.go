package logger

import (
	"log/slog"
)

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfigSpec defines the logging configuration for the Configure function.
// This mirrors config.LoggingConfig to avoid import cycles.
type LoggingConfigSpec struct {
	Level        string
	Format       string // "json" or "text"
	CommonFields map[string]string
}

// Configure applies a LoggingConfigSpec to the global logger.
// A handler installed with SetLogger is left in place.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil || customHandler != nil {
		return nil
	}

	level.Set(ParseLevel(cfg.Level))

	commonFields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	base := textHandler()
	if cfg.Format == FormatJSON {
		base = slog.NewJSONHandler(logOutput, &slog.HandlerOptions{Level: level})
	}

	DefaultLogger = slog.New(NewContextHandler(base, commonFields...))
	return nil
}
