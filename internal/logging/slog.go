package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options selects the optional outputs of a SlogManager.
type Options struct {
	// Format is "text" or "json" and applies to console and file output.
	Format string
	// GELF receives every record as a JSON document when set.
	GELF io.Writer
	// Context adds dynamic attributes to every record.
	Context ContextProvider
}

// stdout is the console destination used when no log file is configured.
var stdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional GELF shipping.
type SlogManager struct {
	logger *slog.Logger
	gelf   io.Writer
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup initializes the logging system. Records go to file when it is set,
// otherwise to stdout, and additionally to the GELF writer if configured.
func (m *SlogManager) Setup(file io.Writer, level string, opts Options) {
	lvl := parseLevel(level)
	m.gelf = opts.GELF

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, newHandler(file, opts.Format, handlerOpts))
	} else {
		handlers = append(handlers, newHandler(stdout, opts.Format, handlerOpts))
	}
	if opts.GELF != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.GELF, handlerOpts))
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...), opts.Context))
	m.logger.Info("Logging initialized", "level", level, "gelf", opts.GELF != nil)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Close releases the GELF writer, if any.
func (m *SlogManager) Close() error {
	if c, ok := m.gelf.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteLog writes a log entry with the specified function name, data, and level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(data, "function", functionName)
	case slog.LevelWarn:
		m.logger.Warn(data, "function", functionName)
	case slog.LevelError:
		m.logger.Error(data, "function", functionName)
	default:
		m.logger.Info(data, "function", functionName)
	}
}
