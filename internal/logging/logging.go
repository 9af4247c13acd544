// Package logging provides structured logging with Sentry integration.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config holds logging configuration.
type Config struct {
	Level     slog.Level
	Format    string // "text" or "json"
	SentryDSN string
	Env       string
	Version   string
	Output    io.Writer // defaults to stderr
}

// Logger wraps slog.Logger with Sentry integration.
type Logger struct {
	*slog.Logger
	sentryEnabled bool
}

var defaultLogger *Logger

// ParseLevel maps a level name to a slog.Level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New builds a logger without touching global state.
func New(cfg Config) (*Logger, error) {
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
			Release:     cfg.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry init: %w", err)
		}
		sentryEnabled = true
	}

	var output io.Writer = os.Stderr
	if cfg.Output != nil {
		output = cfg.Output
	}

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var base slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		base = slog.NewJSONHandler(output, opts)
	} else {
		base = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(&sentryHandler{
			Handler:       base,
			sentryEnabled: sentryEnabled,
			capture:       sentry.CaptureEvent,
		}),
		sentryEnabled: sentryEnabled,
	}, nil
}

// Init initializes the global logger with the given config.
func Init(cfg Config) (*Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	defaultLogger = l
	slog.SetDefault(l.Logger)
	return l, nil
}

// Flush flushes any buffered events to Sentry. Call before exiting.
func Flush(timeout time.Duration) {
	if defaultLogger != nil && defaultLogger.sentryEnabled {
		sentry.Flush(timeout)
	}
}

// sentryHandler wraps an slog.Handler and sends warnings and above to Sentry.
// Attributes bound with With are carried into every event under their
// group-qualified key.
type sentryHandler struct {
	slog.Handler
	sentryEnabled bool
	capture       func(*sentry.Event) *sentry.EventID
	attrs         []slog.Attr
	groups        []string
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.Handler.Handle(ctx, r); err != nil {
		return err
	}

	if h.sentryEnabled && r.Level >= slog.LevelWarn {
		h.sendToSentry(r)
	}

	return nil
}

func (h *sentryHandler) sendToSentry(r slog.Record) {
	event := sentry.NewEvent()
	event.Level = slogLevelToSentry(r.Level)
	event.Message = r.Message
	event.Timestamp = r.Time

	for _, a := range h.attrs {
		event.Extra[a.Key] = a.Value.String()
	}
	prefix := groupPrefix(h.groups)
	r.Attrs(func(a slog.Attr) bool {
		event.Extra[prefix+a.Key] = a.Value.String()
		return true
	})

	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		event.Extra["source"] = fmt.Sprintf("%s:%d", frame.Function, frame.Line)
	}

	h.capture(event)
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := groupPrefix(h.groups)
	bound := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	bound = append(bound, h.attrs...)
	for _, a := range attrs {
		bound = append(bound, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}

	return &sentryHandler{
		Handler:       h.Handler.WithAttrs(attrs),
		sentryEnabled: h.sentryEnabled,
		capture:       h.capture,
		attrs:         bound,
		groups:        h.groups,
	}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)

	return &sentryHandler{
		Handler:       h.Handler.WithGroup(name),
		sentryEnabled: h.sentryEnabled,
		capture:       h.capture,
		attrs:         h.attrs,
		groups:        groups,
	}
}

func groupPrefix(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return strings.Join(groups, ".") + "."
}

func slogLevelToSentry(level slog.Level) sentry.Level {
	switch {
	case level >= slog.LevelError:
		return sentry.LevelError
	case level >= slog.LevelWarn:
		return sentry.LevelWarning
	case level >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
