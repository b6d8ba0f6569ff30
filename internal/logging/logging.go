// Package logging backs the es.Logger interface with logrus.
package logging

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/getpup/pupsourcing/es"
	"github.com/sirupsen/logrus"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Logger writes es.Logger calls to a logrus logger. Arguments are read as
// alternating keys and values and become logrus fields.
type Logger struct {
	logger *logrus.Logger
}

var _ es.Logger = (*Logger)(nil)

// New creates a Logger writing to w at the given level ("debug", "info",
// "warn", "error") in the given format ("text" or "json").
func New(w io.Writer, level, format string) (*Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		logger.SetLevel(lvl)
	}

	switch strings.ToLower(format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q: use %s or %s", format, FormatText, FormatJSON)
	}

	return &Logger{logger: logger}, nil
}

// Wrap adapts an existing logrus logger.
func Wrap(logger *logrus.Logger) *Logger {
	return &Logger{logger: logger}
}

// Logrus returns the underlying logrus logger.
func (l *Logger) Logrus() *logrus.Logger {
	return l.logger
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.entry(ctx, args).Debug(msg)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.entry(ctx, args).Info(msg)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.entry(ctx, args).Error(msg)
}

func (l *Logger) entry(ctx context.Context, args []interface{}) *logrus.Entry {
	return l.logger.WithContext(ctx).WithFields(Fields(args...))
}

// Fields converts alternating keys and values into logrus fields. A trailing
// key without a value is kept under "extra".
func Fields(args ...interface{}) logrus.Fields {
	fields := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fields["extra"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}
