// Package log provides the process-wide structured logger.
//
// Nothing is emitted until Setup is called. The CLI routes logs to a dated
// file under the logs directory, or to stderr when running verbose.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

var std = newDiscard()

func newDiscard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Options configures Setup.
type Options struct {
	// Write sends logs to <Dir>/<date>.log.
	Write bool
	Dir   string

	// Stderr sends logs to the given writer when Write is off.
	// Nil keeps logging disabled.
	Stderr io.Writer

	// Level is a logrus level name; unparsable values mean "info".
	Level string

	// JSON selects the JSON formatter.
	JSON bool
}

// Setup configures the logger. It returns a close function for the log
// file, which is a no-op when no file was opened.
func Setup(opts Options) (func() error, error) {
	l := logrus.New()
	closer := func() error { return nil }

	switch {
	case opts.Write:
		if opts.Dir == "" {
			return closer, fmt.Errorf("log directory path is empty")
		}
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return closer, err
		}
		path := filepath.Join(opts.Dir, time.Now().Format("2006-01-02")+".log")
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		l.SetOutput(f)
		closer = f.Close
	case opts.Stderr != nil:
		l.SetOutput(opts.Stderr)
	default:
		l.SetOutput(io.Discard)
	}

	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	std = l
	return closer, nil
}

// SetOutput redirects the logger, mainly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Logger returns the underlying logger.
func Logger() *logrus.Logger {
	return std
}

// WithFields returns an entry carrying structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return std.WithFields(fields)
}

func Error(args ...interface{})                 { std.Error(args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
func Warn(args ...interface{})                  { std.Warn(args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Info(args ...interface{})                  { std.Info(args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Debug(args ...interface{})                 { std.Debug(args...) }
func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
