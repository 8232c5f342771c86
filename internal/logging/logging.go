// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options select the format, level and optional rotating file sink.
type Options struct {
	Format     string // json or text
	Level      string
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

// Setup applies opts to the standard logrus logger. It returns a closer for the
// file sink, which is a no-op when no file is configured.
func Setup(opts Options) (func() error, error) {
	return configure(logrus.StandardLogger(), opts, os.Stdout)
}

func configure(logger *logrus.Logger, opts Options, stdout io.Writer) (func() error, error) {
	level := strings.ToLower(opts.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s'", opts.Level)
	}
	logger.SetLevel(lvl)

	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch strings.ToLower(opts.Format) {
	case "json", "":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return nil, fmt.Errorf("invalid log format '%s'", opts.Format)
	}

	if opts.File == "" {
		logger.SetOutput(stdout)
		return func() error { return nil }, nil
	}

	sink := &lumberjack.Logger{
		Filename: opts.File,
		MaxSize:  opts.MaxSizeMB,
		MaxAge:   opts.MaxAgeDays,
		Compress: true,
	}
	if sink.MaxSize <= 0 {
		sink.MaxSize = 100
	}
	logger.SetOutput(io.MultiWriter(stdout, sink))
	return sink.Close, nil
}
