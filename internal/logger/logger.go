// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is fleetfs's structured log sink. It wraps log/slog with
// the severity vocabulary a POSIX-style filesystem wants (a TRACE level
// below slog's built-in Debug, for logging individual ops) and writes
// through a rotating file via gopkg.in/natefinch/lumberjack.v2, optionally
// batched through an AsyncLogger so a slow disk never blocks the apply
// loop or the dispatcher.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity level constants accepted in cfg's LoggingConfig.Severity.
const (
	SeverityTrace   = "TRACE"
	SeverityDebug   = "DEBUG"
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
	SeverityOff     = "OFF"
)

// slog reserves -4..8 for its own levels; TRACE sits below Debug and OFF
// sits above Error so nothing at all is ever enabled for it.
const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelOff   slog.Level = 12
)

var severityNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

type loggerFactory struct {
	format string // "text" or "json"
}

var defaultLoggerFactory = &loggerFactory{format: "text"}

var programLevel = &slog.LevelVar{}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level slog.Leveler, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				lvl, _ := a.Value.Any().(slog.Level)
				name, ok := severityNames[lvl]
				if !ok {
					name = lvl.String()
				}
				return slog.String("severity", name)
			case slog.MessageKey:
				return slog.String(a.Key, prefix+a.Value.String())
			default:
				return a
			}
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Config describes how to build the process-wide logger; it mirrors
// cfg.LoggingConfig's fields directly so main can pass the parsed config
// straight through.
type Config struct {
	Severity   string
	Format     string // "text" or "json"
	FilePath   string // empty means stderr
	MaxSizeMB  int
	MaxBackups int
	Async      bool
	AsyncQueue int
}

// closer is non-nil when Init opened a rotating file that Close should
// flush and release.
var closer io.Closer

// Init rebuilds the default logger from cfg. It is not safe to call
// concurrently with logging calls; call it once during startup.
func Init(cfg Config) error {
	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		if cfg.Async {
			queue := cfg.AsyncQueue
			if queue <= 0 {
				queue = 1024
			}
			al := NewAsyncLogger(lj, queue)
			w = al
			closer = al
		} else {
			w = lj
			closer = lj
		}
	}

	format := cfg.Format
	if format == "" {
		format = "text"
	}
	defaultLoggerFactory = &loggerFactory{format: format}
	setLoggingLevel(cfg.Severity, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
	return nil
}

// Close flushes and releases the logger's underlying file, if Init opened
// one. Safe to call even when no file was opened.
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}

func setLoggingLevel(severity string, v *slog.LevelVar) {
	switch severity {
	case SeverityTrace:
		v.Set(LevelTrace)
	case SeverityDebug:
		v.Set(LevelDebug)
	case SeverityInfo:
		v.Set(LevelInfo)
	case SeverityWarning:
		v.Set(LevelWarn)
	case SeverityError:
		v.Set(LevelError)
	case SeverityOff:
		v.Set(LevelOff)
	default:
		v.Set(LevelInfo)
	}
}

// Default returns the process-wide *slog.Logger, for packages (like
// internal/raftlog and internal/apply) that want a structured logger
// rather than the printf-style helpers below.
func Default() *slog.Logger {
	return defaultLogger
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(nil, LevelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}
