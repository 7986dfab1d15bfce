// Copyright 2024 The grpcfs Authors. All Rights Reserved.
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

// Package logger provides the process-wide logger: slog underneath, with
// text or json output, a TRACE..OFF severity scale, and an optional
// rotated log file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity names accepted in configuration, ordered from most to least
// verbose.
const (
	TraceSeverity   = "TRACE"
	DebugSeverity   = "DEBUG"
	InfoSeverity    = "INFO"
	WarningSeverity = "WARNING"
	ErrorSeverity   = "ERROR"
	OffSeverity     = "OFF"
)

// slog has no TRACE or OFF; extend the scale on both ends.
const (
	levelTrace = slog.Level(-8)
	levelOff   = slog.Level(12)
)

var (
	defaultLogger  *slog.Logger
	programLevel   = new(slog.LevelVar)
	defaultFactory = &loggerFactory{out: os.Stderr, format: "text"}
)

func init() {
	defaultLogger = defaultFactory.newLogger(programLevel)
}

type loggerFactory struct {
	out    io.Writer
	format string
	file   *lumberjack.Logger
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	return f.out
}

func (f *loggerFactory) newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(f.createJsonOrTextHandler(f.writer(), level))
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}

	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceAttr renames slog's default keys and maps the extended levels to
// their severity names.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		a.Key = "severity"
		a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

func severityName(l slog.Level) string {
	switch {
	case l <= levelTrace:
		return TraceSeverity
	case l <= slog.LevelDebug:
		return DebugSeverity
	case l <= slog.LevelInfo:
		return InfoSeverity
	case l <= slog.LevelWarn:
		return WarningSeverity
	default:
		return ErrorSeverity
	}
}

func severityLevel(severity string) (slog.Level, error) {
	switch strings.ToUpper(severity) {
	case TraceSeverity:
		return levelTrace, nil
	case DebugSeverity:
		return slog.LevelDebug, nil
	case InfoSeverity, "":
		return slog.LevelInfo, nil
	case WarningSeverity:
		return slog.LevelWarn, nil
	case ErrorSeverity:
		return slog.LevelError, nil
	case OffSeverity:
		return levelOff, nil
	default:
		return 0, fmt.Errorf("unknown log severity: %q", severity)
	}
}

// Setup reconfigures the default logger. filePath == "" keeps output on
// stderr; otherwise output goes to a size-rotated file.
func Setup(format, severity, filePath string) error {
	level, err := severityLevel(severity)
	if err != nil {
		return err
	}

	if format != "text" && format != "json" {
		return fmt.Errorf("unknown log format: %q", format)
	}

	programLevel.Set(level)
	defaultFactory.format = format
	if filePath != "" {
		defaultFactory.file = &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    100, // MiB
			MaxBackups: 3,
		}
	}
	defaultLogger = defaultFactory.newLogger(programLevel)

	return nil
}

func logf(level slog.Level, format string, v ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...any) { logf(levelTrace, format, v...) }
func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v...) }

// levelWriter lets a *log.Logger feed the default logger; the fuse
// library only accepts the stdlib logger type for its error and debug
// hooks.
type levelWriter struct {
	level slog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	logf(w.level, "%s", strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// NewLegacyLogger returns a stdlib logger whose output lands in the
// default logger at the given severity.
func NewLegacyLogger(severity, prefix string) *log.Logger {
	level, err := severityLevel(severity)
	if err != nil {
		level = slog.LevelInfo
	}
	return log.New(levelWriter{level}, prefix, 0)
}
