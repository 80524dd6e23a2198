// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package log provides the judge daemon's process-wide structured logger.
// Packages that need a *zap.Logger take one as a constructor argument
// instead (internal/judge.NewRun, internal/runner.New, ...); this package
// backs cmd/judged's own ambient logging and whatever wires the default.
package log

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	l, _ := zap.NewDevelopment()
	logger.Store(l)
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return logger.Load()
}

// SetLogger replaces the global logger, e.g. once cmd/judged has parsed
// configuration and knows the desired level/encoding.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	Logger().Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	Logger().Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	Logger().Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	Logger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg string, fields ...zap.Field) {
	Logger().Fatal(msg, fields...)
}

// With returns a logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return Logger().With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return Logger().Sync()
}
