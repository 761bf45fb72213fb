// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package logger

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"maas.io/maas-jobs/pkg/types"
)

type Logger struct {
	logr.Logger
	out           io.Writer
	logging       *types.Logging
	sugaredLogger *zap.SugaredLogger
}

func NewLogger(w io.Writer, logging *types.Logging) Logger {

	if logging == nil {
		logging = types.DefaultLogging()
	}
	zl := initZapLogger(w, logging, logging.Level[types.LogComponentDefault])

	return Logger{
		Logger:        zapr.NewLogger(zl),
		out:           w,
		logging:       logging,
		sugaredLogger: zl.Sugar(),
	}
}

func DefaultLogger(out io.Writer, level types.LogLevel) Logger {

	logging := types.DefaultLogging()
	zl := initZapLogger(out, logging, level)

	return Logger{
		Logger:        zapr.NewLogger(zl),
		out:           out,
		logging:       logging,
		sugaredLogger: zl.Sugar(),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() Logger {

	return DefaultLogger(io.Discard, types.LogLevelError)
}

// WithName returns a new Logger with name appended to the logger's name.
// The level is looked up under the same name in the logging config, so a
// component can run at debug while the rest stays at info.
func (l Logger) WithName(name string) Logger {

	if l.logging == nil {
		l.logging = types.DefaultLogging()
	}
	if l.out == nil {
		l.out = io.Discard
	}
	level := l.logging.Level[types.LogComponent(name)]
	zl := initZapLogger(l.out, l.logging, level)

	return Logger{
		Logger:        zapr.NewLogger(zl).WithName(name),
		logging:       l.logging,
		out:           l.out,
		sugaredLogger: zl.Sugar().Named(name),
	}
}

// WithValues returns a new Logger instance with additional key/value pairs.
func (l Logger) WithValues(keysAndValues ...interface{}) Logger {

	l.Logger = l.Logger.WithValues(keysAndValues...)
	return l
}

// Sugar exposes the printf-style zap logger.
func (l Logger) Sugar() *zap.SugaredLogger {

	return l.sugaredLogger
}

func initZapLogger(w io.Writer, logging *types.Logging, level types.LogLevel) *zap.Logger {

	parsed, err := zapcore.ParseLevel(string(logging.LevelOr(level)))
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(w), zap.NewAtomicLevelAt(parsed))

	return zap.New(core, zap.AddCaller())
}
