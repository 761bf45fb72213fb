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
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"maas.io/maas-jobs/pkg/types"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, types.DefaultLogging())
	logger.Info("kv msg", "key", "value")
	logger.Sugar().Infof("template %s %d", "string", 123)
	logger.Error(errors.New("boom"), "failed", "job", "j1")

	out := buf.String()
	assert.Contains(t, out, "kv msg")
	assert.Contains(t, out, "template string 123")
	assert.Contains(t, out, "boom")

	defaultLogger := DefaultLogger(&buf, types.LogLevelInfo)
	assert.NotNil(t, defaultLogger.logging)
	assert.NotNil(t, defaultLogger.sugaredLogger)
}

func TestLoggerWithName(t *testing.T) {
	var buf bytes.Buffer

	config := types.DefaultLogging()
	config.Level[types.LogComponentService] = types.LogLevelDebug

	logger := NewLogger(&buf, config).WithName(string(types.LogComponentService))
	logger.Info("info message")
	logger.V(1).Info("debug message")

	out := buf.String()
	assert.Contains(t, out, string(types.LogComponentService))
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "debug message")
}

func TestLoggerComponentLevel(t *testing.T) {
	var buf bytes.Buffer

	config := types.DefaultLogging()
	config.Level[types.LogComponentStore] = types.LogLevelError

	logger := NewLogger(&buf, config).WithName(string(types.LogComponentStore))
	logger.Info("hidden")
	logger.Error(errors.New("shown"), "store failure")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "store failure")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	logger.WithName("x").WithValues("k", "v").Info("still nothing")
}
