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

package types

// maas job service logging related types

type LogLevel string

const (
	// LogLevelDebug defines the "debug" logging level.
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo defines the "info" logging level.
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn defines the "warn" logging level.
	LogLevelWarn LogLevel = "warn"

	// LogLevelError defines the "error" logging level.
	LogLevelError LogLevel = "error"
)

// LogComponent names a logger subtree whose level can be tuned on its own.
type LogComponent string

const (
	LogComponentDefault   LogComponent = "default"
	LogComponentService   LogComponent = "service"
	LogComponentStore     LogComponent = "store"
	LogComponentPublisher LogComponent = "publisher"
	LogComponentCLI       LogComponent = "cli"
)

type Logging struct {
	Level map[LogComponent]LogLevel `yaml:"level,omitempty" json:"level,omitempty"`
}

func DefaultLogging() *Logging {

	return &Logging{
		Level: map[LogComponent]LogLevel{
			LogComponentDefault: LogLevelInfo,
		},
	}
}

// LevelOr returns level when set, falling back to the default component level and then info.
func (logging *Logging) LevelOr(level LogLevel) LogLevel {

	if level != "" {
		return level
	}

	if logging != nil && logging.Level[LogComponentDefault] != "" {
		return logging.Level[LogComponentDefault]
	}

	return LogLevelInfo
}

func (logging *Logging) SetDefaults() {

	if logging == nil {
		return
	}

	if logging.Level == nil {
		logging.Level = map[LogComponent]LogLevel{}
	}

	if logging.Level[LogComponentDefault] == "" {
		logging.Level[LogComponentDefault] = LogLevelInfo
	}
}
