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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"maas.io/maas-jobs/pkg/logger"
	"maas.io/maas-jobs/pkg/types"
	joberr "maas.io/maas-jobs/pkg/types/err"
)

const (
	DefaultServiceName    = "maas-jobs"
	DefaultStream         = "MAAS_JOBS"
	DefaultSubjectPrefix  = "maas.jobs"
	DefaultPublishTimeout = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second

	EnvPrefix = "MAAS_"
)

type Loader struct {
	cfgPath string
	lookup  func(string) (string, bool)
	logger  logger.Logger
}

func New(cfgPath string, log logger.Logger) *Loader {

	return &Loader{
		cfgPath: cfgPath,
		lookup:  os.LookupEnv,
		logger:  log.WithName("config-loader"),
	}
}

// WithLookup replaces the environment source.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {

	l.lookup = lookup
	return l
}

// Load reads the file when one is given, applies environment overrides and
// validates the result.
func (l *Loader) Load() (*types.ServiceConfig, error) {

	cfg := &types.ServiceConfig{}
	if l.cfgPath != "" {
		var err error
		if cfg, err = l.LoadConfig(); err != nil {
			return nil, err
		}
	} else {
		l.logger.V(1).Info("no config file given, using environment only")
	}

	if err := l.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) LoadConfig() (*types.ServiceConfig, error) {

	if l.cfgPath == "" {
		return nil, errors.New("config-loader: path is empty")
	}

	file, err := os.Open(l.cfgPath)
	if err != nil {
		l.logger.Error(err, "open config file failed", "path", l.cfgPath)
		return nil, err
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			l.logger.Error(err, "close config file failed")
		}
	}(file)

	var cfg types.ServiceConfig
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		l.logger.Error(err, "decode config file failed", "path", l.cfgPath)
		return nil, fmt.Errorf("decode %s: %w", l.cfgPath, err)
	}

	return &cfg, nil
}

// ApplyEnv overrides file values with MAAS_* environment variables.
func (l *Loader) ApplyEnv(cfg *types.ServiceConfig) error {

	strs := map[string]*string{
		"SERVICE_NAME":        &cfg.Service.Name,
		"SECRET_KEY":          &cfg.Service.SecretKey,
		"STORE_DRIVER":        &cfg.Store.Driver,
		"STORE_DSN":           &cfg.Store.DSN,
		"NATS_URL":            &cfg.NATS.URL,
		"NATS_STREAM":         &cfg.NATS.Stream,
		"NATS_SUBJECT_PREFIX": &cfg.NATS.SubjectPrefix,
		"NATS_CLIENT_NAME":    &cfg.NATS.ClientName,
		"NATS_USER":           &cfg.NATS.User,
		"NATS_PASSWORD":       &cfg.NATS.Password,
		"METRICS_TEXTFILE":    &cfg.Metrics.Textfile,
	}
	for key, dst := range strs {
		if v, ok := l.lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := l.lookup(EnvPrefix + "STORE_MAX_OPEN_CONNS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSTORE_MAX_OPEN_CONNS: %w", EnvPrefix, err)
		}
		cfg.Store.MaxOpenConns = n
	}

	durations := map[string]*time.Duration{
		"NATS_PUBLISH_TIMEOUT": &cfg.NATS.PublishTimeout,
		"NATS_CONNECT_TIMEOUT": &cfg.NATS.ConnectTimeout,
	}
	for key, dst := range durations {
		v, ok := l.lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}

	if v, ok := l.lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		if cfg.Log.Level == nil {
			cfg.Log.Level = map[types.LogComponent]types.LogLevel{}
		}
		cfg.Log.Level[types.LogComponentDefault] = types.LogLevel(v)
	}

	return nil
}

// ValidateConfig checks required settings and fills in defaults.
func (l *Loader) ValidateConfig(cfg *types.ServiceConfig) error {

	if cfg == nil {
		l.logger.Error(joberr.ConfigIsNil, "config is nil")
		return joberr.ConfigIsNil
	}

	if cfg.Service.SecretKey == "" {
		l.logger.Error(joberr.ConfigSecretIsNil, "service secret key is empty")
		return joberr.ConfigSecretIsNil
	}
	if cfg.Store.Driver == "" {
		l.logger.Error(joberr.ConfigStoreIsNil, "store driver is empty")
		return joberr.ConfigStoreIsNil
	}
	if cfg.NATS.URL == "" {
		l.logger.Error(joberr.ConfigNATSURLIsNil, "nats url is empty")
		return joberr.ConfigNATSURLIsNil
	}

	if cfg.Service.Name == "" {
		cfg.Service.Name = DefaultServiceName
	}
	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = DefaultStream
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.NATS.ClientName == "" {
		cfg.NATS.ClientName = cfg.Service.Name
	}
	if cfg.NATS.PublishTimeout <= 0 {
		cfg.NATS.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.NATS.ConnectTimeout <= 0 {
		cfg.NATS.ConnectTimeout = DefaultConnectTimeout
	}
	cfg.Log.SetDefaults()

	return nil
}
