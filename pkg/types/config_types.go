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

import "time"

type ServiceConfig struct {
	Service ServiceInfo   `yaml:"service"`
	Log     Logging       `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServiceInfo struct {
	Name string `yaml:"name"`
	// SecretKey derives the key that encrypts basic-auth passwords.
	SecretKey string `yaml:"secret_key"`
}

type StoreConfig struct {
	// Driver is one of postgres, mysql, sqlserver, sqlite or memory.
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type NATSConfig struct {
	URL            string        `yaml:"url"`
	Stream         string        `yaml:"stream"`
	SubjectPrefix  string        `yaml:"subject_prefix"`
	ClientName     string        `yaml:"client_name"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type MetricsConfig struct {
	// Textfile is where the CLI dumps its counters on exit, for the
	// node-exporter textfile collector. Empty disables it.
	Textfile string `yaml:"textfile"`
}
