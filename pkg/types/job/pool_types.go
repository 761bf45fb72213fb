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

package job

import (
	"slices"
	"time"
)

// Pool is a MAAS pool and the collector clusters that belong to it.
type Pool struct {
	Name              string   `json:"name" yaml:"name"`
	CollectorClusters []string `json:"collector_clusters" yaml:"collector_clusters"`
}

func (p *Pool) HasCollector(collector string) bool {

	return slices.Contains(p.CollectorClusters, collector)
}

// APIKey is a stored key. Only the sha256 hex digest of the secret is kept.
type APIKey struct {
	KeyHash     string    `json:"key" yaml:"key"`
	MaasPools   []string  `json:"maas_pools" yaml:"maas_pools"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	IsAdmin     bool      `json:"is_admin" yaml:"is_admin"`
	TimeCreated time.Time `json:"time_created" yaml:"time_created"`
}
