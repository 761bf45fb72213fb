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
	"maps"
	"slices"
	"time"
)

// Document is the flat, tagged wire shape of a Job. It is what job files
// decode into and what the SQL store persists.
type Document struct {
	JobName          string `json:"job_name" yaml:"job_name"`
	MaasPool         string `json:"maas_pool" yaml:"maas_pool"`
	CollectorCluster string `json:"collector_cluster" yaml:"collector_cluster"`
	JobType          Type   `json:"job_type" yaml:"job_type"`

	ScrapeInterval *int              `json:"scrape_interval,omitempty" yaml:"scrape_interval,omitempty"`
	ScrapeTimeout  *int              `json:"scrape_timeout,omitempty" yaml:"scrape_timeout,omitempty"`
	BasicAuth      *BasicAuth        `json:"basic_auth,omitempty" yaml:"basic_auth,omitempty"`
	Labels         map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	Targets         []string       `json:"targets,omitempty" yaml:"targets,omitempty"`
	MetricsPath     *string        `json:"metrics_path,omitempty" yaml:"metrics_path,omitempty"`
	Certs           *bool          `json:"certs,omitempty" yaml:"certs,omitempty"`
	Host            string         `json:"host,omitempty" yaml:"host,omitempty"`
	Module          BlackboxModule `json:"module,omitempty" yaml:"module,omitempty"`
	ProbePath       *string        `json:"probe_path,omitempty" yaml:"probe_path,omitempty"`
	Namespaces      []string       `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	Role            KubernetesRole `json:"role,omitempty" yaml:"role,omitempty"`
	Endpoints       []string       `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	RefreshInterval *int           `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`

	TimeCreated time.Time `json:"time_created,omitzero" yaml:"time_created,omitempty"`
	UpdateTime  time.Time `json:"update_time,omitzero" yaml:"update_time,omitempty"`
}

// FromDocument builds a Job, dispatching on the job_type tag.
func FromDocument(d Document) (*Job, error) {

	t, err := ParseType(string(d.JobType))
	if err != nil {
		return nil, err
	}

	j := &Job{
		JobName:          d.JobName,
		MaasPool:         d.MaasPool,
		CollectorCluster: d.CollectorCluster,
		Type:             t,
		ScrapeInterval:   clonePtr(d.ScrapeInterval),
		ScrapeTimeout:    clonePtr(d.ScrapeTimeout),
		BasicAuth:        clonePtr(d.BasicAuth),
		Labels:           maps.Clone(d.Labels),
		TimeCreated:      d.TimeCreated,
		UpdateTime:       d.UpdateTime,
	}

	switch t {
	case TypeGeneral:
		j.General = &GeneralSpec{
			Targets:     slices.Clone(d.Targets),
			MetricsPath: clonePtr(d.MetricsPath),
			Certs:       clonePtr(d.Certs),
		}
	case TypeBlackbox:
		j.Blackbox = &BlackboxSpec{
			Targets:   slices.Clone(d.Targets),
			Host:      d.Host,
			Module:    d.Module,
			ProbePath: clonePtr(d.ProbePath),
		}
	case TypeKubernetesSD:
		role := d.Role
		if role == "" {
			role = RolePod
		}
		j.KubernetesSD = &KubernetesSDSpec{
			Namespaces:  slices.Clone(d.Namespaces),
			Role:        role,
			MetricsPath: clonePtr(d.MetricsPath),
		}
	case TypeHTTPSD:
		j.HTTPSD = &HTTPSDSpec{
			Endpoints:       slices.Clone(d.Endpoints),
			RefreshInterval: clonePtr(d.RefreshInterval),
			MetricsPath:     clonePtr(d.MetricsPath),
			Certs:           clonePtr(d.Certs),
		}
	}

	return j, nil
}

// Document flattens the job back into its tagged shape.
func (j *Job) Document() Document {

	d := Document{
		JobName:          j.JobName,
		MaasPool:         j.MaasPool,
		CollectorCluster: j.CollectorCluster,
		JobType:          j.Type,
		ScrapeInterval:   clonePtr(j.ScrapeInterval),
		ScrapeTimeout:    clonePtr(j.ScrapeTimeout),
		BasicAuth:        clonePtr(j.BasicAuth),
		Labels:           maps.Clone(j.Labels),
		TimeCreated:      j.TimeCreated,
		UpdateTime:       j.UpdateTime,
	}

	switch j.Type {
	case TypeGeneral:
		if s := j.General; s != nil {
			d.Targets = slices.Clone(s.Targets)
			d.MetricsPath = clonePtr(s.MetricsPath)
			d.Certs = clonePtr(s.Certs)
		}
	case TypeBlackbox:
		if s := j.Blackbox; s != nil {
			d.Targets = slices.Clone(s.Targets)
			d.Host = s.Host
			d.Module = s.Module
			d.ProbePath = clonePtr(s.ProbePath)
		}
	case TypeKubernetesSD:
		if s := j.KubernetesSD; s != nil {
			d.Namespaces = slices.Clone(s.Namespaces)
			d.Role = s.Role
			d.MetricsPath = clonePtr(s.MetricsPath)
		}
	case TypeHTTPSD:
		if s := j.HTTPSD; s != nil {
			d.Endpoints = slices.Clone(s.Endpoints)
			d.RefreshInterval = clonePtr(s.RefreshInterval)
			d.MetricsPath = clonePtr(s.MetricsPath)
			d.Certs = clonePtr(s.Certs)
		}
	}

	return d
}
