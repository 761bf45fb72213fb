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

	joberr "maas.io/maas-jobs/pkg/types/err"
)

// Update is a partial update. A nil field is left untouched.
type Update struct {
	ScrapeInterval *int              `json:"scrape_interval,omitempty" yaml:"scrape_interval,omitempty"`
	ScrapeTimeout  *int              `json:"scrape_timeout,omitempty" yaml:"scrape_timeout,omitempty"`
	BasicAuth      *BasicAuth        `json:"basic_auth,omitempty" yaml:"basic_auth,omitempty"`
	Labels         map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	Targets         []string        `json:"targets,omitempty" yaml:"targets,omitempty"`
	MetricsPath     *string         `json:"metrics_path,omitempty" yaml:"metrics_path,omitempty"`
	Certs           *bool           `json:"certs,omitempty" yaml:"certs,omitempty"`
	Host            *string         `json:"host,omitempty" yaml:"host,omitempty"`
	Module          *BlackboxModule `json:"module,omitempty" yaml:"module,omitempty"`
	ProbePath       *string         `json:"probe_path,omitempty" yaml:"probe_path,omitempty"`
	Namespaces      []string        `json:"namespaces,omitempty" yaml:"namespaces,omitempty"`
	Role            *KubernetesRole `json:"role,omitempty" yaml:"role,omitempty"`
	Endpoints       []string        `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	RefreshInterval *int            `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty"`
}

// Check reports an UnsupportedOperation error when the update sets a field
// the job's variant does not have.
func (u *Update) Check(t Type) error {

	var allowed map[string]bool
	switch t {
	case TypeGeneral:
		allowed = map[string]bool{"targets": true, "metrics_path": true, "certs": true}
	case TypeBlackbox:
		allowed = map[string]bool{"targets": true, "host": true, "module": true, "probe_path": true}
	case TypeKubernetesSD:
		allowed = map[string]bool{"namespaces": true, "role": true, "metrics_path": true}
	case TypeHTTPSD:
		allowed = map[string]bool{"endpoints": true, "refresh_interval": true, "metrics_path": true, "certs": true}
	default:
		return joberr.BadRequest("Job type %s is not supported", t)
	}

	for _, field := range u.variantFields() {
		if !allowed[field] {
			return joberr.UnsupportedOperation("field %s is not supported by %s jobs", field, t)
		}
	}

	if u.Namespaces != nil && len(u.Namespaces) == 0 {
		return joberr.BadRequest("namespaces cannot be empty")
	}

	return nil
}

// Apply writes the set fields onto j. Nothing is written when Check fails.
func (u *Update) Apply(j *Job) error {

	if err := u.Check(j.Type); err != nil {
		return err
	}

	if u.ScrapeInterval != nil {
		j.ScrapeInterval = clonePtr(u.ScrapeInterval)
	}
	if u.ScrapeTimeout != nil {
		j.ScrapeTimeout = clonePtr(u.ScrapeTimeout)
	}
	if u.BasicAuth != nil {
		j.BasicAuth = clonePtr(u.BasicAuth)
	}
	if u.Labels != nil {
		j.Labels = maps.Clone(u.Labels)
	}

	switch j.Type {
	case TypeGeneral:
		s := j.General
		if u.Targets != nil {
			s.Targets = slices.Clone(u.Targets)
		}
		if u.MetricsPath != nil {
			s.MetricsPath = clonePtr(u.MetricsPath)
		}
		if u.Certs != nil {
			s.Certs = clonePtr(u.Certs)
		}
	case TypeBlackbox:
		s := j.Blackbox
		if u.Targets != nil {
			s.Targets = slices.Clone(u.Targets)
		}
		if u.Host != nil {
			s.Host = *u.Host
		}
		if u.Module != nil {
			s.Module = *u.Module
		}
		if u.ProbePath != nil {
			s.ProbePath = clonePtr(u.ProbePath)
		}
	case TypeKubernetesSD:
		s := j.KubernetesSD
		if u.Namespaces != nil {
			s.Namespaces = slices.Clone(u.Namespaces)
		}
		if u.Role != nil {
			s.Role = *u.Role
		}
		if u.MetricsPath != nil {
			s.MetricsPath = clonePtr(u.MetricsPath)
		}
	case TypeHTTPSD:
		s := j.HTTPSD
		if u.Endpoints != nil {
			s.Endpoints = slices.Clone(u.Endpoints)
		}
		if u.RefreshInterval != nil {
			s.RefreshInterval = clonePtr(u.RefreshInterval)
		}
		if u.MetricsPath != nil {
			s.MetricsPath = clonePtr(u.MetricsPath)
		}
		if u.Certs != nil {
			s.Certs = clonePtr(u.Certs)
		}
	}

	return nil
}

// Payload is the diff published for an update: only the fields that are set.
func (u *Update) Payload() map[string]any {

	p := map[string]any{}
	putPtr(p, "scrape_interval", u.ScrapeInterval)
	putPtr(p, "scrape_timeout", u.ScrapeTimeout)
	if u.BasicAuth != nil {
		p["basic_auth"] = map[string]any{"username": u.BasicAuth.Username, "password": u.BasicAuth.Password}
	}
	if u.Labels != nil {
		p["labels"] = maps.Clone(u.Labels)
	}
	if u.Targets != nil {
		p["targets"] = slices.Clone(u.Targets)
	}
	putPtr(p, "metrics_path", u.MetricsPath)
	putPtr(p, "certs", u.Certs)
	putPtr(p, "host", u.Host)
	if u.Module != nil {
		p["module"] = string(*u.Module)
	}
	putPtr(p, "probe_path", u.ProbePath)
	if u.Namespaces != nil {
		p["namespaces"] = slices.Clone(u.Namespaces)
	}
	if u.Role != nil {
		p["role"] = string(*u.Role)
	}
	if u.Endpoints != nil {
		p["endpoints"] = slices.Clone(u.Endpoints)
	}
	putPtr(p, "refresh_interval", u.RefreshInterval)

	return p
}

func (u *Update) variantFields() []string {

	var fields []string
	if u.Targets != nil {
		fields = append(fields, "targets")
	}
	if u.MetricsPath != nil {
		fields = append(fields, "metrics_path")
	}
	if u.Certs != nil {
		fields = append(fields, "certs")
	}
	if u.Host != nil {
		fields = append(fields, "host")
	}
	if u.Module != nil {
		fields = append(fields, "module")
	}
	if u.ProbePath != nil {
		fields = append(fields, "probe_path")
	}
	if u.Namespaces != nil {
		fields = append(fields, "namespaces")
	}
	if u.Role != nil {
		fields = append(fields, "role")
	}
	if u.Endpoints != nil {
		fields = append(fields, "endpoints")
	}
	if u.RefreshInterval != nil {
		fields = append(fields, "refresh_interval")
	}
	return fields
}
