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
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	joberr "maas.io/maas-jobs/pkg/types/err"
)

// Type is the variant tag of a job. The set is closed.
type Type string

const (
	TypeGeneral      Type = "general"
	TypeBlackbox     Type = "blackbox"
	TypeKubernetesSD Type = "kubernetes_sd"
	TypeHTTPSD       Type = "http_sd"
)

var types = []Type{TypeGeneral, TypeBlackbox, TypeKubernetesSD, TypeHTTPSD}

// Types returns every known job type.
func Types() []Type {

	return slices.Clone(types)
}

func ParseType(s string) (Type, error) {

	t := Type(s)
	if !slices.Contains(types, t) {
		return "", joberr.BadRequest("Job type %s is not supported, expected one of %s", s, TypeNames())
	}
	return t, nil
}

// TypeNames lists the known job types, comma separated.
func TypeNames() string {

	names := make([]string, 0, len(types))
	for _, t := range Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

type BlackboxModule string

const (
	ModuleHTTP2xx     BlackboxModule = "http_2xx"
	ModuleHTTPPost2xx BlackboxModule = "http_post_2xx"
	ModuleTCPConnect  BlackboxModule = "tcp_connect"
	ModuleICMP        BlackboxModule = "icmp"
	ModuleDNS         BlackboxModule = "dns"
)

type KubernetesRole string

const (
	RolePod           KubernetesRole = "pod"
	RoleService       KubernetesRole = "service"
	RoleEndpoints     KubernetesRole = "endpoints"
	RoleEndpointSlice KubernetesRole = "endpointslice"
	RoleNode          KubernetesRole = "node"
	RoleIngress       KubernetesRole = "ingress"
)

const MaskedPassword = "*****"

// Identity names a job. It never changes after creation.
type Identity struct {
	JobName          string
	MaasPool         string
	CollectorCluster string
}

func (id Identity) String() string {

	return fmt.Sprintf("%s/%s/%s", id.MaasPool, id.CollectorCluster, id.JobName)
}

type BasicAuth struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type GeneralSpec struct {
	Targets     []string
	MetricsPath *string
	Certs       *bool
}

type BlackboxSpec struct {
	Targets   []string
	Host      string
	Module    BlackboxModule
	ProbePath *string
}

type KubernetesSDSpec struct {
	Namespaces  []string
	Role        KubernetesRole
	MetricsPath *string
}

type HTTPSDSpec struct {
	Endpoints       []string
	RefreshInterval *int
	MetricsPath     *string
	Certs           *bool
}

// Job is a monitoring job configuration. Exactly one of the variant specs is
// set, the one matching Type.
type Job struct {
	JobName          string
	MaasPool         string
	CollectorCluster string
	Type             Type

	ScrapeInterval *int
	ScrapeTimeout  *int
	BasicAuth      *BasicAuth
	Labels         map[string]string

	TimeCreated time.Time
	UpdateTime  time.Time

	General      *GeneralSpec
	Blackbox     *BlackboxSpec
	KubernetesSD *KubernetesSDSpec
	HTTPSD       *HTTPSDSpec
}

func (j *Job) Identity() Identity {

	return Identity{JobName: j.JobName, MaasPool: j.MaasPool, CollectorCluster: j.CollectorCluster}
}

// Validate checks the structural shape: identity present and the variant
// spec matching the type. Field formats are checked by the caller.
func (j *Job) Validate() error {

	if j.JobName == "" || j.MaasPool == "" || j.CollectorCluster == "" {
		return joberr.BadRequest("job_name, maas_pool and collector_cluster are required")
	}

	set := 0
	for _, present := range []bool{j.General != nil, j.Blackbox != nil, j.KubernetesSD != nil, j.HTTPSD != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return joberr.BadRequest("job %s must carry exactly one variant, got %d", j.JobName, set)
	}

	switch j.Type {
	case TypeGeneral:
		if j.General == nil {
			return joberr.BadRequest("job %s: general fields missing", j.JobName)
		}
	case TypeBlackbox:
		if j.Blackbox == nil {
			return joberr.BadRequest("job %s: blackbox fields missing", j.JobName)
		}
	case TypeKubernetesSD:
		if j.KubernetesSD == nil {
			return joberr.BadRequest("job %s: kubernetes_sd fields missing", j.JobName)
		}
		if len(j.KubernetesSD.Namespaces) == 0 {
			return joberr.BadRequest("job %s: namespaces cannot be empty", j.JobName)
		}
	case TypeHTTPSD:
		if j.HTTPSD == nil {
			return joberr.BadRequest("job %s: http_sd fields missing", j.JobName)
		}
	default:
		return joberr.BadRequest("Job type %s is not supported", j.Type)
	}

	return nil
}

// Targets returns the target list and whether the variant has one.
func (j *Job) Targets() ([]string, bool) {

	switch j.Type {
	case TypeGeneral:
		if j.General != nil {
			return j.General.Targets, true
		}
	case TypeBlackbox:
		if j.Blackbox != nil {
			return j.Blackbox.Targets, true
		}
	}
	return nil, false
}

// SetTargets replaces the target list. It reports false for variants without one.
func (j *Job) SetTargets(targets []string) bool {

	switch j.Type {
	case TypeGeneral:
		if j.General != nil {
			j.General.Targets = targets
			return true
		}
	case TypeBlackbox:
		if j.Blackbox != nil {
			j.Blackbox.Targets = targets
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {

	if j == nil {
		return nil
	}

	c := *j
	c.ScrapeInterval = clonePtr(j.ScrapeInterval)
	c.ScrapeTimeout = clonePtr(j.ScrapeTimeout)
	c.BasicAuth = clonePtr(j.BasicAuth)
	if j.Labels != nil {
		c.Labels = maps.Clone(j.Labels)
	}

	if j.General != nil {
		c.General = &GeneralSpec{
			Targets:     slices.Clone(j.General.Targets),
			MetricsPath: clonePtr(j.General.MetricsPath),
			Certs:       clonePtr(j.General.Certs),
		}
	}
	if j.Blackbox != nil {
		c.Blackbox = &BlackboxSpec{
			Targets:   slices.Clone(j.Blackbox.Targets),
			Host:      j.Blackbox.Host,
			Module:    j.Blackbox.Module,
			ProbePath: clonePtr(j.Blackbox.ProbePath),
		}
	}
	if j.KubernetesSD != nil {
		c.KubernetesSD = &KubernetesSDSpec{
			Namespaces:  slices.Clone(j.KubernetesSD.Namespaces),
			Role:        j.KubernetesSD.Role,
			MetricsPath: clonePtr(j.KubernetesSD.MetricsPath),
		}
	}
	if j.HTTPSD != nil {
		c.HTTPSD = &HTTPSDSpec{
			Endpoints:       slices.Clone(j.HTTPSD.Endpoints),
			RefreshInterval: clonePtr(j.HTTPSD.RefreshInterval),
			MetricsPath:     clonePtr(j.HTTPSD.MetricsPath),
			Certs:           clonePtr(j.HTTPSD.Certs),
		}
	}

	return &c
}

// Masked returns a copy safe to hand back to callers: the password is hidden.
func (j *Job) Masked() *Job {

	c := j.Clone()
	if c.BasicAuth != nil {
		c.BasicAuth.Password = MaskedPassword
	}
	return c
}

// EventPayload is the projection published on the bus. Identity and
// housekeeping fields are dropped, absent optionals are omitted.
func (j *Job) EventPayload() map[string]any {

	p := map[string]any{"job_name": j.JobName}
	putPtr(p, "scrape_interval", j.ScrapeInterval)
	putPtr(p, "scrape_timeout", j.ScrapeTimeout)
	if j.BasicAuth != nil {
		p["basic_auth"] = map[string]any{"username": j.BasicAuth.Username, "password": j.BasicAuth.Password}
	}
	if j.Labels != nil {
		p["labels"] = maps.Clone(j.Labels)
	}

	switch j.Type {
	case TypeGeneral:
		if s := j.General; s != nil {
			p["targets"] = slices.Clone(s.Targets)
			putPtr(p, "metrics_path", s.MetricsPath)
			putPtr(p, "certs", s.Certs)
		}
	case TypeBlackbox:
		if s := j.Blackbox; s != nil {
			p["targets"] = slices.Clone(s.Targets)
			p["host"] = s.Host
			p["module"] = string(s.Module)
			putPtr(p, "probe_path", s.ProbePath)
		}
	case TypeKubernetesSD:
		if s := j.KubernetesSD; s != nil {
			p["namespaces"] = slices.Clone(s.Namespaces)
			p["role"] = string(s.Role)
			putPtr(p, "metrics_path", s.MetricsPath)
		}
	case TypeHTTPSD:
		if s := j.HTTPSD; s != nil {
			p["endpoints"] = slices.Clone(s.Endpoints)
			putPtr(p, "refresh_interval", s.RefreshInterval)
			putPtr(p, "metrics_path", s.MetricsPath)
			putPtr(p, "certs", s.Certs)
		}
	}

	return p
}

func clonePtr[T any](p *T) *T {

	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func putPtr[T any](m map[string]any, key string, p *T) {

	if p != nil {
		m[key] = *p
	}
}
