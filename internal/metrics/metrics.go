/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "maas"
	Subsystem = "jobs"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultNoop    = "noop"
)

// Recorder is what the job service reports to.
type Recorder interface {
	Operation(operation, result string)
	Published(action, result string, elapsed time.Duration)
	Compensated(operation, result string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Operation(string, string)                {}
func (Nop) Published(string, string, time.Duration) {}
func (Nop) Compensated(string, string)              {}

// Registry holds the service metrics on a dedicated prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	published     *prometheus.CounterVec
	compensations *prometheus.CounterVec
	publishTime   *prometheus.HistogramVec
}

var _ Recorder = (*Registry)(nil)

func New() *Registry {

	r := &Registry{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "operations_total",
				Help:      "Job operations by outcome",
			},
			[]string{"operation", "result"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "events_published_total",
				Help:      "Job events sent to the bus by outcome",
			},
			[]string{"action", "result"},
		),
		compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "compensations_total",
				Help:      "Store rollbacks after a failed publish",
			},
			[]string{"operation", "result"},
		),
		publishTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: Subsystem,
				Name:      "publish_duration_seconds",
				Help:      "Time until the broker acknowledged a job event",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}

	r.registry.MustRegister(r.operations, r.published, r.compensations, r.publishTime)
	return r
}

func (r *Registry) Operation(operation, result string) {

	r.operations.WithLabelValues(operation, result).Inc()
}

func (r *Registry) Published(action, result string, elapsed time.Duration) {

	r.published.WithLabelValues(action, result).Inc()
	r.publishTime.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (r *Registry) Compensated(operation, result string) {

	r.compensations.WithLabelValues(operation, result).Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
// The file is written atomically.
func (r *Registry) WriteTextfile(path string) error {

	return prometheus.WriteToTextfile(path, r.registry)
}
