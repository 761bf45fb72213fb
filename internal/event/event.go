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

// Package event defines the job change messages sent to the bus and the
// publisher contract.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"maas.io/maas-jobs/pkg/types/job"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event is one job mutation. The JSON shape is the bus contract and must
// stay stable.
type Event struct {
	JobName       string         `json:"job_name"`
	Action        Action         `json:"action"`
	CollectorName string         `json:"collector_name"`
	MaasPoolName  string         `json:"maas_pool_name"`
	JobType       job.Type       `json:"job_type"`
	Data          map[string]any `json:"data"`
}

// New builds the event for j. data may be nil.
func New(action Action, j *job.Job, data map[string]any) Event {

	return Event{
		JobName:       j.JobName,
		Action:        action,
		CollectorName: j.CollectorCluster,
		MaasPoolName:  j.MaasPool,
		JobType:       j.Type,
		Data:          data,
	}
}

// Encode returns the UTF-8 JSON body.
func (e Event) Encode() ([]byte, error) {

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s event for %s: %w", e.Action, e.JobName, err)
	}
	return b, nil
}

// Key is the partition key. All events of a pool share it, so they are
// delivered in publish order.
func (e Event) Key() []byte {

	return []byte(e.MaasPoolName)
}

// Publisher delivers events. Publish returns once the broker confirmed
// durable receipt, or with an error matching ErrPublishFailure.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
