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

// Package store defines the persistence contracts of the job service.
//
// Implementations hold no locks across calls. Create is the one atomic
// operation: it must reject an existing identity in the same step as the
// insert. Everything else is last-write-wins.
package store

import (
	"context"
	"time"

	"maas.io/maas-jobs/pkg/types/job"
)

type JobStore interface {
	// Find returns nil, nil when no job has this identity.
	Find(ctx context.Context, id job.Identity) (*job.Job, error)

	// Create inserts j, failing with a Conflict error when the identity
	// is taken.
	Create(ctx context.Context, j *job.Job) error

	// Replace applies a partial update to j, stamps UpdateTime and writes
	// the result. j is modified in place.
	Replace(ctx context.Context, j *job.Job, u *job.Update) error

	// Save overwrites the stored record with j as given.
	Save(ctx context.Context, j *job.Job) error

	Delete(ctx context.Context, id job.Identity) error
}

type PoolStore interface {
	// GetPool returns nil, nil when the pool does not exist.
	GetPool(ctx context.Context, name string) (*job.Pool, error)
}

type APIKeyStore interface {
	// GetAPIKey returns nil, nil for an unknown hash.
	GetAPIKey(ctx context.Context, keyHash string) (*job.APIKey, error)
}

// Now is the timestamp source for TimeCreated and UpdateTime. Millisecond
// precision survives every supported backend.
func Now() time.Time {

	return time.Now().UTC().Truncate(time.Millisecond)
}
