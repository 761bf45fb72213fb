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

// Package memory is a process-local store, used by tests and the
// "memory" store driver.
package memory

import (
	"context"
	"slices"
	"sync"

	"maas.io/maas-jobs/internal/store"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

var (
	_ store.JobStore    = (*Store)(nil)
	_ store.PoolStore   = (*Store)(nil)
	_ store.APIKeyStore = (*Store)(nil)
)

type Store struct {
	mu    sync.RWMutex
	jobs  map[job.Identity]*job.Job
	pools map[string]*job.Pool
	keys  map[string]*job.APIKey
}

func New() *Store {

	return &Store{
		jobs:  make(map[job.Identity]*job.Job),
		pools: make(map[string]*job.Pool),
		keys:  make(map[string]*job.APIKey),
	}
}

func (s *Store) Find(_ context.Context, id job.Identity) (*job.Job, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.jobs[id].Clone(), nil
}

func (s *Store) Create(_ context.Context, j *job.Job) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	id := j.Identity()
	if _, exists := s.jobs[id]; exists {
		return joberr.Conflict(j.JobName, j.CollectorCluster)
	}
	s.jobs[id] = j.Clone()
	return nil
}

func (s *Store) Replace(_ context.Context, j *job.Job, u *job.Update) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	id := j.Identity()
	if _, exists := s.jobs[id]; !exists {
		return joberr.JobNotFound(j.JobName, j.CollectorCluster)
	}

	next := j.Clone()
	if err := u.Apply(next); err != nil {
		return err
	}
	next.UpdateTime = store.Now()

	s.jobs[id] = next.Clone()
	*j = *next
	return nil
}

func (s *Store) Save(_ context.Context, j *job.Job) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	id := j.Identity()
	if _, exists := s.jobs[id]; !exists {
		return joberr.JobNotFound(j.JobName, j.CollectorCluster)
	}
	s.jobs[id] = j.Clone()
	return nil
}

func (s *Store) Delete(_ context.Context, id job.Identity) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return joberr.JobNotFound(id.JobName, id.CollectorCluster)
	}
	delete(s.jobs, id)
	return nil
}

// Len is the number of stored jobs.
func (s *Store) Len() int {

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.jobs)
}

func (s *Store) GetPool(_ context.Context, name string) (*job.Pool, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[name]
	if !ok {
		return nil, nil
	}
	return &job.Pool{Name: p.Name, CollectorClusters: slices.Clone(p.CollectorClusters)}, nil
}

func (s *Store) PutPool(_ context.Context, p *job.Pool) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pools[p.Name] = &job.Pool{Name: p.Name, CollectorClusters: slices.Clone(p.CollectorClusters)}
	return nil
}

func (s *Store) GetAPIKey(_ context.Context, keyHash string) (*job.APIKey, error) {

	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[keyHash]
	if !ok {
		return nil, nil
	}
	c := *k
	c.MaasPools = slices.Clone(k.MaasPools)
	return &c, nil
}

func (s *Store) PutAPIKey(_ context.Context, k *job.APIKey) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *k
	c.MaasPools = slices.Clone(k.MaasPools)
	s.keys[k.KeyHash] = &c
	return nil
}

// Migrate is a no-op, there is no schema.
func (s *Store) Migrate(context.Context) error {

	return nil
}

func (s *Store) Close() error {

	return nil
}
