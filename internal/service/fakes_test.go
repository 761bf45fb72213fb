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

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"maas.io/maas-jobs/internal/event"
	"maas.io/maas-jobs/internal/store"
	"maas.io/maas-jobs/internal/store/memory"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

var errBroker = errors.New("broker unavailable")

type fakePublisher struct {
	mu     sync.Mutex
	events []event.Event
	fail   error
	calls  int
	// sawCancelled is set when Publish ran on an already cancelled context.
	sawCancelled bool
}

func (p *fakePublisher) Publish(ctx context.Context, e event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if ctx.Err() != nil {
		p.sawCancelled = true
		return ctx.Err()
	}
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) published() []event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Event(nil), p.events...)
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingStore counts calls into the memory store and can fail writes.
type recordingStore struct {
	*memory.Store

	mu     sync.Mutex
	finds  int
	writes int

	failCreate error
	failSave   error
	failDelete error

	afterWrite func()
}

var _ store.JobStore = (*recordingStore)(nil)

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.New()}
}

func (s *recordingStore) Find(ctx context.Context, id job.Identity) (*job.Job, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.Store.Find(ctx, id)
}

func (s *recordingStore) Create(ctx context.Context, j *job.Job) error {
	if err := s.write(s.failCreate); err != nil {
		return err
	}
	defer s.wrote()
	return s.Store.Create(ctx, j)
}

func (s *recordingStore) Replace(ctx context.Context, j *job.Job, u *job.Update) error {
	if err := s.write(nil); err != nil {
		return err
	}
	defer s.wrote()
	return s.Store.Replace(ctx, j, u)
}

func (s *recordingStore) Save(ctx context.Context, j *job.Job) error {
	if err := s.write(s.failSave); err != nil {
		return err
	}
	defer s.wrote()
	return s.Store.Save(ctx, j)
}

func (s *recordingStore) Delete(ctx context.Context, id job.Identity) error {
	if err := s.write(s.failDelete); err != nil {
		return err
	}
	defer s.wrote()
	return s.Store.Delete(ctx, id)
}

func (s *recordingStore) write(fail error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return fail
}

func (s *recordingStore) wrote() {
	if s.afterWrite != nil {
		s.afterWrite()
	}
}

func (s *recordingStore) counts() (finds, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds, s.writes
}

// seed stores j directly, bypassing the counters.
func (s *recordingStore) seed(j *job.Job) {
	if err := s.Store.Create(context.Background(), j); err != nil {
		panic(err)
	}
}

type fakeOracle struct {
	mu    sync.Mutex
	pools map[string][]string
	calls int
}

func (o *fakeOracle) CheckCollectorInPool(_ context.Context, pool, collector string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	members, ok := o.pools[pool]
	if !ok {
		return false, joberr.PoolNotFound(pool)
	}
	for _, m := range members {
		if m == collector {
			return true, nil
		}
	}
	return false, nil
}

type prefixCipher struct{}

func (prefixCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

type fakeRecorder struct {
	mu            sync.Mutex
	operations    map[string]int
	published     map[string]int
	compensations map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		operations:    map[string]int{},
		published:     map[string]int{},
		compensations: map[string]int{},
	}
}

func (r *fakeRecorder) Operation(op, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[op+"/"+result]++
}

func (r *fakeRecorder) Published(action, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published[action+"/"+result]++
}

func (r *fakeRecorder) Compensated(op, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensations[op+"/"+result]++
}

func (r *fakeRecorder) get(m map[string]int, parts ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[strings.Join(parts, "/")]
}
