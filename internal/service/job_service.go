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

// Package service implements the job operations. Every mutation runs the
// same protocol: authorize, check preconditions, write the store, publish
// the event, and undo the write when the publish fails.
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"maas.io/maas-jobs/internal/auth"
	"maas.io/maas-jobs/internal/event"
	"maas.io/maas-jobs/internal/metrics"
	"maas.io/maas-jobs/internal/store"
	"maas.io/maas-jobs/pkg/logger"
	"maas.io/maas-jobs/pkg/types"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

const (
	OpGet          = "get"
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpAddTarget    = "add_target"
	OpDeleteTarget = "delete_target"
	OpAddLabels    = "add_labels"
	OpUpdateLabel  = "update_label"
	OpDeleteLabel  = "delete_label"
)

const defaultTimeout = 10 * time.Second

// PoolOracle answers collector membership for create.
type PoolOracle interface {
	CheckCollectorInPool(ctx context.Context, pool, collector string) (bool, error)
}

type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Result is what a successful operation reports back.
type Result struct {
	Detail string `json:"detail"`
	// Noop is set when the request was already satisfied and nothing was
	// written or published.
	Noop bool `json:"-"`
}

type Config struct {
	Jobs      store.JobStore
	Pools     PoolOracle
	Publisher event.Publisher
	Cipher    Encrypter
	Recorder  metrics.Recorder
	Logger    logger.Logger

	// Timeout bounds the publish and, separately, the compensation that
	// follow a store write. Both run detached from the caller's context.
	Timeout time.Duration
}

type JobService struct {
	jobs      store.JobStore
	pools     PoolOracle
	publisher event.Publisher
	cipher    Encrypter
	recorder  metrics.Recorder
	logger    logger.Logger
	timeout   time.Duration
}

func New(cfg Config) *JobService {

	s := &JobService{
		jobs:      cfg.Jobs,
		pools:     cfg.Pools,
		publisher: cfg.Publisher,
		cipher:    cfg.Cipher,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger.WithName(string(types.LogComponentService)),
		timeout:   cfg.Timeout,
	}
	if s.recorder == nil {
		s.recorder = metrics.Nop{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	return s
}

// Get returns the job with its password masked.
func (s *JobService) Get(ctx context.Context, id job.Identity, ac auth.Context) (_ *job.Job, err error) {

	defer func() { s.observe(OpGet, Result{}, err) }()

	if err := ac.Authorize(id.MaasPool); err != nil {
		return nil, err
	}

	current, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return current.Masked(), nil
}

func (s *JobService) Create(ctx context.Context, j *job.Job, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpCreate, res, err) }()

	if err := ac.Authorize(j.MaasPool); err != nil {
		return Result{}, err
	}
	if err := j.Validate(); err != nil {
		return Result{}, err
	}

	in, err := s.pools.CheckCollectorInPool(ctx, j.MaasPool, j.CollectorCluster)
	if err != nil {
		return Result{}, err
	}
	if !in {
		return Result{}, joberr.CollectorNotInPool(j.MaasPool, j.CollectorCluster)
	}

	record := j.Clone()
	if record.BasicAuth != nil {
		if record.BasicAuth.Password, err = s.encrypt(record.BasicAuth.Password); err != nil {
			return Result{}, err
		}
	}
	record.TimeCreated = store.Now()
	record.UpdateTime = record.TimeCreated

	if err := s.jobs.Create(ctx, record); err != nil {
		return Result{}, err
	}

	undo := func(ctx context.Context) error {
		return s.jobs.Delete(ctx, record.Identity())
	}
	if err := s.commit(ctx, OpCreate, event.New(event.ActionCreate, record, record.EventPayload()), undo); err != nil {
		return Result{}, err
	}

	s.logger.Info("job created", "job", record.Identity().String(), "type", string(record.Type))
	return Result{Detail: fmt.Sprintf("Job %s created successfully", record.JobName)}, nil
}

// Update applies a partial update. Only the changed fields are published.
func (s *JobService) Update(ctx context.Context, id job.Identity, u *job.Update, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpUpdate, res, err) }()

	if err := ac.Authorize(id.MaasPool); err != nil {
		return Result{}, err
	}
	if u == nil {
		return Result{}, joberr.BadRequest("update body is empty")
	}

	current, err := s.fetch(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if err := u.Check(current.Type); err != nil {
		return Result{}, err
	}

	diff := *u
	if u.BasicAuth != nil {
		ba := *u.BasicAuth
		if ba.Password, err = s.encrypt(ba.Password); err != nil {
			return Result{}, err
		}
		diff.BasicAuth = &ba
	}

	snapshot := current.Clone()
	if err := s.jobs.Replace(ctx, current, &diff); err != nil {
		return Result{}, err
	}

	undo := func(ctx context.Context) error {
		return s.jobs.Save(ctx, snapshot)
	}
	if err := s.commit(ctx, OpUpdate, event.New(event.ActionUpdate, current, diff.Payload()), undo); err != nil {
		return Result{}, err
	}

	s.logger.Info("job updated", "job", id.String())
	return Result{Detail: fmt.Sprintf("Job %s updated successfully", id.JobName)}, nil
}

func (s *JobService) Delete(ctx context.Context, id job.Identity, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpDelete, res, err) }()

	if err := ac.Authorize(id.MaasPool); err != nil {
		return Result{}, err
	}

	snapshot, err := s.fetch(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if err := s.jobs.Delete(ctx, id); err != nil {
		return Result{}, err
	}

	undo := func(ctx context.Context) error {
		return s.jobs.Create(ctx, snapshot)
	}
	if err := s.commit(ctx, OpDelete, event.New(event.ActionDelete, snapshot, snapshot.EventPayload()), undo); err != nil {
		return Result{}, err
	}

	s.logger.Info("job deleted", "job", id.String())
	return Result{Detail: fmt.Sprintf("Job %s deleted successfully", id.JobName)}, nil
}

// AddTarget appends target. Adding a target that is already there is a no-op.
func (s *JobService) AddTarget(ctx context.Context, id job.Identity, target string, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpAddTarget, res, err) }()

	current, targets, err := s.fetchWithTargets(ctx, id, ac)
	if err != nil {
		return Result{}, err
	}
	if slices.Contains(targets, target) {
		return Result{Detail: fmt.Sprintf("Target %s already exists in job %s", target, id.JobName), Noop: true}, nil
	}

	prior := current.UpdateTime
	current.SetTargets(append(slices.Clone(targets), target))

	undo := func(ctx context.Context) error {
		restored, _ := current.Targets()
		current.SetTargets(slices.DeleteFunc(slices.Clone(restored), func(t string) bool { return t == target }))
		current.UpdateTime = prior
		return s.jobs.Save(ctx, current)
	}
	if err := s.saveAndCommit(ctx, OpAddTarget, current, undo); err != nil {
		return Result{}, err
	}

	s.logger.Info("target added", "job", id.String(), "target", target)
	return Result{Detail: fmt.Sprintf("Target %s added to job %s successfully", target, id.JobName)}, nil
}

// DeleteTarget removes target. Removing an absent target is a no-op.
func (s *JobService) DeleteTarget(ctx context.Context, id job.Identity, target string, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpDeleteTarget, res, err) }()

	current, targets, err := s.fetchWithTargets(ctx, id, ac)
	if err != nil {
		return Result{}, err
	}
	idx := slices.Index(targets, target)
	if idx < 0 {
		return Result{Detail: fmt.Sprintf("Target %s does not exist in job %s", target, id.JobName), Noop: true}, nil
	}

	prior := current.UpdateTime
	current.SetTargets(slices.Delete(slices.Clone(targets), idx, idx+1))

	undo := func(ctx context.Context) error {
		remaining, _ := current.Targets()
		current.SetTargets(slices.Insert(slices.Clone(remaining), idx, target))
		current.UpdateTime = prior
		return s.jobs.Save(ctx, current)
	}
	if err := s.saveAndCommit(ctx, OpDeleteTarget, current, undo); err != nil {
		return Result{}, err
	}

	s.logger.Info("target deleted", "job", id.String(), "target", target)
	return Result{Detail: fmt.Sprintf("Target %s deleted from job %s successfully", target, id.JobName)}, nil
}

// AddLabels merges labels into the job, overwriting existing keys.
func (s *JobService) AddLabels(ctx context.Context, id job.Identity, labels map[string]string, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpAddLabels, res, err) }()

	if err := ac.Authorize(id.MaasPool); err != nil {
		return Result{}, err
	}
	current, err := s.fetch(ctx, id)
	if err != nil {
		return Result{}, err
	}

	original, prior := maps.Clone(current.Labels), current.UpdateTime
	if current.Labels == nil {
		current.Labels = make(map[string]string, len(labels))
	}
	maps.Copy(current.Labels, labels)

	if err := s.saveAndCommit(ctx, OpAddLabels, current, s.restoreLabels(current, original, prior)); err != nil {
		return Result{}, err
	}

	keys := slices.Sorted(maps.Keys(labels))
	s.logger.Info("labels added", "job", id.String(), "keys", keys)
	return Result{Detail: fmt.Sprintf("Label %s added to job %s successfully", strings.Join(keys, ","), id.JobName)}, nil
}

// UpdateLabel changes the value of an existing label.
func (s *JobService) UpdateLabel(ctx context.Context, id job.Identity, key, value string, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpUpdateLabel, res, err) }()

	if err := ac.Authorize(id.MaasPool); err != nil {
		return Result{}, err
	}
	current, err := s.fetch(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if _, ok := current.Labels[key]; !ok {
		return Result{}, joberr.BadRequest("Label %s not found", key)
	}

	original, prior := maps.Clone(current.Labels), current.UpdateTime
	current.Labels[key] = value

	if err := s.saveAndCommit(ctx, OpUpdateLabel, current, s.restoreLabels(current, original, prior)); err != nil {
		return Result{}, err
	}

	s.logger.Info("label updated", "job", id.String(), "key", key)
	return Result{Detail: fmt.Sprintf("Label %s updated to job %s successfully", key, id.JobName)}, nil
}

// DeleteLabel removes a label. Removing an absent key is a no-op.
func (s *JobService) DeleteLabel(ctx context.Context, id job.Identity, key string, ac auth.Context) (res Result, err error) {

	defer func() { s.observe(OpDeleteLabel, res, err) }()

	if err := ac.Authorize(id.MaasPool); err != nil {
		return Result{}, err
	}
	current, err := s.fetch(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if _, ok := current.Labels[key]; !ok {
		return Result{Detail: fmt.Sprintf("Label %s does not exist in job %s", key, id.JobName), Noop: true}, nil
	}

	original, prior := maps.Clone(current.Labels), current.UpdateTime
	delete(current.Labels, key)

	if err := s.saveAndCommit(ctx, OpDeleteLabel, current, s.restoreLabels(current, original, prior)); err != nil {
		return Result{}, err
	}

	s.logger.Info("label deleted", "job", id.String(), "key", key)
	return Result{Detail: fmt.Sprintf("Label %s deleted from job %s successfully", key, id.JobName)}, nil
}

func (s *JobService) fetch(ctx context.Context, id job.Identity) (*job.Job, error) {

	current, err := s.jobs.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, joberr.JobNotFound(id.JobName, id.CollectorCluster)
	}
	return current, nil
}

func (s *JobService) fetchWithTargets(ctx context.Context, id job.Identity, ac auth.Context) (*job.Job, []string, error) {

	if err := ac.Authorize(id.MaasPool); err != nil {
		return nil, nil, err
	}
	current, err := s.fetch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	targets, ok := current.Targets()
	if !ok {
		return nil, nil, joberr.UnsupportedOperation("Job %s of type %s does not support targets", id.JobName, current.Type)
	}
	return current, targets, nil
}

func (s *JobService) restoreLabels(j *job.Job, labels map[string]string, prior time.Time) func(context.Context) error {

	return func(ctx context.Context) error {
		j.Labels = labels
		j.UpdateTime = prior
		return s.jobs.Save(ctx, j)
	}
}

func (s *JobService) encrypt(password string) (string, error) {

	enc, err := s.cipher.Encrypt(password)
	if err != nil {
		return "", fmt.Errorf("encrypt basic auth password: %w", err)
	}
	return enc, nil
}

// saveAndCommit persists a record mutated in memory and announces it with
// the full payload.
func (s *JobService) saveAndCommit(ctx context.Context, op string, j *job.Job, undo func(context.Context) error) error {

	j.UpdateTime = store.Now()
	if err := s.jobs.Save(ctx, j); err != nil {
		return err
	}
	return s.commit(ctx, op, event.New(event.ActionUpdate, j, j.EventPayload()), undo)
}

// commit publishes e for a store write that already happened. If the
// publish fails, undo reverts the write. Neither step observes the caller's
// cancellation.
func (s *JobService) commit(ctx context.Context, op string, e event.Event, undo func(context.Context) error) error {

	ctx = context.WithoutCancel(ctx)

	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	pubErr := s.publisher.Publish(pubCtx, e)
	cancel()

	if pubErr == nil {
		s.recorder.Published(string(e.Action), metrics.ResultSuccess, time.Since(start))
		return nil
	}
	s.recorder.Published(string(e.Action), metrics.ResultFailure, time.Since(start))
	if !errors.Is(pubErr, joberr.ErrPublishFailure) {
		pubErr = joberr.PublishFailure(pubErr)
	}

	s.logger.Error(pubErr, "publish failed, reverting store write", "operation", op, "job", e.JobName, "pool", e.MaasPoolName)

	undoCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if undoErr := undo(undoCtx); undoErr != nil {
		s.recorder.Compensated(op, metrics.ResultFailure)
		s.logger.Error(undoErr, "compensation failed, store and event stream disagree",
			"operation", op, "job", e.JobName, "pool", e.MaasPoolName, "collector", e.CollectorName, "publishError", pubErr.Error())
		return &joberr.CompensationError{Operation: op, PublishErr: pubErr, UndoErr: undoErr}
	}

	s.recorder.Compensated(op, metrics.ResultSuccess)
	return pubErr
}

func (s *JobService) observe(op string, res Result, err error) {

	switch {
	case err != nil:
		s.recorder.Operation(op, metrics.ResultFailure)
		s.logger.V(1).Info("operation failed", "operation", op, "kind", joberr.Kind(err), "error", err.Error())
	case res.Noop:
		s.recorder.Operation(op, metrics.ResultNoop)
	default:
		s.recorder.Operation(op, metrics.ResultSuccess)
	}
}
