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

// Package server owns the process lifecycle: it opens the store, starts
// the event publisher and hands both to the job service.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"maas.io/maas-jobs/internal/auth"
	"maas.io/maas-jobs/internal/event/natspub"
	"maas.io/maas-jobs/internal/metrics"
	"maas.io/maas-jobs/internal/pool"
	"maas.io/maas-jobs/internal/service"
	"maas.io/maas-jobs/internal/store"
	"maas.io/maas-jobs/internal/store/memory"
	"maas.io/maas-jobs/internal/store/sqlstore"
	"maas.io/maas-jobs/internal/util/crypto"
	"maas.io/maas-jobs/pkg/logger"
	"maas.io/maas-jobs/pkg/types"
	"maas.io/maas-jobs/pkg/types/job"
)

const DriverMemory = "memory"

// Backend is everything the process needs from persistence.
type Backend interface {
	store.JobStore
	store.PoolStore
	store.APIKeyStore

	PutPool(ctx context.Context, p *job.Pool) error
	PutAPIKey(ctx context.Context, k *job.APIKey) error
	Migrate(ctx context.Context) error
	Close() error
}

type Server struct {
	Version string
	Config  *types.ServiceConfig
	Logger  logger.Logger
	Metrics *metrics.Registry

	backend   Backend
	publisher *natspub.Publisher
	jobs      *service.JobService
}

func New(cfg *types.ServiceConfig, version string, logOut io.Writer) *Server {

	return &Server{
		Version: version,
		Config:  cfg,
		Logger:  logger.NewLogger(logOut, &cfg.Log),
		Metrics: metrics.New(),
	}
}

// Open connects the store. It is enough for read-only commands.
func (s *Server) Open(ctx context.Context) error {

	if s.backend != nil {
		return nil
	}

	backend, err := openBackend(ctx, s.Config.Store, s.Logger.WithName(string(types.LogComponentStore)))
	if err != nil {
		return err
	}

	cipher, err := crypto.NewCipher(s.Config.Service.SecretKey)
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("init password cipher: %w", err)
	}

	s.backend = backend
	s.publisher = natspub.New(natspub.Options{
		URL:            s.Config.NATS.URL,
		Stream:         s.Config.NATS.Stream,
		SubjectPrefix:  s.Config.NATS.SubjectPrefix,
		ClientName:     s.Config.NATS.ClientName,
		User:           s.Config.NATS.User,
		Password:       s.Config.NATS.Password,
		ConnectTimeout: s.Config.NATS.ConnectTimeout,
		PublishTimeout: s.Config.NATS.PublishTimeout,
	}, s.Logger.WithName(string(types.LogComponentPublisher)))

	s.jobs = service.New(service.Config{
		Jobs:      backend,
		Pools:     pool.NewOracle(backend),
		Publisher: s.publisher,
		Cipher:    cipher,
		Recorder:  s.Metrics,
		Logger:    s.Logger,
		Timeout:   s.Config.NATS.PublishTimeout,
	})
	return nil
}

// Start opens the store and connects the publisher. Mutating commands
// need it.
func (s *Server) Start(ctx context.Context) error {

	if err := s.Open(ctx); err != nil {
		return err
	}
	if err := s.publisher.Start(ctx); err != nil {
		s.Logger.Error(err, "event publisher start failed")
		return err
	}
	return nil
}

func (s *Server) Jobs() *service.JobService {

	return s.jobs
}

func (s *Server) Backend() Backend {

	return s.backend
}

func (s *Server) Resolver() *auth.Resolver {

	return auth.NewResolver(s.backend)
}

// Close shuts the publisher and the store down and flushes metrics.
func (s *Server) Close() error {

	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
		s.backend = nil
	}
	if path := s.Config.Metrics.Textfile; path != "" {
		if err := s.Metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg types.StoreConfig, log logger.Logger) (Backend, error) {

	if cfg.Driver == DriverMemory {
		log.Info("using in-memory store, nothing is persisted")
		return memory.New(), nil
	}

	st, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	}, log)
	if err != nil {
		return nil, err
	}
	return st, nil
}
