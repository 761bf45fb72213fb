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

// Package sqlstore persists jobs, pools and API keys through database/sql.
// Each job row keys on (maas_pool, collector_cluster, job_name) and carries
// the job as a JSON document.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"maas.io/maas-jobs/internal/store"
	"maas.io/maas-jobs/pkg/logger"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

var (
	_ store.JobStore    = (*Store)(nil)
	_ store.PoolStore   = (*Store)(nil)
	_ store.APIKeyStore = (*Store)(nil)
)

type Store struct {
	db      *sql.DB
	dialect *dialect
	logger  logger.Logger
}

type Options struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

func Open(ctx context.Context, opts Options, log logger.Logger) (*Store, error) {

	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := d.prepareDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.driver, err)
	}

	switch {
	case d.maxConns > 0:
		db.SetMaxOpenConns(d.maxConns)
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", d.driver, err)
	}

	log.Info("job store opened", "driver", d.driver)

	return &Store{db: db, dialect: d, logger: log}, nil
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {

	for _, ddl := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate %s store: %w", s.dialect.driver, err)
		}
	}
	s.logger.Info("job store schema ready")
	return nil
}

func (s *Store) Close() error {

	return s.db.Close()
}

const (
	queryFindJob   = `SELECT document FROM maas_jobs WHERE maas_pool = ? AND collector_cluster = ? AND job_name = ?`
	queryCreateJob = `INSERT INTO maas_jobs (maas_pool, collector_cluster, job_name, job_type, document) VALUES (?, ?, ?, ?, ?)`
	queryUpdateJob = `UPDATE maas_jobs SET job_type = ?, document = ? WHERE maas_pool = ? AND collector_cluster = ? AND job_name = ?`
	queryDeleteJob = `DELETE FROM maas_jobs WHERE maas_pool = ? AND collector_cluster = ? AND job_name = ?`

	queryGetPool    = `SELECT collector_clusters FROM maas_pools WHERE name = ?`
	queryDeletePool = `DELETE FROM maas_pools WHERE name = ?`
	queryInsertPool = `INSERT INTO maas_pools (name, collector_clusters) VALUES (?, ?)`

	queryGetKey    = `SELECT document FROM maas_api_keys WHERE key_hash = ?`
	queryDeleteKey = `DELETE FROM maas_api_keys WHERE key_hash = ?`
	queryInsertKey = `INSERT INTO maas_api_keys (key_hash, document) VALUES (?, ?)`
)

func (s *Store) Find(ctx context.Context, id job.Identity) (*job.Job, error) {

	var raw string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(queryFindJob), id.MaasPool, id.CollectorCluster, id.JobName).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}

	var doc job.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job.FromDocument(doc)
}

// Create relies on the primary key: two concurrent inserts of the same
// identity cannot both succeed.
func (s *Store) Create(ctx context.Context, j *job.Job) error {

	raw, err := encodeJob(j)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(queryCreateJob), j.MaasPool, j.CollectorCluster, j.JobName, string(j.Type), raw)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return joberr.Conflict(j.JobName, j.CollectorCluster)
		}
		return fmt.Errorf("create job %s: %w", j.Identity(), err)
	}

	s.logger.V(1).Info("job inserted", "job", j.Identity().String())
	return nil
}

func (s *Store) Replace(ctx context.Context, j *job.Job, u *job.Update) error {

	next := j.Clone()
	if err := u.Apply(next); err != nil {
		return err
	}
	next.UpdateTime = store.Now()

	if err := s.Save(ctx, next); err != nil {
		return err
	}
	*j = *next
	return nil
}

func (s *Store) Save(ctx context.Context, j *job.Job) error {

	raw, err := encodeJob(j)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(queryUpdateJob), string(j.Type), raw, j.MaasPool, j.CollectorCluster, j.JobName)
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.Identity(), err)
	}
	if err := requireRow(res, j.JobName, j.CollectorCluster); err != nil {
		return err
	}

	s.logger.V(1).Info("job saved", "job", j.Identity().String())
	return nil
}

func (s *Store) Delete(ctx context.Context, id job.Identity) error {

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(queryDeleteJob), id.MaasPool, id.CollectorCluster, id.JobName)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if err := requireRow(res, id.JobName, id.CollectorCluster); err != nil {
		return err
	}

	s.logger.V(1).Info("job deleted", "job", id.String())
	return nil
}

func (s *Store) GetPool(ctx context.Context, name string) (*job.Pool, error) {

	var raw string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(queryGetPool), name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pool %s: %w", name, err)
	}

	p := &job.Pool{Name: name}
	if err := json.Unmarshal([]byte(raw), &p.CollectorClusters); err != nil {
		return nil, fmt.Errorf("decode pool %s: %w", name, err)
	}
	return p, nil
}

// PutPool creates or replaces a pool.
func (s *Store) PutPool(ctx context.Context, p *job.Pool) error {

	clusters := p.CollectorClusters
	if clusters == nil {
		clusters = []string{}
	}
	raw, err := json.Marshal(clusters)
	if err != nil {
		return fmt.Errorf("encode pool %s: %w", p.Name, err)
	}

	return s.replaceRow(ctx, queryDeletePool, queryInsertPool, p.Name, string(raw))
}

func (s *Store) GetAPIKey(ctx context.Context, keyHash string) (*job.APIKey, error) {

	var raw string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(queryGetKey), keyHash).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}

	var k job.APIKey
	if err := json.Unmarshal([]byte(raw), &k); err != nil {
		return nil, fmt.Errorf("decode api key: %w", err)
	}
	return &k, nil
}

// PutAPIKey creates or replaces a key record. Only the hash is stored.
func (s *Store) PutAPIKey(ctx context.Context, k *job.APIKey) error {

	raw, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("encode api key: %w", err)
	}

	return s.replaceRow(ctx, queryDeleteKey, queryInsertKey, k.KeyHash, string(raw))
}

func (s *Store) replaceRow(ctx context.Context, deleteQuery, insertQuery, key, value string) (err error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.dialect.rebind(deleteQuery), key); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	if _, err = tx.ExecContext(ctx, s.dialect.rebind(insertQuery), key, value); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return tx.Commit()
}

func encodeJob(j *job.Job) (string, error) {

	raw, err := json.Marshal(j.Document())
	if err != nil {
		return "", fmt.Errorf("encode job %s: %w", j.Identity(), err)
	}
	return string(raw), nil
}

func requireRow(res sql.Result, jobName, collector string) error {

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return joberr.JobNotFound(jobName, collector)
	}
	return nil
}
