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

package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maas.io/maas-jobs/internal/store"
	"maas.io/maas-jobs/pkg/logger"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), Options{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "jobs.db"),
	}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()), "migrate must be repeatable")
	return s
}

func sampleJob() *job.Job {
	path := "/metrics"
	return &job.Job{
		JobName:          "node",
		MaasPool:         "p1",
		CollectorCluster: "c1",
		Type:             job.TypeGeneral,
		Labels:           map[string]string{"team": "sre"},
		BasicAuth:        &job.BasicAuth{Username: "u", Password: "enc"},
		TimeCreated:      store.Now(),
		General:          &job.GeneralSpec{Targets: []string{"h1:9090"}, MetricsPath: &path},
	}
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	j := sampleJob()

	got, err := s.Find(ctx, j.Identity())
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Create(ctx, j))

	got, err = s.Find(ctx, j.Identity())
	require.NoError(t, err)
	assert.Equal(t, j, got)

	err = s.Create(ctx, sampleJob())
	assert.True(t, errors.Is(err, joberr.ErrConflict))

	interval := 15
	require.NoError(t, s.Replace(ctx, got, &job.Update{ScrapeInterval: &interval}))
	assert.False(t, got.UpdateTime.IsZero())

	replaced, err := s.Find(ctx, j.Identity())
	require.NoError(t, err)
	assert.Equal(t, 15, *replaced.ScrapeInterval)
	assert.Equal(t, got, replaced)

	require.NoError(t, s.Save(ctx, j))
	restored, err := s.Find(ctx, j.Identity())
	require.NoError(t, err)
	assert.Equal(t, j, restored)

	require.NoError(t, s.Delete(ctx, j.Identity()))
	got, err = s.Find(ctx, j.Identity())
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.True(t, errors.Is(s.Delete(ctx, j.Identity()), joberr.ErrNotFound))
	assert.True(t, errors.Is(s.Save(ctx, j), joberr.ErrNotFound))
}

func TestReplaceRejectsForeignFieldWithoutWriting(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	j := sampleJob()
	require.NoError(t, s.Create(ctx, j))

	current := j.Clone()
	err := s.Replace(ctx, current, &job.Update{Endpoints: []string{"http://sd"}})
	assert.True(t, errors.Is(err, joberr.ErrUnsupportedOperation))

	got, err := s.Find(ctx, j.Identity())
	require.NoError(t, err)
	assert.Equal(t, j, got)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Create(ctx, sampleJob())
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, joberr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestPoolsAndKeys(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	p, err := s.GetPool(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.PutPool(ctx, &job.Pool{Name: "p1", CollectorClusters: []string{"c1"}}))
	require.NoError(t, s.PutPool(ctx, &job.Pool{Name: "p1", CollectorClusters: []string{"c1", "c2"}}))

	p, err = s.GetPool(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, p.CollectorClusters)

	k, err := s.GetAPIKey(ctx, "hash")
	require.NoError(t, err)
	assert.Nil(t, k)

	require.NoError(t, s.PutAPIKey(ctx, &job.APIKey{KeyHash: "hash", MaasPools: []string{"p1"}, TimeCreated: store.Now()}))
	k, err = s.GetAPIKey(ctx, "hash")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, k.MaasPools)
	assert.False(t, k.IsAdmin)
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ? WHERE b = ? AND c = ?`

	pg, err := dialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, `UPDATE t SET a = $1 WHERE b = $2 AND c = $3`, pg.rebind(q))

	ms, err := dialectFor("sqlserver")
	require.NoError(t, err)
	assert.Equal(t, `UPDATE t SET a = @p1 WHERE b = @p2 AND c = @p3`, ms.rebind(q))

	my, err := dialectFor("mysql")
	require.NoError(t, err)
	assert.Equal(t, q, my.rebind(q))

	_, err = dialectFor("mongodb")
	assert.Error(t, err)
}

func TestUniqueViolationDetection(t *testing.T) {
	pg, _ := dialectFor(DriverPostgres)
	assert.True(t, pg.isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, pg.isUniqueViolation(&pq.Error{Code: "23503"}))

	my, _ := dialectFor(DriverMySQL)
	assert.True(t, my.isUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, my.isUniqueViolation(errors.New("other")))
}

func TestMySQLDSNReportsFoundRows(t *testing.T) {
	dsn, err := mysqlDSN("user:pw@tcp(db:3306)/maas")
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, "maas", cfg.DBName)
}
