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

package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maas.io/maas-jobs/internal/auth"
	"maas.io/maas-jobs/pkg/types"
	"maas.io/maas-jobs/pkg/types/job"
)

func testConfig(t *testing.T, natsURL string) *types.ServiceConfig {
	return &types.ServiceConfig{
		Service: types.ServiceInfo{Name: "maas-jobs", SecretKey: "k"},
		Log:     *types.DefaultLogging(),
		Store:   types.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "jobs.db")},
		NATS: types.NATSConfig{
			URL:            natsURL,
			Stream:         "MAAS_JOBS",
			SubjectPrefix:  "maas.jobs",
			PublishTimeout: time.Second,
			ConnectTimeout: time.Second,
		},
		Metrics: types.MetricsConfig{Textfile: filepath.Join(t.TempDir(), "maas_jobs.prom")},
	}
}

func TestServerEndToEnd(t *testing.T) {
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	ns := natstest.RunServer(&opts)
	defer ns.Shutdown()

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	ctx := context.Background()
	stream, err := js.CreateStream(ctx, jetstream.StreamConfig{Name: "MAAS_JOBS", Subjects: []string{"maas.jobs.>"}})
	require.NoError(t, err)

	cfg := testConfig(t, ns.ClientURL())
	srv := New(cfg, "test", &bytes.Buffer{})
	require.NoError(t, srv.Start(ctx))
	require.NoError(t, srv.Backend().Migrate(ctx))
	require.NoError(t, srv.Backend().PutPool(ctx, &job.Pool{Name: "p1", CollectorClusters: []string{"c1"}}))

	j := &job.Job{
		JobName:          "node",
		MaasPool:         "p1",
		CollectorCluster: "c1",
		Type:             job.TypeGeneral,
		BasicAuth:        &job.BasicAuth{Username: "u", Password: "pw"},
		General:          &job.GeneralSpec{Targets: []string{"h1:9090"}},
	}
	_, err = srv.Jobs().Create(ctx, j, auth.Context{Pools: []string{"p1"}})
	require.NoError(t, err)

	got, err := srv.Jobs().Get(ctx, j.Identity(), auth.Context{IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, job.MaskedPassword, got.BasicAuth.Password)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	require.NoError(t, srv.Close())

	raw, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `maas_jobs_operations_total{operation="create",result="success"} 1`)
}

func TestServerOpenWithoutBroker(t *testing.T) {
	cfg := testConfig(t, "nats://127.0.0.1:1")
	cfg.Store.Driver = DriverMemory
	srv := New(cfg, "test", &bytes.Buffer{})

	ctx := context.Background()
	require.NoError(t, srv.Open(ctx))
	defer func() { _ = srv.Close() }()

	_, err := srv.Jobs().Get(ctx, job.Identity{JobName: "x", MaasPool: "p1", CollectorCluster: "c1"}, auth.Context{IsAdmin: true})
	assert.Error(t, err)

	assert.Error(t, srv.Start(ctx))
}

func TestServerUnknownDriver(t *testing.T) {
	cfg := testConfig(t, "nats://127.0.0.1:1")
	cfg.Store.Driver = "cassandra"

	err := New(cfg, "test", &bytes.Buffer{}).Open(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver")
}
