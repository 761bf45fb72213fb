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

package natspub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maas.io/maas-jobs/internal/event"
	"maas.io/maas-jobs/pkg/logger"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

const (
	testStream = "MAAS_JOBS"
	testPrefix = "maas.jobs"
)

func runJetStream(t *testing.T) *server.Server {
	t.Helper()

	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := natstest.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func createStream(t *testing.T, url string) jetstream.Stream {
	t.Helper()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.CreateStream(context.Background(), jetstream.StreamConfig{
		Name:     testStream,
		Subjects: []string{testPrefix + ".>"},
	})
	require.NoError(t, err)
	return stream
}

func newPublisher(url string) *Publisher {
	return New(Options{
		URL:            url,
		Stream:         testStream,
		SubjectPrefix:  testPrefix,
		ClientName:     "maas-jobs-test",
		PublishTimeout: 500 * time.Millisecond,
	}, logger.Discard())
}

func sampleEvent() event.Event {
	j := &job.Job{
		JobName:          "node",
		MaasPool:         "pool.a",
		CollectorCluster: "c1",
		Type:             job.TypeGeneral,
		General:          &job.GeneralSpec{Targets: []string{"h1:9090"}},
	}
	return event.New(event.ActionCreate, j, j.EventPayload())
}

func TestPublishWaitsForAck(t *testing.T) {
	s := runJetStream(t)
	stream := createStream(t, s.ClientURL())

	p := newPublisher(s.ClientURL())
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Close() })

	e := sampleEvent()
	require.NoError(t, p.Publish(ctx, e))

	msg, err := stream.GetLastMsgForSubject(ctx, "maas.jobs.pool_2Ea")
	require.NoError(t, err)
	assert.Equal(t, "pool.a", msg.Header.Get(PartitionKeyHeader))
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))

	var got event.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, e.JobName, got.JobName)
	assert.Equal(t, event.ActionCreate, got.Action)
	assert.Equal(t, "pool.a", got.MaasPoolName)
}

func TestPublishPreservesPoolOrder(t *testing.T) {
	s := runJetStream(t)
	stream := createStream(t, s.ClientURL())

	p := newPublisher(s.ClientURL())
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Close() })

	for _, a := range []event.Action{event.ActionCreate, event.ActionUpdate, event.ActionDelete} {
		e := sampleEvent()
		e.Action = a
		require.NoError(t, p.Publish(ctx, e))
	}

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.State.Msgs)

	last, err := stream.GetLastMsgForSubject(ctx, p.Subject("pool.a"))
	require.NoError(t, err)
	var got event.Event
	require.NoError(t, json.Unmarshal(last.Data, &got))
	assert.Equal(t, event.ActionDelete, got.Action)
}

func TestPublishBeforeStart(t *testing.T) {
	p := newPublisher("nats://127.0.0.1:1")

	err := p.Publish(context.Background(), sampleEvent())
	assert.True(t, errors.Is(err, joberr.ErrPublishFailure))
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestStartMissingStream(t *testing.T) {
	s := runJetStream(t)

	p := newPublisher(s.ClientURL())
	err := p.Start(context.Background())
	assert.ErrorContains(t, err, "stream MAAS_JOBS not available")

	err = p.Publish(context.Background(), sampleEvent())
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestPublishWithoutAckFails(t *testing.T) {
	s := runJetStream(t)
	stream := createStream(t, s.ClientURL())

	p := newPublisher(s.ClientURL())
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Close() })

	require.NoError(t, stream.Purge(ctx))
	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	require.NoError(t, js.DeleteStream(ctx, testStream))

	err = p.Publish(ctx, sampleEvent())
	assert.True(t, errors.Is(err, joberr.ErrPublishFailure))
}

func TestCloseIsIdempotent(t *testing.T) {
	s := runJetStream(t)
	createStream(t, s.ClientURL())

	p := newPublisher(s.ClientURL())
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), sampleEvent())
	assert.True(t, errors.Is(err, ErrNotConnected))
}

func TestSubjectToken(t *testing.T) {
	p := newPublisher("")
	assert.Equal(t, "maas.jobs.p1", p.Subject("p1"))
	assert.Equal(t, "maas.jobs.a_2Eb_2Ac_3Ed", p.Subject("a.b*c>d"))
	assert.Equal(t, "maas.jobs._", p.Subject(""))
	assert.Equal(t, "maas.jobs.pool_5Fa", p.Subject("pool_a"))
	assert.NotEqual(t, p.Subject("pool.a"), p.Subject("pool_a"))
	assert.NotEqual(t, p.Subject(""), p.Subject("_"))
}

func TestPublishDuringDisconnectIsNeverDelivered(t *testing.T) {
	storeDir := t.TempDir()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = storeDir
	s := natstest.RunServer(&opts)
	createStream(t, s.ClientURL())

	p := newPublisher(s.ClientURL())
	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Close() })

	port := s.Addr().(*net.TCPAddr).Port
	s.Shutdown()
	s.WaitForShutdown()
	require.Eventually(t, func() bool { return !p.nc.IsConnected() }, 5*time.Second, 20*time.Millisecond)

	err := p.Publish(ctx, sampleEvent())
	require.True(t, errors.Is(err, joberr.ErrPublishFailure), "%v", err)

	opts.Port = port
	s = natstest.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	require.Eventually(t, func() bool { return p.nc.IsConnected() }, 10*time.Second, 50*time.Millisecond)

	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	stream, err := js.Stream(ctx, testStream)
	require.NoError(t, err)

	assert.Never(t, func() bool {
		info, err := stream.Info(ctx)
		return err != nil || info.State.Msgs != 0
	}, 2*time.Second, 100*time.Millisecond, "a failed publish reached the stream after reconnect")
}
