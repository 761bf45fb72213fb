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

// Package natspub publishes job events to a NATS JetStream stream. A publish
// returns only after the stream acknowledged the message.
package natspub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"maas.io/maas-jobs/internal/event"
	"maas.io/maas-jobs/pkg/logger"
	joberr "maas.io/maas-jobs/pkg/types/err"
)

// PartitionKeyHeader carries the raw pool name of an event.
const PartitionKeyHeader = "Maas-Partition-Key"

var ErrNotConnected = errors.New("publisher is not connected")

type Options struct {
	URL            string
	Stream         string
	SubjectPrefix  string
	ClientName     string
	User           string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

var _ event.Publisher = (*Publisher)(nil)

type Publisher struct {
	opts   Options
	logger logger.Logger

	mu sync.RWMutex
	nc *nats.Conn
	js jetstream.JetStream
}

func New(opts Options, log logger.Logger) *Publisher {

	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &Publisher{opts: opts, logger: log}
}

// Start opens the connection and checks that the stream exists. It is
// called once when the process starts.
func (p *Publisher) Start(ctx context.Context) error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc != nil {
		return nil
	}

	connOpts := []nats.Option{
		nats.Name(p.opts.ClientName),
		nats.Timeout(p.opts.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectBufSize(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Error(err, "nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.logger.Info("nats reconnected", "url", nc.ConnectedUrlRedacted())
		}),
	}
	if p.opts.User != "" {
		connOpts = append(connOpts, nats.UserInfo(p.opts.User, p.opts.Password))
	}

	nc, err := nats.Connect(p.opts.URL, connOpts...)
	if err != nil {
		return fmt.Errorf("connect to nats %s: %w", p.opts.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("create jetstream context: %w", err)
	}

	if _, err := js.Stream(ctx, p.opts.Stream); err != nil {
		nc.Close()
		return fmt.Errorf("stream %s not available: %w", p.opts.Stream, err)
	}

	p.nc, p.js = nc, js
	p.logger.Info("event publisher started", "url", nc.ConnectedUrlRedacted(), "stream", p.opts.Stream)
	return nil
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.nc, p.js = nil, nil
	p.logger.Info("event publisher stopped")
	return err
}

func (p *Publisher) Publish(ctx context.Context, e event.Event) error {

	p.mu.RLock()
	js := p.js
	p.mu.RUnlock()

	if js == nil {
		return joberr.PublishFailure(ErrNotConnected)
	}

	body, err := e.Encode()
	if err != nil {
		return joberr.PublishFailure(err)
	}

	msg := nats.NewMsg(p.Subject(e.MaasPoolName))
	msg.Data = body
	msg.Header.Set(PartitionKeyHeader, string(e.Key()))

	ctx, cancel := context.WithTimeout(ctx, p.opts.PublishTimeout)
	defer cancel()

	ack, err := js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(uuid.NewString()),
		jetstream.WithExpectStream(p.opts.Stream),
	)
	if err != nil {
		p.logger.Error(err, "failed to publish job event", "job", e.JobName, "action", string(e.Action), "subject", msg.Subject)
		return joberr.PublishFailure(err)
	}

	p.logger.V(1).Info("job event published", "job", e.JobName, "action", string(e.Action), "subject", msg.Subject, "seq", ack.Sequence)
	return nil
}

// Subject is where events of a pool go: <prefix>.<pool token>.
func (p *Publisher) Subject(pool string) string {

	return p.opts.SubjectPrefix + "." + subjectToken(pool)
}

// subjectToken makes a pool name usable as a single subject token. Reserved
// characters and '_' itself become _XX (hex), so distinct pools never share
// a subject.
func subjectToken(s string) string {

	if s == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '_', '.', '*', '>', ' ', '\t', '\r', '\n':
			fmt.Fprintf(&b, "_%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
