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

// Package pool answers pool membership questions against the pool store.
// Nothing is cached: every check reads the current pool record.
package pool

import (
	"context"

	"maas.io/maas-jobs/internal/store"
	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

type Oracle struct {
	pools store.PoolStore
}

func NewOracle(pools store.PoolStore) *Oracle {

	return &Oracle{pools: pools}
}

func (o *Oracle) GetPool(ctx context.Context, name string) (*job.Pool, error) {

	p, err := o.pools.GetPool(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, joberr.PoolNotFound(name)
	}
	return p, nil
}

// CheckCollectorInPool reports whether collector belongs to the named pool.
// A missing pool is an error, not a false.
func (o *Oracle) CheckCollectorInPool(ctx context.Context, poolName, collector string) (bool, error) {

	p, err := o.GetPool(ctx, poolName)
	if err != nil {
		return false, err
	}
	return p.HasCollector(collector), nil
}
