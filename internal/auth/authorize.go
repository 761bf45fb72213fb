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

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	joberr "maas.io/maas-jobs/pkg/types/err"
	"maas.io/maas-jobs/pkg/types/job"
)

// Context is what a caller is allowed to touch.
type Context struct {
	Pools   []string
	IsAdmin bool
}

// Authorize allows admins everywhere and everyone else on their own pools.
func Authorize(pools []string, pool string, isAdmin bool) error {

	if isAdmin || slices.Contains(pools, pool) {
		return nil
	}
	return joberr.Unauthorized(pool)
}

func (c Context) Authorize(pool string) error {

	return Authorize(c.Pools, pool, c.IsAdmin)
}

type KeyStore interface {
	GetAPIKey(ctx context.Context, keyHash string) (*job.APIKey, error)
}

// Resolver turns a raw API key into an authorization context.
type Resolver struct {
	keys KeyStore
}

func NewResolver(keys KeyStore) *Resolver {

	return &Resolver{keys: keys}
}

func (r *Resolver) Resolve(ctx context.Context, rawKey string) (Context, error) {

	if rawKey == "" {
		return Context{}, joberr.BadRequest("API key is required")
	}

	key, err := r.keys.GetAPIKey(ctx, HashKey(rawKey))
	if err != nil {
		return Context{}, err
	}
	if key == nil {
		return Context{}, &joberr.Error{Sentinel: joberr.ErrUnauthorized, Message: "API key is not valid"}
	}

	return Context{Pools: slices.Clone(key.MaasPools), IsAdmin: key.IsAdmin}, nil
}

// HashKey is the digest stored for an API key.
func HashKey(rawKey string) string {

	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
