/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounts(t *testing.T) {
	r := New()

	r.Operation("create", ResultSuccess)
	r.Operation("create", ResultSuccess)
	r.Operation("delete", ResultFailure)
	r.Published("create", ResultSuccess, 10*time.Millisecond)
	r.Compensated("update", ResultFailure)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("create", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("delete", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.published.WithLabelValues("create", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.compensations.WithLabelValues("update", ResultFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.publishTime))
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Operation("create", ResultSuccess)

	path := filepath.Join(t.TempDir(), "maas_jobs.prom")
	require.NoError(t, r.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `maas_jobs_operations_total{operation="create",result="success"} 1`)
}
