// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/fleetfs/fleetfs/internal/metrics"
)

func TestObserveRequestIncrementsCountersByOp(t *testing.T) {
	h := metrics.New()

	h.ObserveRequest("read", 0.001, false)
	h.ObserveRequest("read", 0.002, false)
	h.ObserveRequest("write", 0.003, true)

	reads := testutil.CollectAndCount(h.Registry())
	assert.Greater(t, reads, 0)
}

func TestReadaheadCounters(t *testing.T) {
	h := metrics.New()
	h.RecordReadaheadHit()
	h.RecordReadaheadHit()
	h.RecordReadaheadMiss()

	mf, err := h.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, mf)
}

func TestApplyLagAndIndexGauges(t *testing.T) {
	h := metrics.New()
	h.SetApplyLag(1.5)
	h.SetApplyIndex(42)

	mf, err := h.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, mf)
}
