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

package metadata

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/clock"
	"github.com/fleetfs/fleetfs/internal/datastore/localdisk"
)

func TestViolationPanicsByDefault(t *testing.T) {
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)
	s := New(data, clock.NewSimulatedClock(time.Unix(1000, 0)), 0, 0, 0o755)

	assert.Panics(t, func() { s.violation("broken: %d", 1) })
}

func TestViolationLogsInsteadOfPanickingWhenExitDisabled(t *testing.T) {
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := New(data, clock.NewSimulatedClock(time.Unix(1000, 0)), 0, 0, 0o755,
		WithInvariantLogging(logger, false))

	assert.NotPanics(t, func() { s.violation("broken: %d", 1) })
	assert.Contains(t, buf.String(), "broken: 1")
}

func TestLockUnlockReportsSlowHoldWhenMutexLoggingEnabled(t *testing.T) {
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)

	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := New(data, clk, 0, 0, 0o755, WithMutexLogging(logger))

	s.lock()
	clk.AdvanceTime(mutexSlowThreshold * 2)
	s.unlock()

	assert.Contains(t, buf.String(), "store mutex held longer than expected")
}
