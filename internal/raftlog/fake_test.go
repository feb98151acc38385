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

package raftlog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/internal/raftlog"
)

func TestFakeAppliesInOrder(t *testing.T) {
	var applied []uint64
	log := raftlog.NewFake("node-1", func(index uint64, payload []byte) []byte {
		applied = append(applied, index)
		return append([]byte("ack:"), payload...)
	})

	resp, err := log.Propose(context.Background(), []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "ack:one", string(resp))

	resp, err = log.Propose(context.Background(), []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "ack:two", string(resp))

	assert.Equal(t, []uint64{1, 2}, applied)

	leader, err := log.GetLeader()
	require.NoError(t, err)
	assert.Equal(t, "node-1", leader)

	idx, err := log.LatestCommitIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), idx)
	assert.Equal(t, uint64(2), log.LocalAppliedIndex())

	require.NoError(t, log.WaitForLocalCommit(context.Background(), 2))
}
