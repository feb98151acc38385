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

package raftlog

import (
	"context"
	"sync"
)

// Fake is a single-node Log that applies proposals synchronously with no
// real consensus, network or persistence involved. It satisfies the same
// ordering and apply-once-per-index contract as Node, which is all
// internal/dispatch and internal/apply need, so tests for those packages
// can run against Fake instead of standing up a raft cluster.
type Fake struct {
	mu      sync.Mutex
	apply   ApplyFunc
	nextIdx uint64
	nodeID  string
}

// NewFake returns a Fake that calls apply synchronously for every
// proposal, acting as the sole member of a trivially single-node cluster
// named nodeID.
func NewFake(nodeID string, apply ApplyFunc) *Fake {
	return &Fake{apply: apply, nextIdx: 1, nodeID: nodeID}
}

var _ Log = (*Fake)(nil)

func (f *Fake) Propose(ctx context.Context, payload []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.nextIdx
	f.nextIdx++
	return f.apply(idx, payload), nil
}

func (f *Fake) GetLeader() (string, error) {
	return f.nodeID, nil
}

func (f *Fake) LatestCommitIndex() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextIdx - 1, nil
}

func (f *Fake) LocalAppliedIndex() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextIdx - 1
}

func (f *Fake) WaitForLocalCommit(ctx context.Context, index uint64) error {
	// Propose is synchronous, so by the time any caller could observe an
	// index it is already applied.
	return nil
}
