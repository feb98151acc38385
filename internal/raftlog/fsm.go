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
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hashicorp/raft"
)

// Snapshotter lets the FSM fold a point-in-time copy of the owning node's
// metadata state (internal/metadata; file content in internal/datastore
// is not included) into a raft snapshot,
// and load one back on restore. internal/apply supplies the real
// implementation; it is defined here only to keep raftlog decoupled from
// the metadata package.
type Snapshotter interface {
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}

// fsm adapts an ApplyFunc and a Snapshotter to raft.FSM, and tracks the
// highest applied index so Node.WaitForLocalCommit can poll it (§4.3's
// read barrier: a replica serves a read only once it has applied at
// least the leader's latest commit index).
type fsm struct {
	apply   ApplyFunc
	snap    Snapshotter
	applied atomic.Uint64
}

func newFSM(apply ApplyFunc, snap Snapshotter) *fsm {
	return &fsm{apply: apply, snap: snap}
}

var _ raft.FSM = (*fsm)(nil)

// Apply implements raft.FSM. It runs on every replica, in log order. The
// leader's own Propose call gets its response from this same return value
// via raft's future, not a side channel, so the leader and every follower
// run the identical apply path for a given entry.
func (f *fsm) Apply(entry *raft.Log) interface{} {
	resp := f.apply(entry.Index, entry.Data)
	f.applied.Store(entry.Index)
	return resp
}

func (f *fsm) appliedIndex() uint64 { return f.applied.Load() }

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	data, err := f.snap.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("raftlog: taking snapshot: %w", err)
	}
	return &fsmSnapshot{data: data}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("raftlog: reading snapshot: %w", err)
	}
	return f.snap.Restore(data)
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return fmt.Errorf("raftlog: persisting snapshot: %w", err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
