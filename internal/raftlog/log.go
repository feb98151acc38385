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

// Package raftlog is the replicated write-ahead log every fleetfs node
// proposes mutations through (§4.3). It wraps hashicorp/raft: every
// accepted proposal becomes one raft log entry, and every replica -
// leader and followers alike - runs the registered ApplyFunc over entries
// in the same commit order, which is what keeps their metadata stores and
// datastores identical.
package raftlog

import "context"

// ApplyFunc executes one committed entry's opaque payload against local
// state and returns the response bytes to hand back to whichever client
// is waiting on that proposal. It runs once per replica per entry, in
// increasing index order, and must be deterministic: no wall-clock reads,
// no randomness, nothing but the payload and the current state (§4.3, §9
// design notes on replica determinism).
type ApplyFunc func(index uint64, payload []byte) []byte

// Log is the interface internal/dispatch and internal/apply depend on,
// satisfied by both *Node (a real raft-backed cluster member) and *Fake
// (a single-process stand-in used in tests that don't need real
// consensus).
type Log interface {
	// Propose appends payload to the log and blocks until it has been
	// applied locally, returning the ApplyFunc's response. It fails with
	// fserrors.ErrRaftFailure if this node is not the leader or the
	// proposal cannot be committed.
	Propose(ctx context.Context, payload []byte) ([]byte, error)

	// GetLeader returns the current leader's node ID, or an error if none
	// is known.
	GetLeader() (string, error)

	// LatestCommitIndex returns the highest index known committed by the
	// cluster leader, answered from local state; it is the first half of
	// the read barrier described in §4.3. *Node answers only while it is
	// the leader and fails with fserrors.ErrRaftFailure otherwise; nothing
	// forwards the query from a follower to the leader.
	LatestCommitIndex() (uint64, error)

	// WaitForLocalCommit blocks until this replica has applied at least
	// index locally, or ctx is done. This is the other half of the read
	// barrier: a replica serves a linearizable read only once its own
	// apply position has caught up to the leader's latest commit.
	WaitForLocalCommit(ctx context.Context, index uint64) error

	// LocalAppliedIndex returns the highest index this replica has
	// applied so far.
	LocalAppliedIndex() uint64
}
