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

import "time"

// Peer is one member of the static cluster configuration a node is
// launched with (§4.3: membership is fixed at startup, not learned
// dynamically).
type Peer struct {
	NodeID  string
	Address string // host:port the raft transport dials.
}

// Config controls how a Node joins its raft cluster.
type Config struct {
	NodeID  string
	Peers   []Peer
	DataDir string // holds the raft log store, stable store and snapshots.

	// HeartbeatTimeout/ElectionTimeout/CommitTimeout default to
	// hashicorp/raft's own defaults (1s/1s/50ms) when zero.
	HeartbeatTimeout time.Duration
	ElectionTimeout  time.Duration
	CommitTimeout    time.Duration
}
