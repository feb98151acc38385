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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// Node is a real raft-backed cluster member: a Log implementation whose
// Propose calls go through consensus before any replica applies them.
type Node struct {
	raft   *raft.Raft
	fsm    *fsm
	nodeID string
	logger *slog.Logger
}

// NewNode starts a raft peer under cfg, wiring apply and snap into the
// FSM every replica runs. It returns once raft has been bootstrapped (on
// first start of a fresh cluster) or restored from DataDir.
func NewNode(cfg Config, apply ApplyFunc, snap Snapshotter, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("raftlog: creating data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	if cfg.HeartbeatTimeout > 0 {
		raftCfg.HeartbeatTimeout = cfg.HeartbeatTimeout
	}
	if cfg.ElectionTimeout > 0 {
		raftCfg.ElectionTimeout = cfg.ElectionTimeout
	}
	if cfg.CommitTimeout > 0 {
		raftCfg.CommitTimeout = cfg.CommitTimeout
	}

	var self Peer
	for _, p := range cfg.Peers {
		if p.NodeID == cfg.NodeID {
			self = p
		}
	}
	if self.NodeID == "" {
		return nil, fmt.Errorf("raftlog: node id %q not present in peer list", cfg.NodeID)
	}

	addr, err := net.ResolveTCPAddr("tcp", self.Address)
	if err != nil {
		return nil, fmt.Errorf("raftlog: resolving %s: %w", self.Address, err)
	}
	transport, err := raft.NewTCPTransport(self.Address, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftlog: creating transport: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.bolt"))
	if err != nil {
		return nil, fmt.Errorf("raftlog: opening log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.bolt"))
	if err != nil {
		return nil, fmt.Errorf("raftlog: opening stable store: %w", err)
	}
	snapStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftlog: opening snapshot store: %w", err)
	}

	f := newFSM(apply, snap)

	r, err := raft.NewRaft(raftCfg, f, logStore, stableStore, snapStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftlog: starting raft: %w", err)
	}

	hasState, err := raft.HasExistingState(logStore, stableStore, snapStore)
	if err != nil {
		return nil, fmt.Errorf("raftlog: checking existing state: %w", err)
	}
	if !hasState {
		servers := make([]raft.Server, 0, len(cfg.Peers))
		for _, p := range cfg.Peers {
			servers = append(servers, raft.Server{
				ID:      raft.ServerID(p.NodeID),
				Address: raft.ServerAddress(p.Address),
			})
		}
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("raftlog: bootstrapping cluster: %w", err)
		}
	}

	return &Node{raft: r, fsm: f, nodeID: cfg.NodeID, logger: logger}, nil
}

func (n *Node) Propose(ctx context.Context, payload []byte) ([]byte, error) {
	if n.raft.State() != raft.Leader {
		return nil, fmt.Errorf("%w: node %s is not the leader", fserrors.ErrRaftFailure, n.nodeID)
	}

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	future := n.raft.Apply(payload, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", fserrors.ErrRaftFailure, err)
	}

	resp, ok := future.Response().([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected FSM response type", fserrors.ErrRaftFailure)
	}
	return resp, nil
}

func (n *Node) GetLeader() (string, error) {
	_, id := n.raft.LeaderWithID()
	if id == "" {
		return "", fmt.Errorf("%w: no leader known", fserrors.ErrRaftFailure)
	}
	return string(id), nil
}

func (n *Node) LatestCommitIndex() (uint64, error) {
	if n.raft.State() != raft.Leader {
		return 0, fmt.Errorf("%w: node %s is not the leader", fserrors.ErrRaftFailure, n.nodeID)
	}
	return n.raft.AppliedIndex(), nil
}

func (n *Node) LocalAppliedIndex() uint64 {
	return n.fsm.appliedIndex()
}

func (n *Node) WaitForLocalCommit(ctx context.Context, index uint64) error {
	if n.fsm.appliedIndex() >= index {
		return nil
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for local commit of index %d: %v", fserrors.ErrRaftFailure, index, ctx.Err())
		case <-ticker.C:
			if n.fsm.appliedIndex() >= index {
				return nil
			}
		}
	}
}

// Shutdown blocks until the raft peer has stopped.
func (n *Node) Shutdown() error {
	future := n.raft.Shutdown()
	if err := future.Error(); err != nil && !errors.Is(err, raft.ErrRaftShutdown) {
		return fmt.Errorf("raftlog: shutting down: %w", err)
	}
	return nil
}
