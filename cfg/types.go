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

// Package cfg holds the configuration types for both fleetfs binaries and
// the pflag/viper wiring that fills them in, the way gcsfuse's own cfg
// package splits flag definition (BindFlags) from the Config it is
// ultimately unmarshalled into.
package cfg

import "time"

// Config is unmarshalled by fleetfs-node: one storage replica's view of
// its own identity, its peers, and its ambient logging/debug settings.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Cluster ClusterConfig `yaml:"cluster"`
	Logging LoggingConfig `yaml:"logging"`
	Debug   DebugConfig   `yaml:"debug"`
}

// NodeConfig describes this replica: where it keeps its data and what it
// listens on for fsclient connections.
type NodeConfig struct {
	NodeID        string `yaml:"node-id"`
	DataDir       string `yaml:"data-dir"`
	ListenAddress string `yaml:"listen-address"`

	// RootUid/RootGid/RootMode seed the root directory's owner and mode
	// bits the first time a node's metadata store is created (§4.1: the
	// root inode always exists and is never itself created by a request).
	RootUid  uint32 `yaml:"root-uid"`
	RootGid  uint32 `yaml:"root-gid"`
	RootMode uint32 `yaml:"root-mode"`
}

// Peer is one member of the cluster's static membership list.
type Peer struct {
	NodeID  string `yaml:"node-id"`
	Address string `yaml:"address"`
}

// ClusterConfig is the static cluster membership and raft timing every
// node in the cluster is launched with (§4.3: membership is fixed at
// startup, not learned dynamically).
type ClusterConfig struct {
	Peers []Peer `yaml:"peers"`

	HeartbeatTimeout time.Duration `yaml:"heartbeat-timeout"`
	ElectionTimeout  time.Duration `yaml:"election-timeout"`
	CommitTimeout    time.Duration `yaml:"commit-timeout"`
}

// LoggingConfig mirrors internal/logger.Config field-for-field so main can
// pass the parsed config straight through.
type LoggingConfig struct {
	Severity   string `yaml:"severity"`
	Format     string `yaml:"format"`
	FilePath   string `yaml:"file-path"`
	MaxSizeMb  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	Async      bool   `yaml:"async"`
	AsyncQueue int    `yaml:"async-queue"`
}

// DebugConfig gates invariant-violation behavior and tracing during
// development.
type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
	LogMutex                 bool `yaml:"log-mutex"`
	TracingEnabled           bool `yaml:"tracing-enabled"`
}

// MountConfig is unmarshalled by fleetfs-mount: where to mount and which
// node to dial.
type MountConfig struct {
	MountPoint    string `yaml:"mount-point"`
	ServerAddress string `yaml:"server-address"`
	FSName        string `yaml:"fs-name"`

	Logging LoggingConfig `yaml:"logging"`
}
