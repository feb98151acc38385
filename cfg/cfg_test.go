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

package cfg_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/cfg"
)

func TestBindFlagsNodeUnmarshalsDefaults(t *testing.T) {
	viper.Reset()

	flagSet := pflag.NewFlagSet("fleetfs-node", pflag.ContinueOnError)
	require.NoError(t, cfg.BindFlagsNode(flagSet))
	require.NoError(t, flagSet.Parse([]string{
		"--node-id=n1",
		"--data-dir=/tmp/data",
	}))

	var c cfg.Config
	require.NoError(t, viper.Unmarshal(&c))

	assert.Equal(t, "n1", c.Node.NodeID)
	assert.Equal(t, "/tmp/data", c.Node.DataDir)
	assert.Equal(t, ":7777", c.Node.ListenAddress)
	assert.Equal(t, uint32(0o755), c.Node.RootMode)
	assert.Equal(t, "INFO", c.Logging.Severity)
	assert.Equal(t, "text", c.Logging.Format)
}

func TestBindFlagsMountUnmarshalsDefaults(t *testing.T) {
	viper.Reset()

	flagSet := pflag.NewFlagSet("fleetfs-mount", pflag.ContinueOnError)
	require.NoError(t, cfg.BindFlagsMount(flagSet))
	require.NoError(t, flagSet.Parse([]string{
		"--mount-point=/mnt/fleetfs",
		"--server-address=127.0.0.1:7777",
	}))

	var c cfg.MountConfig
	require.NoError(t, viper.Unmarshal(&c))

	assert.Equal(t, "/mnt/fleetfs", c.MountPoint)
	assert.Equal(t, "127.0.0.1:7777", c.ServerAddress)
	assert.Equal(t, "fleetfs", c.FSName)
}

func TestValidateConfigRequiresNodeIDInPeerList(t *testing.T) {
	c := &cfg.Config{
		Node:    cfg.NodeConfig{NodeID: "n1", DataDir: "/tmp", ListenAddress: ":7777"},
		Cluster: cfg.ClusterConfig{Peers: []cfg.Peer{{NodeID: "n2", Address: "127.0.0.1:1"}}},
	}
	err := cfg.ValidateConfig(c)
	assert.ErrorContains(t, err, "n1")
}

func TestValidateConfigRejectsDuplicatePeerIDs(t *testing.T) {
	c := &cfg.Config{
		Node: cfg.NodeConfig{NodeID: "n1", DataDir: "/tmp", ListenAddress: ":7777"},
		Cluster: cfg.ClusterConfig{Peers: []cfg.Peer{
			{NodeID: "n1", Address: "127.0.0.1:1"},
			{NodeID: "n1", Address: "127.0.0.1:2"},
		}},
	}
	assert.ErrorContains(t, cfg.ValidateConfig(c), "duplicate")
}

func TestValidateConfigAcceptsWellFormedConfig(t *testing.T) {
	c := &cfg.Config{
		Node: cfg.NodeConfig{NodeID: "n1", DataDir: "/tmp", ListenAddress: ":7777"},
		Cluster: cfg.ClusterConfig{Peers: []cfg.Peer{
			{NodeID: "n1", Address: "127.0.0.1:1"},
			{NodeID: "n2", Address: "127.0.0.1:2"},
		}},
		Logging: cfg.LoggingConfig{Severity: "DEBUG", Format: "json"},
	}
	assert.NoError(t, cfg.ValidateConfig(c))
}

func TestValidateConfigRejectsBadSeverity(t *testing.T) {
	c := &cfg.Config{
		Node:    cfg.NodeConfig{NodeID: "n1", DataDir: "/tmp", ListenAddress: ":7777"},
		Cluster: cfg.ClusterConfig{Peers: []cfg.Peer{{NodeID: "n1", Address: "127.0.0.1:1"}}},
		Logging: cfg.LoggingConfig{Severity: "VERBOSE"},
	}
	assert.ErrorContains(t, cfg.ValidateConfig(c), "severity")
}

func TestValidateMountConfigRequiresMountPointAndServerAddress(t *testing.T) {
	assert.ErrorContains(t, cfg.ValidateMountConfig(&cfg.MountConfig{ServerAddress: "x"}), "mount-point")
	assert.ErrorContains(t, cfg.ValidateMountConfig(&cfg.MountConfig{MountPoint: "/mnt"}), "server-address")
}
