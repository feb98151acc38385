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

package cfg

import "fmt"

// ValidateConfig returns a non-nil error if config cannot be used to start
// a node.
func ValidateConfig(config *Config) error {
	if config.Node.NodeID == "" {
		return fmt.Errorf("node.node-id must be set")
	}
	if config.Node.DataDir == "" {
		return fmt.Errorf("node.data-dir must be set")
	}
	if config.Node.ListenAddress == "" {
		return fmt.Errorf("node.listen-address must be set")
	}

	if len(config.Cluster.Peers) == 0 {
		return fmt.Errorf("cluster.peers must list at least one member")
	}
	found := false
	seen := make(map[string]struct{}, len(config.Cluster.Peers))
	for _, p := range config.Cluster.Peers {
		if p.NodeID == "" || p.Address == "" {
			return fmt.Errorf("cluster.peers: every peer needs a node-id and an address")
		}
		if _, dup := seen[p.NodeID]; dup {
			return fmt.Errorf("cluster.peers: duplicate node-id %q", p.NodeID)
		}
		seen[p.NodeID] = struct{}{}
		if p.NodeID == config.Node.NodeID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("node.node-id %q is not present in cluster.peers", config.Node.NodeID)
	}

	return validateLogging(&config.Logging)
}

// ValidateMountConfig returns a non-nil error if config cannot be used to
// mount the filesystem.
func ValidateMountConfig(config *MountConfig) error {
	if config.MountPoint == "" {
		return fmt.Errorf("mount-point must be set")
	}
	if config.ServerAddress == "" {
		return fmt.Errorf("server-address must be set")
	}
	return validateLogging(&config.Logging)
}

func validateLogging(l *LoggingConfig) error {
	switch l.Severity {
	case "", "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF":
	default:
		return fmt.Errorf("logging.severity %q is not one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF", l.Severity)
	}
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", l.Format)
	}
	if l.MaxSizeMb < 0 {
		return fmt.Errorf("logging.max-size-mb cannot be negative")
	}
	return nil
}
