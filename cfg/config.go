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

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlagsNode defines fleetfs-node's flags and binds each one to the
// viper key Config is later unmarshalled from, the same split gcsfuse's
// own generated BindFlags uses between flag definition and config-file
// overlay. Cluster.Peers has no flag equivalent: a peer list only makes
// sense supplied as a whole, so it is config-file only.
func BindFlagsNode(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("node-id", "", "", "This node's unique id within its cluster.")
	if err = viper.BindPFlag("node.node-id", flagSet.Lookup("node-id")); err != nil {
		return err
	}

	flagSet.StringP("data-dir", "", "", "Directory holding this node's file content and raft state.")
	if err = viper.BindPFlag("node.data-dir", flagSet.Lookup("data-dir")); err != nil {
		return err
	}

	flagSet.StringP("listen-address", "", ":7777", "Address fsclient connections are accepted on.")
	if err = viper.BindPFlag("node.listen-address", flagSet.Lookup("listen-address")); err != nil {
		return err
	}

	flagSet.Uint32P("root-uid", "", 0, "Owning uid of the root directory.")
	if err = viper.BindPFlag("node.root-uid", flagSet.Lookup("root-uid")); err != nil {
		return err
	}

	flagSet.Uint32P("root-gid", "", 0, "Owning gid of the root directory.")
	if err = viper.BindPFlag("node.root-gid", flagSet.Lookup("root-gid")); err != nil {
		return err
	}

	flagSet.Uint32P("root-mode", "", 0o755, "Permission bits of the root directory.")
	if err = viper.BindPFlag("node.root-mode", flagSet.Lookup("root-mode")); err != nil {
		return err
	}

	if err = bindLoggingFlags(flagSet, "logging"); err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug-mutex", "", false, "Log when a lock is held longer than expected.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-mutex")); err != nil {
		return err
	}

	flagSet.BoolP("debug-tracing", "", false, "Write an OpenTelemetry span per dispatched request to stderr.")
	if err = viper.BindPFlag("debug.tracing-enabled", flagSet.Lookup("debug-tracing")); err != nil {
		return err
	}

	return nil
}

// BindFlagsMount defines fleetfs-mount's flags.
func BindFlagsMount(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("mount-point", "", "", "Local directory to mount the filesystem on.")
	if err = viper.BindPFlag("mount-point", flagSet.Lookup("mount-point")); err != nil {
		return err
	}

	flagSet.StringP("server-address", "", "", "Address of the fleetfs node to dial.")
	if err = viper.BindPFlag("server-address", flagSet.Lookup("server-address")); err != nil {
		return err
	}

	flagSet.StringP("fs-name", "", "fleetfs", "Filesystem name reported to the kernel.")
	if err = viper.BindPFlag("fs-name", flagSet.Lookup("fs-name")); err != nil {
		return err
	}

	return bindLoggingFlags(flagSet, "logging")
}

func bindLoggingFlags(flagSet *pflag.FlagSet, prefix string) error {
	var err error

	flagSet.StringP("log-severity", "", "INFO", "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag(prefix+".severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log encoding: text or json.")
	if err = viper.BindPFlag(prefix+".format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "File to write logs to. Empty means stderr.")
	if err = viper.BindPFlag(prefix+".file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-max-size-mb", "", 100, "Rotate the log file after it reaches this size.")
	if err = viper.BindPFlag(prefix+".max-size-mb", flagSet.Lookup("log-max-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-max-backups", "", 5, "Number of rotated log files to retain.")
	if err = viper.BindPFlag(prefix+".max-backups", flagSet.Lookup("log-max-backups")); err != nil {
		return err
	}

	flagSet.BoolP("log-async", "", false, "Buffer log writes off the request-handling path.")
	return viper.BindPFlag(prefix+".async", flagSet.Lookup("log-async"))
}
