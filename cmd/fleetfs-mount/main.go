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

// Command fleetfs-mount mounts a fleetfs cluster on a local directory,
// dialing one of the cluster's nodes for every filesystem operation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fleetfs/fleetfs/cfg"
	"github.com/fleetfs/fleetfs/internal/kerneladapter"
	"github.com/fleetfs/fleetfs/internal/logger"
)

var (
	cfgFile string
	config  cfg.MountConfig
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleetfs-mount",
		Short: "Mount a fleetfs cluster",
		RunE:  runMount,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file overlaying the flags below.")
	if err := cfg.BindFlagsMount(cmd.Flags()); err != nil {
		panic(fmt.Sprintf("fleetfs-mount: binding flags: %v", err))
	}
	cobra.OnInitialize(initConfig)

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "fleetfs-mount: reading config file: %v\n", err)
			os.Exit(1)
		}
	}
	if err := viper.Unmarshal(&config); err != nil {
		fmt.Fprintf(os.Stderr, "fleetfs-mount: parsing config: %v\n", err)
		os.Exit(1)
	}
}

func runMount(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateMountConfig(&config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Severity:   config.Logging.Severity,
		Format:     config.Logging.Format,
		FilePath:   config.Logging.FilePath,
		MaxSizeMB:  config.Logging.MaxSizeMb,
		MaxBackups: config.Logging.MaxBackups,
		Async:      config.Logging.Async,
		AsyncQueue: config.Logging.AsyncQueue,
	}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Close()

	adapter := kerneladapter.New(config.ServerAddress)
	server := fuseutil.NewFileSystemServer(adapter)

	mfs, err := fuse.Mount(config.MountPoint, server, &fuse.MountConfig{
		FSName:     config.FSName,
		Subtype:    "fleetfs",
		VolumeName: config.FSName,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", config.MountPoint, err)
	}

	logger.Infof("fleetfs-mount: mounted %s on %s, dialing %s", config.FSName, config.MountPoint, config.ServerAddress)

	return mfs.Join(context.Background())
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
