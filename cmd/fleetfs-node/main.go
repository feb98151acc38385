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

// Command fleetfs-node runs one replica of a fleetfs cluster: a raft peer
// applying committed writes to a local metadata store and serving reads
// and writes to fsclient connections over TCP.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fleetfs/fleetfs/cfg"
	"github.com/fleetfs/fleetfs/clock"
	"github.com/fleetfs/fleetfs/internal/apply"
	"github.com/fleetfs/fleetfs/internal/datastore/localdisk"
	"github.com/fleetfs/fleetfs/internal/dispatch"
	"github.com/fleetfs/fleetfs/internal/logger"
	"github.com/fleetfs/fleetfs/internal/metadata"
	"github.com/fleetfs/fleetfs/internal/metrics"
	"github.com/fleetfs/fleetfs/internal/raftlog"
	"github.com/fleetfs/fleetfs/internal/server"
	"github.com/fleetfs/fleetfs/internal/tracing"
)

var (
	cfgFile string
	config  cfg.Config

	metricsAddr string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleetfs-node",
		Short: "Run one replica of a fleetfs cluster",
		RunE:  runNode,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file overlaying the flags below.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-address", "", "Address to serve Prometheus metrics on. Empty disables it.")
	if err := cfg.BindFlagsNode(cmd.Flags()); err != nil {
		panic(fmt.Sprintf("fleetfs-node: binding flags: %v", err))
	}
	cobra.OnInitialize(initConfig)

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "fleetfs-node: reading config file: %v\n", err)
			os.Exit(1)
		}
	}
	if err := viper.Unmarshal(&config); err != nil {
		fmt.Fprintf(os.Stderr, "fleetfs-node: parsing config: %v\n", err)
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateConfig(&config); err != nil {
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

	data, err := localdisk.New(config.Node.DataDir)
	if err != nil {
		return fmt.Errorf("opening data directory: %w", err)
	}

	storeOpts := []metadata.Option{
		metadata.WithInvariantLogging(logger.Default(), config.Debug.ExitOnInvariantViolation),
	}
	if config.Debug.LogMutex {
		storeOpts = append(storeOpts, metadata.WithMutexLogging(logger.Default()))
	}
	store := metadata.New(data, clock.RealClock{}, config.Node.RootUid, config.Node.RootGid, config.Node.RootMode, storeOpts...)
	m := metrics.New()
	exec := apply.New(store, logger.Default())
	snap := apply.NewSnapshotter(exec)

	var tracerProvider *tracing.Provider
	if config.Debug.TracingEnabled {
		tracerProvider, err = tracing.NewStdout(os.Stderr, config.Node.NodeID)
		if err != nil {
			return fmt.Errorf("starting tracing: %w", err)
		}
		defer tracerProvider.Shutdown(context.Background())
	}

	peers := make([]raftlog.Peer, 0, len(config.Cluster.Peers))
	for _, p := range config.Cluster.Peers {
		peers = append(peers, raftlog.Peer{NodeID: p.NodeID, Address: p.Address})
	}
	node, err := raftlog.NewNode(raftlog.Config{
		NodeID:           config.Node.NodeID,
		Peers:            peers,
		DataDir:          config.Node.DataDir,
		HeartbeatTimeout: config.Cluster.HeartbeatTimeout,
		ElectionTimeout:  config.Cluster.ElectionTimeout,
		CommitTimeout:    config.Cluster.CommitTimeout,
	}, exec.Apply, snap, logger.Default())
	if err != nil {
		return fmt.Errorf("starting raft: %w", err)
	}
	defer node.Shutdown()

	d := dispatch.New(node, store, logger.Default(), m, tracerProvider)

	ln, err := net.Listen("tcp", config.Node.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", config.Node.ListenAddress, err)
	}
	srv := server.New(ln, d, logger.Default())

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, m)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	logger.Infof("fleetfs-node %s listening on %s", config.Node.NodeID, config.Node.ListenAddress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Infof("fleetfs-node %s shutting down", config.Node.NodeID)
		srv.Close()
		<-serveErr
		return nil
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	}
}

func serveMetrics(addr string, m *metrics.Handle) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("metrics server on %s: %v", addr, err)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
