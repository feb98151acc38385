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

// Package metrics exposes fleetfs's operational counters through
// prometheus/client_golang: one counter/histogram pair per request type,
// an apply-loop lag gauge, and the read-ahead cache's hit/miss counters.
// A node registers these against its own registry and serves them over
// /metrics via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FSOpKey is the label naming the filesystem operation a metric is about,
// mirroring the attribute key the teacher's telemetry layer used for the
// same purpose.
const FSOpKey = "fs_op"

// Handle bundles every metric fleetfs reports. Callers get one from New;
// cmd/fleetfs-node passes it to the dispatcher, which records per-request
// counts and latency. Nothing in this repository calls SetApplyLag,
// SetApplyIndex or the read-ahead Record methods.
type Handle struct {
	registry *prometheus.Registry

	opRequests   *prometheus.CounterVec
	opErrors     *prometheus.CounterVec
	opLatency    *prometheus.HistogramVec
	applyLagSecs prometheus.Gauge
	applyIndex   prometheus.Gauge

	readaheadHits   prometheus.Counter
	readaheadMisses prometheus.Counter
}

// New constructs a Handle and registers all of its metrics against a
// fresh registry.
func New() *Handle {
	reg := prometheus.NewRegistry()

	h := &Handle{
		registry: reg,
		opRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetfs",
			Name:      "requests_total",
			Help:      "Total requests handled, by operation.",
		}, []string{FSOpKey}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleetfs",
			Name:      "request_errors_total",
			Help:      "Total requests that returned an error response, by operation.",
		}, []string{FSOpKey}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fleetfs",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency, by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{FSOpKey}),
		applyLagSecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetfs",
			Name:      "apply_lag_seconds",
			Help:      "Time between a replica's last apply and now; rises when a follower falls behind.",
		}),
		applyIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetfs",
			Name:      "apply_index",
			Help:      "Highest raft log index this replica has applied.",
		}),
		readaheadHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetfs",
			Subsystem: "readahead",
			Name:      "hits_total",
			Help:      "Client reads served from the read-ahead cache.",
		}),
		readaheadMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetfs",
			Subsystem: "readahead",
			Name:      "misses_total",
			Help:      "Client reads that required a network round trip.",
		}),
	}

	reg.MustRegister(h.opRequests, h.opErrors, h.opLatency, h.applyLagSecs,
		h.applyIndex, h.readaheadHits, h.readaheadMisses)
	return h
}

// Registry returns the registry metrics were registered against, for
// wiring into a promhttp.HandlerFor call.
func (h *Handle) Registry() *prometheus.Registry {
	return h.registry
}

// ObserveRequest records one request's outcome and latency.
func (h *Handle) ObserveRequest(op string, seconds float64, failed bool) {
	h.opRequests.WithLabelValues(op).Inc()
	h.opLatency.WithLabelValues(op).Observe(seconds)
	if failed {
		h.opErrors.WithLabelValues(op).Inc()
	}
}

// SetApplyLag records how far behind (in seconds) a replica's apply loop
// believes it is.
func (h *Handle) SetApplyLag(seconds float64) {
	h.applyLagSecs.Set(seconds)
}

// SetApplyIndex records a replica's current applied index.
func (h *Handle) SetApplyIndex(index uint64) {
	h.applyIndex.Set(float64(index))
}

// RecordReadaheadHit and RecordReadaheadMiss track the client cache's hit
// rate (§4.4).
func (h *Handle) RecordReadaheadHit()  { h.readaheadHits.Inc() }
func (h *Handle) RecordReadaheadMiss() { h.readaheadMisses.Inc() }
