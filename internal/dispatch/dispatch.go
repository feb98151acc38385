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

// Package dispatch sits in front of internal/metadata and internal/raftlog
// on every node and decides, per request, which of the three paths in
// §4.3 a frame takes: raft-control plumbing answered directly, a write
// proposed through the log and awaited locally, or a read served after a
// commit-index barrier.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/metadata"
	"github.com/fleetfs/fleetfs/internal/metrics"
	"github.com/fleetfs/fleetfs/internal/raftlog"
	"github.com/fleetfs/fleetfs/internal/tracing"
	"github.com/fleetfs/fleetfs/internal/wire"
)

// Dispatcher routes one node's inbound request frames.
type Dispatcher struct {
	log     raftlog.Log
	store   *metadata.Store
	logger  *slog.Logger
	metrics *metrics.Handle
	tracer  trace.Tracer
}

// New returns a Dispatcher driving log for writes/raft-control and store
// for reads. m may be nil, in which case requests simply aren't measured.
// tracerProvider may be nil, in which case spans are started against the
// global no-op tracer and cost nothing beyond the call itself.
func New(log raftlog.Log, store *metadata.Store, logger *slog.Logger, m *metrics.Handle, tracerProvider *tracing.Provider) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{log: log, store: store, logger: logger, metrics: m, tracer: tracerProvider.Tracer()}
}

// Handle decodes frame, routes it, and returns the response frame to send
// back to the caller. It never returns a Go error: every failure - bad
// framing, a metadata error, a raft failure - is folded into a wire
// ErrorResponse frame, since the wire protocol carries failures as data.
func (d *Dispatcher) Handle(ctx context.Context, frame []byte) []byte {
	t, body, err := wire.DecodeRequest(frame)
	if err != nil {
		d.logger.Warn("dispatch: malformed request frame", "error", err)
		return wire.EncodeErrorResponse(fserrors.KindBadRequest)
	}

	start := time.Now()
	var resp []byte
	var failed bool

	switch {
	case t.IsRaftControl():
		_, span := tracing.StartRequestSpan(ctx, d.tracer, "raft-control", t.String())
		resp, failed = d.handleRaftControl(t, body)
		endSpan(span, failed)
	case t.IsWrite():
		ctx, span := tracing.StartRequestSpan(ctx, d.tracer, "write", t.String())
		resp, failed = d.handleWrite(ctx, t, frame)
		endSpan(span, failed)
	default:
		ctx, span := tracing.StartRequestSpan(ctx, d.tracer, "read", t.String())
		resp, failed = d.handleRead(ctx, t, body)
		endSpan(span, failed)
	}

	if d.metrics != nil {
		d.metrics.ObserveRequest(t.String(), time.Since(start).Seconds(), failed)
	}
	return resp
}

func endSpan(span trace.Span, failed bool) {
	if failed {
		span.SetStatus(codes.Error, "")
	}
	span.End()
}

func (d *Dispatcher) handleRaftControl(t wire.RequestType, body any) ([]byte, bool) {
	switch t {
	case wire.TypeGetLeader:
		id, err := d.log.GetLeader()
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.NodeIdResponse{NodeId: id}), false

	case wire.TypeLatestCommit:
		idx, err := d.log.LatestCommitIndex()
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.LatestCommitResponse{Index: idx}), false

	case wire.TypeFilesystemChecksum:
		return wire.EncodeResponse(t, wire.ChecksumResponse{Checksum: d.store.Checksum()}), false

	case wire.TypeFilesystemCheck:
		check := d.store.Check()
		return wire.EncodeResponse(t, check), !check.Healthy

	default:
		// wire.TypeRaft (peer-to-peer raft RPC framing) is handled by the
		// raft transport directly, never reaching the dispatcher; seeing
		// it here means a client sent it by mistake.
		return wire.EncodeErrorResponse(fserrors.KindBadRequest), true
	}
}

// handleWrite proposes the entire request frame through the log verbatim
// and waits for the local apply, so the leader's own reply comes from the
// same Executor.Apply call every follower will eventually run (§4.3).
func (d *Dispatcher) handleWrite(ctx context.Context, t wire.RequestType, frame []byte) ([]byte, bool) {
	resp, err := d.log.Propose(ctx, frame)
	if err != nil {
		return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
	}
	return resp, false
}

// handleRead waits for this replica to have applied at least the
// leader's latest commit index (the read barrier in §4.3), then serves
// the request from local state. Read gets the special fast framing from
// §6; every other read-only op uses the normal envelope.
func (d *Dispatcher) handleRead(ctx context.Context, t wire.RequestType, body any) ([]byte, bool) {
	latest, err := d.log.LatestCommitIndex()
	if err != nil {
		return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
	}
	if err := d.log.WaitForLocalCommit(ctx, latest); err != nil {
		return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
	}

	switch req := body.(type) {
	case wire.LookupRequest:
		id, attrs, err := d.store.Lookup(req.Parent, req.Name, req.Ctx)
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.InodeResponse{Inode: id, Attrs: attrs}), false

	case wire.GetattrRequest:
		attrs, err := d.store.Getattr(req.Inode)
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.FileMetadataResponse{Attrs: attrs}), false

	case wire.ReaddirRequest:
		entries, err := d.store.Readdir(req.Inode)
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.DirectoryListingResponse{Entries: entries}), false

	case wire.ReadRequest:
		buf := make([]byte, req.Length)
		data, err := d.store.Read(req.Inode, req.Offset, buf, req.Ctx)
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeReadResponseFast(data), false

	case wire.GetXattrRequest:
		v, err := d.store.GetXattr(req.Inode, req.Key)
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.XattrValueResponse{Value: v}), false

	case wire.ListXattrsRequest:
		keys, err := d.store.ListXattrs(req.Inode)
		if err != nil {
			return wire.EncodeErrorResponse(fserrors.KindOf(err)), true
		}
		return wire.EncodeResponse(t, wire.XattrListResponse{Keys: keys}), false

	case wire.FilesystemChecksumRequest:
		return wire.EncodeResponse(t, wire.ChecksumResponse{Checksum: d.store.Checksum()}), false

	case wire.FilesystemCheckRequest:
		check := d.store.Check()
		return wire.EncodeResponse(t, check), !check.Healthy

	default:
		return wire.EncodeErrorResponse(fserrors.KindBadRequest), true
	}
}
