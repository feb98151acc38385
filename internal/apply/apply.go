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

// Package apply is the replicated state machine every fleetfs replica
// runs: it turns a committed wire-encoded request into a call against
// internal/metadata, and the result back into a wire-encoded response.
// Every replica's raftlog.Node feeds entries through the same Executor in
// the same order, which is what keeps replicas byte-identical (§4.3).
package apply

import (
	"log/slog"

	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/metadata"
	"github.com/fleetfs/fleetfs/internal/wire"
)

// Executor applies committed write requests to a metadata.Store. It holds
// no raft-specific state; raftlog.ApplyFunc is just Executor.Apply.
type Executor struct {
	store  *metadata.Store
	logger *slog.Logger
}

// New returns an Executor applying committed entries to store.
func New(store *metadata.Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, logger: logger}
}

// Apply decodes payload as a wire request and executes it, returning the
// wire-encoded response. It never returns an error itself: any failure
// from the metadata store is folded into an ErrorResponse frame, because
// an applied-but-failed operation (e.g. ENOENT) still advances the log
// the same way on every replica and must not panic the apply loop.
func (e *Executor) Apply(index uint64, payload []byte) []byte {
	t, body, err := wire.DecodeRequest(payload)
	if err != nil {
		e.logger.Error("apply: malformed committed entry", "index", index, "error", err)
		return wire.EncodeErrorResponse(fserrors.KindBadRequest)
	}

	resp, err := e.dispatch(t, body)
	if err != nil {
		kind := fserrors.KindOf(err)
		e.logger.Debug("apply: operation failed", "index", index, "type", t, "kind", kind, "error", err)
		return wire.EncodeErrorResponse(kind)
	}
	return wire.EncodeResponse(t, resp)
}

func (e *Executor) dispatch(t wire.RequestType, body any) (any, error) {
	switch req := body.(type) {
	case wire.MkdirRequest:
		id, attrs, err := e.store.Mkdir(req.Parent, req.Name, req.Uid, req.Gid, req.Mode)
		if err != nil {
			return nil, err
		}
		return wire.InodeResponse{Inode: id, Attrs: attrs}, nil

	case wire.CreateRequest:
		id, attrs, err := e.store.Create(req.Parent, req.Name, req.Uid, req.Gid, req.Mode, req.Kind)
		if err != nil {
			return nil, err
		}
		return wire.InodeResponse{Inode: id, Attrs: attrs}, nil

	case wire.UnlinkRequest:
		if err := e.store.Unlink(req.Parent, req.Name, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.RmdirRequest:
		if err := e.store.Rmdir(req.Parent, req.Name, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.RenameRequest:
		if err := e.store.Rename(req.Parent, req.Name, req.NewParent, req.NewName, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.HardlinkRequest:
		attrs, err := e.store.Hardlink(req.Inode, req.NewParent, req.NewName, req.Ctx)
		if err != nil {
			return nil, err
		}
		return wire.InodeResponse{Inode: req.Inode, Attrs: attrs}, nil

	case wire.WriteRequest:
		n, err := e.store.Write(req.Inode, req.Offset, req.Data, req.Ctx)
		if err != nil {
			return nil, err
		}
		return wire.WrittenResponse{BytesWritten: n}, nil

	case wire.TruncateRequest:
		if err := e.store.Truncate(req.Inode, req.NewLength, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.ChmodRequest:
		if err := e.store.Chmod(req.Inode, req.Mode, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.ChownRequest:
		if err := e.store.Chown(req.Inode, req.Uid, req.Gid, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.UtimensRequest:
		if err := e.store.Utimens(req.Inode, req.Atime, req.Mtime, req.Ctx); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.SetXattrRequest:
		if err := e.store.SetXattr(req.Inode, req.Key, req.Value); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.RemoveXattrRequest:
		if err := e.store.RemoveXattr(req.Inode, req.Key); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	case wire.FsyncRequest:
		if err := e.store.Fsync(req.Inode); err != nil {
			return nil, err
		}
		return wire.EmptyResponse{}, nil

	default:
		return nil, fserrors.ErrBadRequest
	}
}
