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

package wire

import (
	"fmt"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// EncodeRequest builds the frame payload for a GenericRequest: a one-byte
// type tag followed by the per-op body (§4.2).
func EncodeRequest(t RequestType, body any) []byte {
	w := &writer{buf: make([]byte, 0, 64)}
	w.u8(uint8(t))

	switch v := body.(type) {
	case LookupRequest:
		w.u64(v.Parent)
		w.str(v.Name)
		w.ctx(v.Ctx)
	case GetattrRequest:
		w.u64(v.Inode)
	case CreateRequest:
		w.u64(v.Parent)
		w.str(v.Name)
		w.u32(v.Uid)
		w.u32(v.Gid)
		w.u32(v.Mode)
		w.u8(uint8(v.Kind))
	case MkdirRequest:
		w.u64(v.Parent)
		w.str(v.Name)
		w.u32(v.Uid)
		w.u32(v.Gid)
		w.u32(v.Mode)
	case UnlinkRequest:
		w.u64(v.Parent)
		w.str(v.Name)
		w.ctx(v.Ctx)
	case RmdirRequest:
		w.u64(v.Parent)
		w.str(v.Name)
		w.ctx(v.Ctx)
	case RenameRequest:
		w.u64(v.Parent)
		w.str(v.Name)
		w.u64(v.NewParent)
		w.str(v.NewName)
		w.ctx(v.Ctx)
	case HardlinkRequest:
		w.u64(v.Inode)
		w.u64(v.NewParent)
		w.str(v.NewName)
		w.ctx(v.Ctx)
	case ReadRequest:
		w.u64(v.Inode)
		w.u64(v.Offset)
		w.u32(v.Length)
		w.ctx(v.Ctx)
	case WriteRequest:
		w.u64(v.Inode)
		w.u64(v.Offset)
		w.bytes(v.Data)
		w.ctx(v.Ctx)
	case TruncateRequest:
		w.u64(v.Inode)
		w.u64(v.NewLength)
		w.ctx(v.Ctx)
	case ChmodRequest:
		w.u64(v.Inode)
		w.u32(v.Mode)
		w.ctx(v.Ctx)
	case ChownRequest:
		w.u64(v.Inode)
		w.optU32(v.Uid)
		w.optU32(v.Gid)
		w.ctx(v.Ctx)
	case UtimensRequest:
		w.u64(v.Inode)
		w.optTs(v.Atime)
		w.optTs(v.Mtime)
		w.ctx(v.Ctx)
	case ReaddirRequest:
		w.u64(v.Inode)
	case GetXattrRequest:
		w.u64(v.Inode)
		w.str(v.Key)
	case SetXattrRequest:
		w.u64(v.Inode)
		w.str(v.Key)
		w.bytes(v.Value)
	case ListXattrsRequest:
		w.u64(v.Inode)
	case RemoveXattrRequest:
		w.u64(v.Inode)
		w.str(v.Key)
	case FsyncRequest:
		w.u64(v.Inode)
	case GetLeaderRequest:
	case LatestCommitRequest:
	case RaftRequest:
		w.bytes(v.Payload)
	case FilesystemCheckRequest:
	case FilesystemChecksumRequest:
	default:
		panic(fmt.Sprintf("wire: EncodeRequest: unknown body type %T", body))
	}

	return w.buf
}

// DecodeRequest parses a frame payload into its RequestType and per-op
// body. The returned body's []byte fields alias frame; its string fields
// are copies.
func DecodeRequest(frame []byte) (RequestType, any, error) {
	if len(frame) < 1 {
		return 0, nil, fmt.Errorf("%w: empty request frame", fserrors.ErrBadRequest)
	}
	r := &reader{buf: frame, pos: 1}
	t := RequestType(frame[0])

	switch t {
	case TypeLookup:
		parent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		name, err := r.str()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		if err != nil {
			return t, nil, err
		}
		return t, LookupRequest{Parent: parent, Name: name, Ctx: ctx}, nil

	case TypeGetattr:
		inode, err := r.u64()
		return t, GetattrRequest{Inode: inode}, err

	case TypeCreate:
		parent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		name, err := r.str()
		if err != nil {
			return t, nil, err
		}
		uid, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		gid, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		mode, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		kind, err := r.u8()
		if err != nil {
			return t, nil, err
		}
		return t, CreateRequest{Parent: parent, Name: name, Uid: uid, Gid: gid, Mode: mode, Kind: FileKind(kind)}, nil

	case TypeMkdir:
		parent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		name, err := r.str()
		if err != nil {
			return t, nil, err
		}
		uid, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		gid, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		mode, err := r.u32()
		return t, MkdirRequest{Parent: parent, Name: name, Uid: uid, Gid: gid, Mode: mode}, err

	case TypeUnlink:
		parent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		name, err := r.str()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, UnlinkRequest{Parent: parent, Name: name, Ctx: ctx}, err

	case TypeRmdir:
		parent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		name, err := r.str()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, RmdirRequest{Parent: parent, Name: name, Ctx: ctx}, err

	case TypeRename:
		parent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		name, err := r.str()
		if err != nil {
			return t, nil, err
		}
		newParent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		newName, err := r.str()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, RenameRequest{Parent: parent, Name: name, NewParent: newParent, NewName: newName, Ctx: ctx}, err

	case TypeHardlink:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		newParent, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		newName, err := r.str()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, HardlinkRequest{Inode: inode, NewParent: newParent, NewName: newName, Ctx: ctx}, err

	case TypeRead:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		offset, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		length, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, ReadRequest{Inode: inode, Offset: offset, Length: length, Ctx: ctx}, err

	case TypeWrite:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		offset, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		data, err := r.bytes()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, WriteRequest{Inode: inode, Offset: offset, Data: data, Ctx: ctx}, err

	case TypeTruncate:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		newLength, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, TruncateRequest{Inode: inode, NewLength: newLength, Ctx: ctx}, err

	case TypeChmod:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		mode, err := r.u32()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, ChmodRequest{Inode: inode, Mode: mode, Ctx: ctx}, err

	case TypeChown:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		uid, err := r.optU32()
		if err != nil {
			return t, nil, err
		}
		gid, err := r.optU32()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, ChownRequest{Inode: inode, Uid: uid, Gid: gid, Ctx: ctx}, err

	case TypeUtimens:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		atime, err := r.optTs()
		if err != nil {
			return t, nil, err
		}
		mtime, err := r.optTs()
		if err != nil {
			return t, nil, err
		}
		ctx, err := r.ctx()
		return t, UtimensRequest{Inode: inode, Atime: atime, Mtime: mtime, Ctx: ctx}, err

	case TypeReaddir:
		inode, err := r.u64()
		return t, ReaddirRequest{Inode: inode}, err

	case TypeGetXattr:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		key, err := r.str()
		return t, GetXattrRequest{Inode: inode, Key: key}, err

	case TypeSetXattr:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		key, err := r.str()
		if err != nil {
			return t, nil, err
		}
		value, err := r.bytes()
		return t, SetXattrRequest{Inode: inode, Key: key, Value: value}, err

	case TypeListXattrs:
		inode, err := r.u64()
		return t, ListXattrsRequest{Inode: inode}, err

	case TypeRemoveXattr:
		inode, err := r.u64()
		if err != nil {
			return t, nil, err
		}
		key, err := r.str()
		return t, RemoveXattrRequest{Inode: inode, Key: key}, err

	case TypeFsync:
		inode, err := r.u64()
		return t, FsyncRequest{Inode: inode}, err

	case TypeGetLeader:
		return t, GetLeaderRequest{}, nil

	case TypeLatestCommit:
		return t, LatestCommitRequest{}, nil

	case TypeRaft:
		payload, err := r.bytes()
		return t, RaftRequest{Payload: payload}, err

	case TypeFilesystemCheck:
		return t, FilesystemCheckRequest{}, nil

	case TypeFilesystemChecksum:
		return t, FilesystemChecksumRequest{}, nil

	default:
		return t, nil, fmt.Errorf("%w: unknown request type %d", fserrors.ErrBadRequest, t)
	}
}
