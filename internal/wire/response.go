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

const (
	statusOK    uint8 = 0
	statusError uint8 = 1
)

// EncodeErrorResponse builds the frame payload for a failed request: a
// status byte followed by the fserrors.Kind (§7).
func EncodeErrorResponse(kind fserrors.Kind) []byte {
	w := &writer{buf: make([]byte, 0, 2)}
	w.u8(statusError)
	w.u8(uint8(kind))
	return w.buf
}

// EncodeResponse builds the frame payload for a successful response: a
// status-OK byte followed by the per-op body, keyed by the RequestType the
// body answers.
func EncodeResponse(t RequestType, body any) []byte {
	w := &writer{buf: make([]byte, 0, 64)}
	w.u8(statusOK)

	switch v := body.(type) {
	case NodeIdResponse:
		w.str(v.NodeId)
	case LatestCommitResponse:
		w.u64(v.Index)
	case EmptyResponse:
	case InodeResponse:
		w.u64(v.Inode)
		w.attrs(v.Attrs)
	case FileMetadataResponse:
		w.attrs(v.Attrs)
	case DirectoryListingResponse:
		w.u32(uint32(len(v.Entries)))
		for _, e := range v.Entries {
			w.u64(e.Inode)
			w.str(e.Name)
			w.u8(uint8(e.Kind))
		}
	case XattrValueResponse:
		w.bytes(v.Value)
	case XattrListResponse:
		w.u32(uint32(len(v.Keys)))
		for _, k := range v.Keys {
			w.str(k)
		}
	case WrittenResponse:
		w.u32(v.BytesWritten)
	case ChecksumResponse:
		w.u64(v.Checksum)
	case CheckResponse:
		if v.Healthy {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.str(v.Detail)
	default:
		panic(fmt.Sprintf("wire: EncodeResponse: unknown body type %T for %v", body, t))
	}

	return w.buf
}

// DecodeResponse parses a response frame for a request of type t. It
// returns the sentinel error matching the carried fserrors.Kind when the
// remote reported failure.
func DecodeResponse(t RequestType, frame []byte) (any, error) {
	if len(frame) < 1 {
		return nil, fmt.Errorf("%w: empty response frame", fserrors.ErrBadResponse)
	}
	status := frame[0]
	r := &reader{buf: frame, pos: 1}

	if status == statusError {
		kind, err := r.u8()
		if err != nil {
			return nil, err
		}
		return nil, errorForKind(fserrors.Kind(kind))
	}
	if status != statusOK {
		return nil, fmt.Errorf("%w: unknown status byte %d", fserrors.ErrBadResponse, status)
	}

	switch t {
	case TypeGetLeader:
		id, err := r.str()
		return NodeIdResponse{NodeId: id}, err

	case TypeLatestCommit:
		idx, err := r.u64()
		return LatestCommitResponse{Index: idx}, err

	case TypeRaft, TypeUnlink, TypeRmdir, TypeRename,
		TypeTruncate, TypeChmod, TypeChown, TypeUtimens, TypeSetXattr,
		TypeRemoveXattr, TypeFsync:
		return EmptyResponse{}, nil

	case TypeLookup, TypeCreate, TypeMkdir, TypeHardlink:
		inode, err := r.u64()
		if err != nil {
			return nil, err
		}
		attrs, err := r.attrs()
		return InodeResponse{Inode: inode, Attrs: attrs}, err

	case TypeGetattr:
		attrs, err := r.attrs()
		return FileMetadataResponse{Attrs: attrs}, err

	case TypeReaddir:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		entries := make([]DirEntry, 0, n)
		for i := uint32(0); i < n; i++ {
			inode, err := r.u64()
			if err != nil {
				return nil, err
			}
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			kind, err := r.u8()
			if err != nil {
				return nil, err
			}
			entries = append(entries, DirEntry{Inode: inode, Name: name, Kind: FileKind(kind)})
		}
		return DirectoryListingResponse{Entries: entries}, nil

	case TypeGetXattr:
		v, err := r.bytes()
		return XattrValueResponse{Value: v}, err

	case TypeListXattrs:
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, n)
		for i := uint32(0); i < n; i++ {
			k, err := r.str()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
		}
		return XattrListResponse{Keys: keys}, nil

	case TypeWrite:
		n, err := r.u32()
		return WrittenResponse{BytesWritten: n}, err

	case TypeFilesystemChecksum:
		sum, err := r.u64()
		return ChecksumResponse{Checksum: sum}, err

	case TypeFilesystemCheck:
		healthy, err := r.u8()
		if err != nil {
			return nil, err
		}
		detail, err := r.str()
		return CheckResponse{Healthy: healthy != 0, Detail: detail}, err

	default:
		return nil, fmt.Errorf("%w: unknown response request type %d", fserrors.ErrBadResponse, t)
	}
}

func errorForKind(k fserrors.Kind) error {
	switch k {
	case fserrors.KindDoesNotExist:
		return fserrors.ErrDoesNotExist
	case fserrors.KindInodeDoesNotExist:
		return fserrors.ErrInodeDoesNotExist
	case fserrors.KindAlreadyExists:
		return fserrors.ErrAlreadyExists
	case fserrors.KindNotEmpty:
		return fserrors.ErrNotEmpty
	case fserrors.KindAccessDenied:
		return fserrors.ErrAccessDenied
	case fserrors.KindOperationNotPermitted:
		return fserrors.ErrOperationNotPermitted
	case fserrors.KindNameTooLong:
		return fserrors.ErrNameTooLong
	case fserrors.KindFileTooLarge:
		return fserrors.ErrFileTooLarge
	case fserrors.KindMissingXattrKey:
		return fserrors.ErrMissingXattrKey
	case fserrors.KindBadRequest:
		return fserrors.ErrBadRequest
	case fserrors.KindBadResponse:
		return fserrors.ErrBadResponse
	case fserrors.KindCorrupted:
		return fserrors.ErrCorrupted
	case fserrors.KindRaftFailure:
		return fserrors.ErrRaftFailure
	default:
		return fmt.Errorf("fserrors: uncategorized remote failure (kind=%d)", k)
	}
}

// EncodeReadResponseFast builds the special-cased framing for a successful
// Read (§6): status byte followed directly by the raw bytes, skipping the
// length-prefixed-field envelope every other response uses. data is copied
// once into the returned payload, behind the status byte.
func EncodeReadResponseFast(data []byte) []byte {
	out := make([]byte, 1, 1+len(data))
	out[0] = statusOK
	return append(out, data...)
}

// DecodeReadResponseFast parses a Read response frame. On success the
// returned slice aliases frame; on failure it returns the sentinel error
// matching the carried fserrors.Kind.
func DecodeReadResponseFast(frame []byte) ([]byte, error) {
	if len(frame) < 1 {
		return nil, fmt.Errorf("%w: empty read response frame", fserrors.ErrBadResponse)
	}
	if frame[0] == statusError {
		if len(frame) < 2 {
			return nil, fmt.Errorf("%w: truncated read error frame", fserrors.ErrBadResponse)
		}
		return nil, errorForKind(fserrors.Kind(frame[1]))
	}
	if frame[0] != statusOK {
		return nil, fmt.Errorf("%w: unknown status byte %d", fserrors.ErrBadResponse, frame[0])
	}
	return frame[1:], nil
}
