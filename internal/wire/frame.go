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

// Package wire implements the binary request/response framing described in
// §4.2 and §6 of the design: a u32 little-endian length prefix followed by
// a typed payload. Decoding borrows byte-slice fields directly from the
// caller's buffer; string fields are copied. A successful Read response
// skips the field envelope but still copies the data into its payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// RequestType is the union tag carried by every frame.
type RequestType uint8

const (
	TypeGetLeader RequestType = iota
	TypeLatestCommit
	TypeRaft
	TypeFilesystemCheck
	TypeFilesystemChecksum
	TypeLookup
	TypeGetattr
	TypeMkdir
	TypeCreate
	TypeUnlink
	TypeRmdir
	TypeRename
	TypeHardlink
	TypeRead
	TypeWrite
	TypeTruncate
	TypeChmod
	TypeChown
	TypeUtimens
	TypeReaddir
	TypeGetXattr
	TypeSetXattr
	TypeListXattrs
	TypeRemoveXattr
	TypeFsync
)

// IsWrite reports whether a request of this type must be proposed through
// the log rather than served from local state (§4.3).
func (t RequestType) IsWrite() bool {
	switch t {
	case TypeMkdir, TypeCreate, TypeUnlink, TypeRmdir, TypeRename, TypeHardlink,
		TypeWrite, TypeTruncate, TypeChmod, TypeChown, TypeUtimens,
		TypeSetXattr, TypeRemoveXattr, TypeFsync:
		return true
	default:
		return false
	}
}

// IsRaftControl reports whether a request of this type is peer-to-peer log
// plumbing that bypasses both the write and read paths entirely.
func (t RequestType) IsRaftControl() bool {
	switch t {
	case TypeGetLeader, TypeLatestCommit, TypeRaft:
		return true
	default:
		return false
	}
}

var requestTypeNames = map[RequestType]string{
	TypeGetLeader:          "get_leader",
	TypeLatestCommit:       "latest_commit",
	TypeRaft:               "raft",
	TypeFilesystemCheck:    "filesystem_check",
	TypeFilesystemChecksum: "filesystem_checksum",
	TypeLookup:             "lookup",
	TypeGetattr:            "getattr",
	TypeMkdir:              "mkdir",
	TypeCreate:             "create",
	TypeUnlink:             "unlink",
	TypeRmdir:              "rmdir",
	TypeRename:             "rename",
	TypeHardlink:           "hardlink",
	TypeRead:               "read",
	TypeWrite:              "write",
	TypeTruncate:           "truncate",
	TypeChmod:              "chmod",
	TypeChown:              "chown",
	TypeUtimens:            "utimens",
	TypeReaddir:            "readdir",
	TypeGetXattr:           "get_xattr",
	TypeSetXattr:           "set_xattr",
	TypeListXattrs:         "list_xattrs",
	TypeRemoveXattr:        "remove_xattr",
	TypeFsync:              "fsync",
}

// String returns the lower_snake_case operation name used as a metrics
// label and in log lines.
func (t RequestType) String() string {
	if name, ok := requestTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

const maxFrameLength = 64 << 20 // 64 MiB; generous relative to the 1 MiB read-ahead ceiling.

// ReadFrame reads a u32-length-prefixed frame from r into a freshly
// allocated buffer sized exactly to the payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: reading frame length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameLength {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", fserrors.ErrBadRequest, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", err)
	}
	return buf, nil
}

// ReadFrameInto reads a frame into buf, growing it if necessary, and
// returns the slice of buf holding the payload. This is the zero-copy path
// used by the client's per-goroutine response buffer (§4.4): repeated
// calls reuse the backing array instead of allocating per request.
func ReadFrameInto(r io.Reader, buf *[]byte) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: reading frame length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFrameLength {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", fserrors.ErrBadRequest, n)
	}
	if cap(*buf) < int(n) {
		*buf = make([]byte, n)
	}
	*buf = (*buf)[:n]
	if _, err := io.ReadFull(r, *buf); err != nil {
		return nil, fmt.Errorf("wire: reading frame body: %w", err)
	}
	return *buf, nil
}

// WriteFrame writes a u32-length prefix followed by payload to w in a
// single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	frame := make([]byte, 0, 4+len(payload))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, payload...)
	_, err := w.Write(frame)
	return err
}
