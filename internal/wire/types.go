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

import "github.com/fleetfs/fleetfs/internal/fserrors"

// FileKind mirrors the three inode kinds in §3.
type FileKind uint8

const (
	KindRegular FileKind = iota
	KindDirectory
	KindSymlink
)

// UserContext is the (uid, gid) pair every user-facing operation carries.
type UserContext struct {
	Uid uint32
	Gid uint32
}

// Timestamp is the (seconds, nanos) pair used for atime/mtime/ctime (§3).
type Timestamp struct {
	Sec  int64
	Nsec int32
}

// UTimeNow is the sentinel nanos value meaning "resolve to the current
// time at apply time" (§4.1 utimens, GLOSSARY).
const UTimeNow int32 = -1

// Attributes is the wire form of an inode's metadata (§3).
type Attributes struct {
	Inode         uint64
	Size          uint64
	Kind          FileKind
	Mode          uint32
	Uid           uint32
	Gid           uint32
	Rdev          uint32
	Hardlinks     uint32
	Atime         Timestamp
	Mtime         Timestamp
	Ctime         Timestamp
}

// DirEntry is one line of a readdir response (§4.1 readdir).
type DirEntry struct {
	Inode uint64
	Name  string
	Kind  FileKind
}

// Requests, one struct per RequestType. []byte fields such as Value and
// Data alias the caller's decode buffer (zero-copy decode, §4.2); string
// fields such as Name and Key are copies.

type LookupRequest struct {
	Parent uint64
	Name   string
	Ctx    UserContext
}

type GetattrRequest struct {
	Inode uint64
}

type CreateRequest struct {
	Parent uint64
	Name   string
	Uid    uint32
	Gid    uint32
	Mode   uint32
	Kind   FileKind
}

type MkdirRequest struct {
	Parent uint64
	Name   string
	Uid    uint32
	Gid    uint32
	Mode   uint32
}

type UnlinkRequest struct {
	Parent uint64
	Name   string
	Ctx    UserContext
}

type RmdirRequest struct {
	Parent uint64
	Name   string
	Ctx    UserContext
}

type RenameRequest struct {
	Parent    uint64
	Name      string
	NewParent uint64
	NewName   string
	Ctx       UserContext
}

type HardlinkRequest struct {
	Inode     uint64
	NewParent uint64
	NewName   string
	Ctx       UserContext
}

type ReadRequest struct {
	Inode  uint64
	Offset uint64
	Length uint32
	Ctx    UserContext
}

type WriteRequest struct {
	Inode  uint64
	Offset uint64
	Data   []byte
	Ctx    UserContext
}

type TruncateRequest struct {
	Inode     uint64
	NewLength uint64
	Ctx       UserContext
}

type ChmodRequest struct {
	Inode uint64
	Mode  uint32
	Ctx   UserContext
}

type ChownRequest struct {
	Inode     uint64
	Uid       *uint32
	Gid       *uint32
	Ctx       UserContext
}

type UtimensRequest struct {
	Inode uint64
	Atime *Timestamp
	Mtime *Timestamp
	Ctx   UserContext
}

type ReaddirRequest struct {
	Inode uint64
}

type GetXattrRequest struct {
	Inode uint64
	Key   string
}

type SetXattrRequest struct {
	Inode uint64
	Key   string
	Value []byte
}

type ListXattrsRequest struct {
	Inode uint64
}

type RemoveXattrRequest struct {
	Inode uint64
	Key   string
}

type FsyncRequest struct {
	Inode uint64
}

type GetLeaderRequest struct{}

type LatestCommitRequest struct{}

// RaftRequest wraps an opaque peer-to-peer log envelope (§4.3); the core
// never looks inside it.
type RaftRequest struct {
	Payload []byte
}

type FilesystemCheckRequest struct{}

type FilesystemChecksumRequest struct{}

// Responses.

type NodeIdResponse struct {
	NodeId string
}

type LatestCommitResponse struct {
	Index uint64
}

type EmptyResponse struct{}

type InodeResponse struct {
	Inode uint64
	Attrs Attributes
}

type FileMetadataResponse struct {
	Attrs Attributes
}

type DirectoryListingResponse struct {
	Entries []DirEntry
}

type XattrValueResponse struct {
	Value []byte
}

type XattrListResponse struct {
	Keys []string
}

type WrittenResponse struct {
	BytesWritten uint32
}

type ChecksumResponse struct {
	Checksum uint64
}

type CheckResponse struct {
	Healthy bool
	Detail  string
}

type ErrorResponse struct {
	Code fserrors.Kind
}
