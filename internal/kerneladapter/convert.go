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

// Package kerneladapter implements jacobsa/fuse's fuseutil.FileSystem on
// top of internal/fsclient, translating kernel ops into fleetfs wire
// calls and their wire.Attributes back into fuseops.InodeAttributes
// (§4.6's "external collaborator" the core protocol never looks inside).
package kerneladapter

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/fleetfs/fleetfs/internal/wire"
)

func toFileMode(kind wire.FileKind, mode uint32) os.FileMode {
	m := os.FileMode(mode & 0o7777)
	switch kind {
	case wire.KindDirectory:
		m |= os.ModeDir
	case wire.KindSymlink:
		m |= os.ModeSymlink
	}
	return m
}

func toTime(ts wire.Timestamp) time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec))
}

func toInodeAttributes(attrs wire.Attributes) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  attrs.Size,
		Nlink: attrs.Hardlinks,
		Mode:  toFileMode(attrs.Kind, attrs.Mode),
		Uid:   attrs.Uid,
		Gid:   attrs.Gid,
		Atime: toTime(attrs.Atime),
		Mtime: toTime(attrs.Mtime),
		Ctime: toTime(attrs.Ctime),
	}
}

func toUserContext(uid, gid uint32) wire.UserContext {
	return wire.UserContext{Uid: uid, Gid: gid}
}

func toTimestamp(t time.Time) wire.Timestamp {
	return wire.Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

func toDirentType(kind wire.FileKind) fuseutil.DirentType {
	switch kind {
	case wire.KindDirectory:
		return fuseutil.DT_Directory
	case wire.KindSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}
