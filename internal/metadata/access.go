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

package metadata

import "github.com/fleetfs/fleetfs/internal/wire"

const (
	permRead  uint32 = 0o4
	permWrite uint32 = 0o2
	permExec  uint32 = 0o1

	modeSticky uint32 = 0o1000
)

// checkAccess reports whether ctx may perform an access requiring want
// (some combination of permRead/permWrite/permExec) against an inode with
// the given attrs, using standard POSIX owner/group/other matching. Uid 0
// bypasses every check, matching superuser semantics.
func checkAccess(attrs wire.Attributes, ctx wire.UserContext, want uint32) bool {
	if ctx.Uid == 0 {
		return true
	}

	var have uint32
	switch {
	case ctx.Uid == attrs.Uid:
		have = (attrs.Mode >> 6) & 0o7
	case ctx.Gid == attrs.Gid:
		have = (attrs.Mode >> 3) & 0o7
	default:
		have = attrs.Mode & 0o7
	}
	return have&want == want
}

// checkSticky reports whether ctx is allowed to remove or rename an entry
// named name inside a directory whose attrs are dirAttrs, owned by
// entryUid, honoring the sticky bit (§4.1 unlink/rename edge cases): with
// the sticky bit set, only the directory owner, the entry owner or root
// may do so.
func checkSticky(dirAttrs wire.Attributes, entryUid uint32, ctx wire.UserContext) bool {
	if ctx.Uid == 0 {
		return true
	}
	if dirAttrs.Mode&modeSticky == 0 {
		return true
	}
	return ctx.Uid == dirAttrs.Uid || ctx.Uid == entryUid
}
