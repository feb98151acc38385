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

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/fleetfs/fleetfs/internal/wire"
)

// Checksum computes a deterministic digest of the whole namespace (every
// inode's attributes and every directory's entries, sorted by inode
// number), so two replicas can be compared after FilesystemCheckRequest
// without shipping the entire tree over the wire. This is a supplemented
// feature (original_source/'s consistency-checking tool) exposed over
// TypeFilesystemChecksum.
func (s *Store) Checksum() uint64 {
	s.lock()
	defer s.unlock()

	ids := make([]uint64, 0, len(s.inodes))
	for id := range s.inodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := fnv.New64a()
	for _, id := range ids {
		e := s.inodes[id]
		fmt.Fprintf(h, "%d|%d|%d|%d|%d|%d|%d|%d|%d.%d|%d.%d|%d.%d;",
			e.attrs.Inode, e.attrs.Size, e.attrs.Kind, e.attrs.Mode,
			e.attrs.Uid, e.attrs.Gid, e.attrs.Rdev, e.attrs.Hardlinks,
			e.attrs.Atime.Sec, e.attrs.Atime.Nsec,
			e.attrs.Mtime.Sec, e.attrs.Mtime.Nsec,
			e.attrs.Ctime.Sec, e.attrs.Ctime.Nsec)

		if children, ok := s.directories[id]; ok {
			names := make([]string, 0, len(children))
			for name := range children {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(h, "%s=%d,", name, children[name])
			}
		}
		h.Write([]byte{';'})
	}
	return h.Sum64()
}

// Check walks the namespace looking for violations of the invariants
// checkInvariants would otherwise only panic on, returning a human-
// readable report instead of crashing the process. It backs
// TypeFilesystemCheck, a supplemented read-only diagnostic operation.
func (s *Store) Check() wire.CheckResponse {
	s.lock()
	defer s.unlock()

	var problems []string

	for id, e := range s.inodes {
		if e.attrs.Inode != id {
			problems = append(problems, fmt.Sprintf("inode %d: attrs.Inode=%d mismatch", id, e.attrs.Inode))
		}
		if e.attrs.Kind == wire.KindRegular || e.attrs.Kind == wire.KindSymlink {
			if int(e.attrs.Hardlinks) != len(e.links) {
				problems = append(problems, fmt.Sprintf("inode %d: hardlink count %d != %d back-references", id, e.attrs.Hardlinks, len(e.links)))
			}
		}
	}

	for dir, children := range s.directories {
		if _, ok := s.inodes[dir]; !ok {
			problems = append(problems, fmt.Sprintf("directory %d: no inode entry", dir))
			continue
		}
		for name, child := range children {
			if _, ok := s.inodes[child]; !ok {
				problems = append(problems, fmt.Sprintf("directory %d entry %q: missing inode %d", dir, name, child))
			}
		}
	}

	if len(problems) == 0 {
		return wire.CheckResponse{Healthy: true}
	}

	detail := problems[0]
	for _, p := range problems[1:] {
		detail += "; " + p
	}
	return wire.CheckResponse{Healthy: false, Detail: detail}
}
