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
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/fleetfs/fleetfs/internal/wire"
)

// snapshotState is the gob-serializable form of everything Store holds in
// memory; regular file and symlink content lives in the datastore and is
// not part of this snapshot, mirroring how the teacher's GCS backend
// treated object content and listings as separately-sourced state.
type snapshotState struct {
	NextInode        uint64
	Directories      map[uint64]map[string]uint64
	DirectoryParents map[uint64]uint64
	Inodes           map[uint64]storedInode
	Xattrs           map[uint64]map[string][]byte
}

type storedInode struct {
	Attrs         wire.Attributes
	SymlinkTarget string
	Links         []storedLink
}

// storedLink is linkRef with exported fields, which gob requires.
type storedLink struct {
	Parent uint64
	Name   string
}

// MarshalSnapshot serializes the entire namespace for raft snapshotting.
func (s *Store) MarshalSnapshot() ([]byte, error) {
	s.lock()
	defer s.unlock()

	state := snapshotState{
		NextInode:        s.nextInode,
		Directories:      s.directories,
		DirectoryParents: s.directoryParents,
		Inodes:           make(map[uint64]storedInode, len(s.inodes)),
		Xattrs:           s.xattrs,
	}
	for id, e := range s.inodes {
		links := make([]storedLink, 0, len(e.links))
		for l := range e.links {
			links = append(links, storedLink{Parent: l.parent, Name: l.name})
		}
		state.Inodes[id] = storedInode{Attrs: e.attrs, SymlinkTarget: e.symlinkTarget, Links: links}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, fmt.Errorf("metadata: encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalSnapshot replaces the namespace with the contents of data, as
// produced by a prior MarshalSnapshot. It is used on raft snapshot
// restore, never during normal operation.
func (s *Store) UnmarshalSnapshot(data []byte) error {
	var state snapshotState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("metadata: decoding snapshot: %w", err)
	}

	s.lock()
	defer s.unlock()

	s.nextInode = state.NextInode
	s.directories = state.Directories
	s.directoryParents = state.DirectoryParents
	s.xattrs = state.Xattrs
	s.inodes = make(map[uint64]*inodeEntry, len(state.Inodes))
	for id, si := range state.Inodes {
		links := make(map[linkRef]struct{}, len(si.Links))
		for _, l := range si.Links {
			links[linkRef{parent: l.Parent, name: l.Name}] = struct{}{}
		}
		s.inodes[id] = &inodeEntry{attrs: si.Attrs, symlinkTarget: si.SymlinkTarget, links: links}
	}
	return nil
}
