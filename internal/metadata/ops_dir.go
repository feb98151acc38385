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
	"sort"

	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/wire"
)

const maxNameLength = 255

// blockSize is the unit newly created directories report as their size
// (§4.1 mkdir), matching the block size fleetfs reports through statfs.
const blockSize = 4096

// Lookup resolves name inside parent. It takes no lock-visible action
// beyond reading, so the dispatcher may serve it from the read path
// (§4.3) once it has waited for a commit-index barrier. ctx must hold
// execute permission on parent (§4.1 access check).
func (s *Store) Lookup(parent uint64, name string, ctx wire.UserContext) (uint64, wire.Attributes, error) {
	s.lock()
	defer s.unlock()

	children, ok := s.directories[parent]
	if !ok {
		return 0, wire.Attributes{}, fserrors.ErrInodeDoesNotExist
	}
	if !checkAccess(s.inodes[parent].attrs, ctx, permExec) {
		return 0, wire.Attributes{}, fserrors.ErrAccessDenied
	}
	child, ok := children[name]
	if !ok {
		return 0, wire.Attributes{}, fserrors.ErrDoesNotExist
	}
	return child, s.inodes[child].attrs, nil
}

// Getattr returns the current attributes for inode.
func (s *Store) Getattr(inode uint64) (wire.Attributes, error) {
	s.lock()
	defer s.unlock()

	e, ok := s.inodes[inode]
	if !ok {
		return wire.Attributes{}, fserrors.ErrInodeDoesNotExist
	}
	return e.attrs, nil
}

// Readdir lists the entries of a directory inode in a stable order, sorted
// by name so replicas and repeated calls agree byte-for-byte.
func (s *Store) Readdir(inode uint64) ([]wire.DirEntry, error) {
	s.lock()
	defer s.unlock()

	children, ok := s.directories[inode]
	if !ok {
		return nil, fserrors.ErrInodeDoesNotExist
	}

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]wire.DirEntry, 0, len(names))
	for _, name := range names {
		child := children[name]
		entries = append(entries, wire.DirEntry{Inode: child, Name: name, Kind: s.inodes[child].attrs.Kind})
	}
	return entries, nil
}

// Create makes a new regular file or symlink named name inside parent,
// owned by uid/gid (mkdir/create take the caller-supplied uid/gid as
// request fields rather than a UserContext; the timestamps come from the
// store's clock at apply time). A symlink's
// target is not stored here: the caller issues a Write of the target bytes
// against the returned inode immediately afterward, so a symlink's content
// is read back exactly like a regular file's (§4.1 create, generalized
// from a single create-by-kind wire operation rather than a bespoke
// symlink/readlink pair).
func (s *Store) Create(parent uint64, name string, uid, gid, mode uint32, kind wire.FileKind) (uint64, wire.Attributes, error) {
	return s.createEntry(parent, name, uid, gid, mode, kind)
}

// Mkdir makes a new directory named name inside parent.
func (s *Store) Mkdir(parent uint64, name string, uid, gid, mode uint32) (uint64, wire.Attributes, error) {
	return s.createEntry(parent, name, uid, gid, mode, wire.KindDirectory)
}

func (s *Store) createEntry(parent uint64, name string, uid, gid, mode uint32, kind wire.FileKind) (uint64, wire.Attributes, error) {
	if len(name) > maxNameLength {
		return 0, wire.Attributes{}, fserrors.ErrNameTooLong
	}

	s.lock()
	defer s.unlock()

	children, ok := s.directories[parent]
	if !ok {
		return 0, wire.Attributes{}, fserrors.ErrInodeDoesNotExist
	}
	// mkdir/create have no separate UserContext on the wire: the
	// caller-supplied uid/gid double as the access-check context, matching
	// the original's check_access(parent, ..., uid, gid, W_OK).
	if !checkAccess(s.inodes[parent].attrs, wire.UserContext{Uid: uid, Gid: gid}, permWrite) {
		return 0, wire.Attributes{}, fserrors.ErrAccessDenied
	}
	if _, exists := children[name]; exists {
		return 0, wire.Attributes{}, fserrors.ErrAlreadyExists
	}

	id := s.nextInode
	s.nextInode++

	now := toTimestamp(s.clock.Now())
	hardlinks := uint32(1)
	var size uint64
	if kind == wire.KindDirectory {
		hardlinks = 2
		size = blockSize
	}
	attrs := wire.Attributes{
		Inode:     id,
		Kind:      kind,
		Mode:      mode,
		Uid:       uid,
		Gid:       gid,
		Size:      size,
		Hardlinks: hardlinks,
		Atime:     now,
		Mtime:     now,
		Ctime:     now,
	}
	s.inodes[id] = &inodeEntry{
		attrs: attrs,
		links: map[linkRef]struct{}{{parent: parent, name: name}: {}},
	}
	children[name] = id

	if kind == wire.KindDirectory {
		s.directories[id] = make(map[string]uint64)
		s.directoryParents[id] = parent
	} else if kind == wire.KindRegular || kind == wire.KindSymlink {
		if err := s.data.Create(id); err != nil {
			delete(s.inodes, id)
			delete(children, name)
			return 0, wire.Attributes{}, fmt.Errorf("metadata: allocating storage for inode %d: %w", id, err)
		}
	}

	parentEntry := s.inodes[parent]
	parentEntry.attrs.Mtime = now
	parentEntry.attrs.Ctime = now

	return id, attrs, nil
}

// Unlink removes a regular-file or symlink directory entry. When the
// inode's hardlink count drops to zero, its backing storage is released.
func (s *Store) Unlink(parent uint64, name string, ctx wire.UserContext) error {
	s.lock()
	defer s.unlock()

	children, ok := s.directories[parent]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	child, ok := children[name]
	if !ok {
		return fserrors.ErrDoesNotExist
	}
	entry := s.inodes[child]
	if entry.attrs.Kind == wire.KindDirectory {
		return fserrors.ErrOperationNotPermitted
	}
	if !checkSticky(s.inodes[parent].attrs, entry.attrs.Uid, ctx) {
		return fserrors.ErrAccessDenied
	}

	delete(children, name)
	delete(entry.links, linkRef{parent: parent, name: name})
	entry.attrs.Hardlinks = uint32(len(entry.links))

	now := toTimestamp(s.clock.Now())
	s.inodes[parent].attrs.Mtime = now
	s.inodes[parent].attrs.Ctime = now

	if entry.attrs.Hardlinks == 0 {
		delete(s.inodes, child)
		delete(s.xattrs, child)
		if entry.attrs.Kind == wire.KindRegular || entry.attrs.Kind == wire.KindSymlink {
			if err := s.data.Delete(child); err != nil {
				return fmt.Errorf("metadata: releasing storage for inode %d: %w", child, err)
			}
		}
	} else {
		entry.attrs.Ctime = now
	}
	return nil
}

// Rmdir removes an empty directory entry.
func (s *Store) Rmdir(parent uint64, name string, ctx wire.UserContext) error {
	s.lock()
	defer s.unlock()

	children, ok := s.directories[parent]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	child, ok := children[name]
	if !ok {
		return fserrors.ErrDoesNotExist
	}
	entry := s.inodes[child]
	if entry.attrs.Kind != wire.KindDirectory {
		return fserrors.ErrOperationNotPermitted
	}
	if len(s.directories[child]) > 0 {
		return fserrors.ErrNotEmpty
	}
	if !checkSticky(s.inodes[parent].attrs, entry.attrs.Uid, ctx) {
		return fserrors.ErrAccessDenied
	}

	delete(children, name)
	delete(s.directories, child)
	delete(s.directoryParents, child)
	delete(s.inodes, child)
	delete(s.xattrs, child)

	now := toTimestamp(s.clock.Now())
	s.inodes[parent].attrs.Mtime = now
	s.inodes[parent].attrs.Ctime = now
	return nil
}

// Rename moves the entry named name in parent to newName in newParent,
// replacing any existing file at the destination (directories may only
// replace an empty directory; POSIX rename semantics, §4.1).
func (s *Store) Rename(parent uint64, name string, newParent uint64, newName string, ctx wire.UserContext) error {
	if len(newName) > maxNameLength {
		return fserrors.ErrNameTooLong
	}

	s.lock()
	defer s.unlock()

	srcChildren, ok := s.directories[parent]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	dstChildren, ok := s.directories[newParent]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	child, ok := srcChildren[name]
	if !ok {
		return fserrors.ErrDoesNotExist
	}
	if !checkSticky(s.inodes[parent].attrs, s.inodes[child].attrs.Uid, ctx) {
		return fserrors.ErrAccessDenied
	}

	if existing, exists := dstChildren[newName]; exists {
		if existing == child {
			return nil
		}
		existingEntry := s.inodes[existing]
		if existingEntry.attrs.Kind == wire.KindDirectory {
			if s.inodes[child].attrs.Kind != wire.KindDirectory {
				return fserrors.ErrOperationNotPermitted
			}
			if len(s.directories[existing]) > 0 {
				return fserrors.ErrNotEmpty
			}
			if !checkSticky(s.inodes[newParent].attrs, existingEntry.attrs.Uid, ctx) {
				return fserrors.ErrAccessDenied
			}
			delete(s.directories, existing)
			delete(s.directoryParents, existing)
			delete(s.inodes, existing)
			delete(s.xattrs, existing)
		} else {
			if !checkSticky(s.inodes[newParent].attrs, existingEntry.attrs.Uid, ctx) {
				return fserrors.ErrAccessDenied
			}
			delete(existingEntry.links, linkRef{parent: newParent, name: newName})
			existingEntry.attrs.Hardlinks = uint32(len(existingEntry.links))
			if existingEntry.attrs.Hardlinks == 0 {
				delete(s.inodes, existing)
				delete(s.xattrs, existing)
				if existingEntry.attrs.Kind == wire.KindRegular || existingEntry.attrs.Kind == wire.KindSymlink {
					if err := s.data.Delete(existing); err != nil {
						return fmt.Errorf("metadata: releasing storage for inode %d: %w", existing, err)
					}
				}
			}
		}
	}

	delete(srcChildren, name)
	dstChildren[newName] = child

	entry := s.inodes[child]
	delete(entry.links, linkRef{parent: parent, name: name})
	entry.links[linkRef{parent: newParent, name: newName}] = struct{}{}

	if entry.attrs.Kind == wire.KindDirectory {
		s.directoryParents[child] = newParent
	}

	now := toTimestamp(s.clock.Now())
	entry.attrs.Ctime = now
	s.inodes[parent].attrs.Mtime = now
	s.inodes[parent].attrs.Ctime = now
	s.inodes[newParent].attrs.Mtime = now
	s.inodes[newParent].attrs.Ctime = now
	return nil
}

// Hardlink adds another name for an existing regular-file inode. Directory
// hardlinking is never permitted (§4.1 edge cases).
func (s *Store) Hardlink(inode uint64, newParent uint64, newName string, ctx wire.UserContext) (wire.Attributes, error) {
	if len(newName) > maxNameLength {
		return wire.Attributes{}, fserrors.ErrNameTooLong
	}

	s.lock()
	defer s.unlock()

	entry, ok := s.inodes[inode]
	if !ok {
		return wire.Attributes{}, fserrors.ErrInodeDoesNotExist
	}
	if entry.attrs.Kind == wire.KindDirectory {
		return wire.Attributes{}, fserrors.ErrOperationNotPermitted
	}
	dstChildren, ok := s.directories[newParent]
	if !ok {
		return wire.Attributes{}, fserrors.ErrInodeDoesNotExist
	}
	if _, exists := dstChildren[newName]; exists {
		return wire.Attributes{}, fserrors.ErrAlreadyExists
	}

	dstChildren[newName] = inode
	entry.links[linkRef{parent: newParent, name: newName}] = struct{}{}
	entry.attrs.Hardlinks = uint32(len(entry.links))

	now := toTimestamp(s.clock.Now())
	entry.attrs.Ctime = now
	s.inodes[newParent].attrs.Mtime = now
	s.inodes[newParent].attrs.Ctime = now
	return entry.attrs, nil
}
