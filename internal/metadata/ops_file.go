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

	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/wire"
)

// maxFileSize bounds a single regular file (§4.1 edge cases); writes that
// would push a file past this return ErrFileTooLarge rather than silently
// truncating the request.
const maxFileSize = 1 << 40 // 1 TiB

// Read serves up to len(buf) bytes of inode's content starting at offset
// into buf, returning the slice actually filled. Read never proposes
// through the log: the dispatcher calls this only after the caller has
// waited for the read barrier described in §4.3. ctx must hold read
// permission on inode (§4.1 access check).
func (s *Store) Read(inode uint64, offset uint64, buf []byte, ctx wire.UserContext) ([]byte, error) {
	s.lock()
	entry, ok := s.inodes[inode]
	if !ok {
		s.unlock()
		return nil, fserrors.ErrInodeDoesNotExist
	}
	if entry.attrs.Kind != wire.KindRegular && entry.attrs.Kind != wire.KindSymlink {
		s.unlock()
		return nil, fserrors.ErrOperationNotPermitted
	}
	if !checkAccess(entry.attrs, ctx, permRead) {
		s.unlock()
		return nil, fserrors.ErrAccessDenied
	}
	now := toTimestamp(s.clock.Now())
	entry.attrs.Atime = now
	s.unlock()

	n, err := s.data.ReadAt(inode, buf, int64(offset))
	if err != nil {
		return nil, fmt.Errorf("metadata: reading inode %d: %w", inode, err)
	}
	return buf[:n], nil
}

// Write stores data at offset in inode's content, extending the file if
// necessary, and returns the number of bytes written. ctx must hold write
// permission on inode (§4.1 access check).
func (s *Store) Write(inode uint64, offset uint64, data []byte, ctx wire.UserContext) (uint32, error) {
	if offset+uint64(len(data)) > maxFileSize {
		return 0, fserrors.ErrFileTooLarge
	}

	s.lock()
	entry, ok := s.inodes[inode]
	if !ok {
		s.unlock()
		return 0, fserrors.ErrInodeDoesNotExist
	}
	if entry.attrs.Kind != wire.KindRegular && entry.attrs.Kind != wire.KindSymlink {
		s.unlock()
		return 0, fserrors.ErrOperationNotPermitted
	}
	if !checkAccess(entry.attrs, ctx, permWrite) {
		s.unlock()
		return 0, fserrors.ErrAccessDenied
	}
	s.unlock()

	n, err := s.data.WriteAt(inode, data, int64(offset))
	if err != nil {
		return 0, fmt.Errorf("metadata: writing inode %d: %w", inode, err)
	}

	size, err := s.data.Size(inode)
	if err != nil {
		return uint32(n), fmt.Errorf("metadata: sizing inode %d after write: %w", inode, err)
	}

	s.lock()
	defer s.unlock()
	now := toTimestamp(s.clock.Now())
	entry.attrs.Size = uint64(size)
	entry.attrs.Mtime = now
	entry.attrs.Ctime = now
	return uint32(n), nil
}

// Truncate resizes inode's content to newLength. ctx must hold write
// permission on inode (§4.1 access check).
func (s *Store) Truncate(inode uint64, newLength uint64, ctx wire.UserContext) error {
	if newLength > maxFileSize {
		return fserrors.ErrFileTooLarge
	}

	s.lock()
	entry, ok := s.inodes[inode]
	if !ok {
		s.unlock()
		return fserrors.ErrInodeDoesNotExist
	}
	if entry.attrs.Kind != wire.KindRegular && entry.attrs.Kind != wire.KindSymlink {
		s.unlock()
		return fserrors.ErrOperationNotPermitted
	}
	if !checkAccess(entry.attrs, ctx, permWrite) {
		s.unlock()
		return fserrors.ErrAccessDenied
	}
	s.unlock()

	if err := s.data.Truncate(inode, int64(newLength)); err != nil {
		return fmt.Errorf("metadata: truncating inode %d: %w", inode, err)
	}

	s.lock()
	defer s.unlock()
	now := toTimestamp(s.clock.Now())
	entry.attrs.Size = newLength
	entry.attrs.Mtime = now
	entry.attrs.Ctime = now
	return nil
}

// Chmod sets inode's permission and type bits.
func (s *Store) Chmod(inode uint64, mode uint32, ctx wire.UserContext) error {
	s.lock()
	defer s.unlock()

	entry, ok := s.inodes[inode]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	if ctx.Uid != 0 && ctx.Uid != entry.attrs.Uid {
		return fserrors.ErrAccessDenied
	}

	entry.attrs.Mode = mode
	entry.attrs.Ctime = toTimestamp(s.clock.Now())
	return nil
}

// Chown sets inode's owning uid and/or gid; a nil pointer leaves that
// field unchanged (§4.1 chown edge cases).
func (s *Store) Chown(inode uint64, uid, gid *uint32, ctx wire.UserContext) error {
	s.lock()
	defer s.unlock()

	entry, ok := s.inodes[inode]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	if ctx.Uid != 0 {
		// Non-root callers must own inode and may not change its uid.
		// fleetfs has no group-membership table, so an owner may set the
		// gid to any group.
		if ctx.Uid != entry.attrs.Uid || (uid != nil && *uid != entry.attrs.Uid) {
			return fserrors.ErrAccessDenied
		}
	}

	if uid != nil {
		entry.attrs.Uid = *uid
	}
	if gid != nil {
		entry.attrs.Gid = *gid
	}
	entry.attrs.Ctime = toTimestamp(s.clock.Now())
	return nil
}

// Utimens sets inode's atime and/or mtime. A nil pointer leaves the
// corresponding timestamp unchanged; wire.UTimeNow in Nsec resolves to the
// store's clock at apply time (§4.1, GLOSSARY), so each replica records
// its own clock reading for the same log entry. A non-owner may
// only request UTIME_NOW on every timestamp it supplies, and even then
// only while holding write permission on inode (§4.1 utimens edge case);
// any other non-owner request is denied outright.
func (s *Store) Utimens(inode uint64, atime, mtime *wire.Timestamp, ctx wire.UserContext) error {
	s.lock()
	defer s.unlock()

	entry, ok := s.inodes[inode]
	if !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	if ctx.Uid != 0 && ctx.Uid != entry.attrs.Uid {
		if !onlyRequestsNow(atime, mtime) || !checkAccess(entry.attrs, ctx, permWrite) {
			return fserrors.ErrAccessDenied
		}
	}

	now := toTimestamp(s.clock.Now())
	if atime != nil {
		entry.attrs.Atime = resolveTimestamp(*atime, now)
	}
	if mtime != nil {
		entry.attrs.Mtime = resolveTimestamp(*mtime, now)
	}
	entry.attrs.Ctime = now
	return nil
}

// Fsync flushes inode's content to stable media. Directories and symlinks
// have nothing to flush beyond the metadata table itself, which the log
// already makes durable, so Fsync is a no-op for them.
func (s *Store) Fsync(inode uint64) error {
	s.lock()
	entry, ok := s.inodes[inode]
	if !ok {
		s.unlock()
		return fserrors.ErrInodeDoesNotExist
	}
	kind := entry.attrs.Kind
	s.unlock()

	if kind != wire.KindRegular {
		return nil
	}
	if err := s.data.Sync(inode); err != nil {
		return fmt.Errorf("metadata: syncing inode %d: %w", inode, err)
	}
	return nil
}

func resolveTimestamp(requested, now wire.Timestamp) wire.Timestamp {
	if requested.Nsec == wire.UTimeNow {
		return now
	}
	return requested
}

// onlyRequestsNow reports whether every non-nil timestamp among atime and
// mtime carries the UTIME_NOW sentinel.
func onlyRequestsNow(atime, mtime *wire.Timestamp) bool {
	if atime != nil && atime.Nsec != wire.UTimeNow {
		return false
	}
	if mtime != nil && mtime.Nsec != wire.UTimeNow {
		return false
	}
	return true
}
