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
	"sort"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// GetXattr returns the value stored under key on inode.
func (s *Store) GetXattr(inode uint64, key string) ([]byte, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.inodes[inode]; !ok {
		return nil, fserrors.ErrInodeDoesNotExist
	}
	attrs, ok := s.xattrs[inode]
	if !ok {
		return nil, fserrors.ErrMissingXattrKey
	}
	v, ok := attrs[key]
	if !ok {
		return nil, fserrors.ErrMissingXattrKey
	}
	return v, nil
}

// SetXattr stores value under key on inode, creating or replacing it.
func (s *Store) SetXattr(inode uint64, key string, value []byte) error {
	s.lock()
	defer s.unlock()

	if _, ok := s.inodes[inode]; !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	attrs, ok := s.xattrs[inode]
	if !ok {
		attrs = make(map[string][]byte)
		s.xattrs[inode] = attrs
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	attrs[key] = stored

	s.inodes[inode].attrs.Ctime = toTimestamp(s.clock.Now())
	return nil
}

// ListXattrs returns the sorted set of keys set on inode.
func (s *Store) ListXattrs(inode uint64) ([]string, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.inodes[inode]; !ok {
		return nil, fserrors.ErrInodeDoesNotExist
	}
	attrs := s.xattrs[inode]
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// RemoveXattr deletes key from inode.
func (s *Store) RemoveXattr(inode uint64, key string) error {
	s.lock()
	defer s.unlock()

	if _, ok := s.inodes[inode]; !ok {
		return fserrors.ErrInodeDoesNotExist
	}
	attrs, ok := s.xattrs[inode]
	if !ok {
		return fserrors.ErrMissingXattrKey
	}
	if _, ok := attrs[key]; !ok {
		return fserrors.ErrMissingXattrKey
	}
	delete(attrs, key)
	s.inodes[inode].attrs.Ctime = toTimestamp(s.clock.Now())
	return nil
}
