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

// Package localdisk implements datastore.Store by keeping one regular file
// per inode under a data directory, named by inode number. It is the
// reference Store implementation for a single fleetfs node; every replica
// in a cluster runs its own independent copy, kept in sync because the
// apply loop feeds every replica the same ordered write operations.
package localdisk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Store is a datastore.Store backed by one file per inode in dir.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("localdisk: creating data dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(inode uint64) string {
	return filepath.Join(s.dir, strconv.FormatUint(inode, 10))
}

func (s *Store) Create(inode uint64) error {
	f, err := os.OpenFile(s.path(inode), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("localdisk: create inode %d: %w", inode, err)
	}
	return f.Close()
}

func (s *Store) Delete(inode uint64) error {
	if err := os.Remove(s.path(inode)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localdisk: delete inode %d: %w", inode, err)
	}
	return nil
}

func (s *Store) ReadAt(inode uint64, buf []byte, offset int64) (int, error) {
	f, err := os.Open(s.path(inode))
	if err != nil {
		return 0, fmt.Errorf("localdisk: open inode %d for read: %w", inode, err)
	}
	defer f.Close()

	n, err := f.ReadAt(buf, offset)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		return n, fmt.Errorf("localdisk: read inode %d: %w", inode, err)
	}
	return n, nil
}

func (s *Store) WriteAt(inode uint64, data []byte, offset int64) (int, error) {
	f, err := os.OpenFile(s.path(inode), os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("localdisk: open inode %d for write: %w", inode, err)
	}
	defer f.Close()

	n, err := f.WriteAt(data, offset)
	if err != nil {
		return n, fmt.Errorf("localdisk: write inode %d: %w", inode, err)
	}
	return n, nil
}

func (s *Store) Truncate(inode uint64, size int64) error {
	if err := os.Truncate(s.path(inode), size); err != nil {
		return fmt.Errorf("localdisk: truncate inode %d: %w", inode, err)
	}
	return nil
}

func (s *Store) Size(inode uint64) (int64, error) {
	fi, err := os.Stat(s.path(inode))
	if err != nil {
		return 0, fmt.Errorf("localdisk: stat inode %d: %w", inode, err)
	}
	return fi.Size(), nil
}

func (s *Store) Sync(inode uint64) error {
	f, err := os.OpenFile(s.path(inode), os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("localdisk: open inode %d for sync: %w", inode, err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return fmt.Errorf("localdisk: sync inode %d: %w", inode, err)
	}
	return nil
}
