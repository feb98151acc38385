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

// Package datastore defines the opaque per-inode byte-blob storage
// interface that backs regular file contents (§4.4). The metadata store
// owns names, directory structure and attributes; datastore owns only the
// bytes, addressed by inode number, with no notion of a path.
package datastore

// Store is the byte-storage side of a regular file inode. The caller
// (internal/metadata) releases its own lock before ReadAt, WriteAt, Size,
// Truncate and Sync, so calls against the same inode can arrive
// concurrently.
type Store interface {
	// Create allocates empty backing storage for inode. It is an error to
	// call Create twice for the same inode without an intervening Delete.
	Create(inode uint64) error

	// Delete removes the backing storage for inode. Deleting a
	// non-existent inode is a no-op.
	Delete(inode uint64) error

	// ReadAt reads into buf starting at offset, returning the number of
	// bytes read. Reads past the end of the stored data return (0, nil)
	// rather than io.EOF, since a short read past the logical file size
	// is itself meaningful input to the caller's response framing.
	ReadAt(inode uint64, buf []byte, offset int64) (int, error)

	// WriteAt writes data starting at offset, extending the backing
	// storage (zero-filling any gap) if offset+len(data) exceeds the
	// current size.
	WriteAt(inode uint64, data []byte, offset int64) (int, error)

	// Truncate sets the size of inode's backing storage, zero-extending
	// or discarding data as needed.
	Truncate(inode uint64, size int64) error

	// Size reports the current size of inode's backing storage.
	Size(inode uint64) (int64, error)

	// Sync flushes inode's backing storage to stable media (§4.1 fsync).
	Sync(inode uint64) error
}
