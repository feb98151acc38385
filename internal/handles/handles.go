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

// Package handles implements the opaque file-handle table a client gets
// back from open (§4.5): a 64-bit handle carrying a snapshot of the
// {read, write} capability the open was granted, independent of whatever
// the backing inode's permission bits do afterward.
package handles

import "sync"

// Capability is the {read, write} snapshot taken at open time.
type Capability struct {
	Read  bool
	Write bool
}

// Table hands out opaque handles and tracks their capability and target
// inode. It is independent of internal/metadata's locking: a handle can
// be looked up without ever touching the metadata store's mutex.
type Table struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]entry
}

type entry struct {
	inode uint64
	cap   Capability
}

// New returns an empty Table.
func New() *Table {
	return &Table{next: 1, live: make(map[uint64]entry)}
}

// Open allocates a new handle for inode with the given capability.
func (t *Table) Open(inode uint64, cap Capability) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.next
	t.next++
	t.live[h] = entry{inode: inode, cap: cap}
	return h
}

// Lookup returns the inode and capability a handle was opened with, and
// whether it is still open.
func (t *Table) Lookup(handle uint64) (inode uint64, cap Capability, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.live[handle]
	return e.inode, e.cap, ok
}

// Close releases a handle. Closing an unknown or already-closed handle is
// a no-op.
func (t *Table) Close(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, handle)
}

// Len reports the number of currently open handles, for metrics/tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
