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

// Package readahead implements the client-side, per-handle read-ahead
// cache described in §4.5: a read of 128 KiB or more triggers an 8x
// over-fetch, and a tightly-sequenced follow-up read from the same
// process is served out of the cached remainder instead of going back to
// the network.
package readahead

import (
	"context"
	"sync"
	"time"

	"github.com/fleetfs/fleetfs/internal/wire"
)

// FetchSize is the size threshold that triggers read-ahead and the unit
// it is measured in.
const FetchSize = 128 * 1024

// FetchMultiple is how many FetchSize units one read-ahead fetch pulls.
const FetchMultiple = 8

// FetchBytes is the total bytes one read-ahead fetch requests (1 MiB).
const FetchBytes = FetchSize * FetchMultiple

// maxAge is how long a cache entry stays eligible for a hit.
const maxAge = time.Millisecond

// Fetcher performs the underlying network read; *fsclient.Client
// satisfies this via its Read method.
type Fetcher interface {
	Read(ctx context.Context, inode, offset uint64, length uint32, uc wire.UserContext) ([]byte, error)
}

type entry struct {
	data      []byte
	offset    uint64 // file offset the cached data continues from
	processID uint32
	fetchedAt time.Time
}

// Cache holds one read-ahead entry per open file handle. Its mutex is
// independent of any metadata-store lock (§5): the cache is consulted and
// updated entirely client-side, never while holding a lock shared with
// anything that talks to the network.
type Cache struct {
	mu      sync.Mutex
	entries map[uint64]*entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[uint64]*entry)}
}

// Read serves a read of length bytes at offset on handle's inode,
// submitted by processID on behalf of uc. It consults the cache first; on
// a miss (or a read too small to read ahead) it fetches from fetcher,
// populating the cache when the read qualifies for look-ahead (§4.5). uc
// is forwarded to every fetch so the read-ahead path enforces the same
// per-user permission a direct read would (§4.1 access check).
func (c *Cache) Read(ctx context.Context, fetcher Fetcher, handle, inode uint64, offset uint64, length uint32, processID uint32, uc wire.UserContext) ([]byte, bool, error) {
	c.mu.Lock()
	if e, ok := c.entries[handle]; ok && c.hits(e, offset, processID, length) {
		data := e.data[:length]
		e.data = e.data[length:]
		e.offset += uint64(length)
		c.mu.Unlock()
		return data, true, nil
	}
	delete(c.entries, handle)
	c.mu.Unlock()

	if length < FetchSize {
		data, err := fetcher.Read(ctx, inode, offset, length, uc)
		return data, false, err
	}

	fetched, err := fetcher.Read(ctx, inode, offset, FetchBytes, uc)
	if err != nil {
		return nil, false, err
	}
	if uint32(len(fetched)) <= length {
		// Short read (near EOF): nothing left to cache.
		return fetched, false, nil
	}

	result := fetched[:length]
	rest := append([]byte(nil), fetched[length:]...)
	c.mu.Lock()
	c.entries[handle] = &entry{
		data:      rest,
		offset:    offset + uint64(length),
		processID: processID,
		fetchedAt: time.Now(),
	}
	c.mu.Unlock()

	return result, false, nil
}

func (c *Cache) hits(e *entry, offset uint64, processID uint32, length uint32) bool {
	if e.offset != offset {
		return false
	}
	if e.processID != processID {
		return false
	}
	if uint32(len(e.data)) < length {
		return false
	}
	return time.Since(e.fetchedAt) < maxAge
}

// Release discards any cached entry for handle (§4.5: purged on release).
func (c *Cache) Release(handle uint64) {
	c.mu.Lock()
	delete(c.entries, handle)
	c.mu.Unlock()
}
