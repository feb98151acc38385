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

package readahead_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/internal/fsclient/readahead"
	"github.com/fleetfs/fleetfs/internal/wire"
)

type countingFetcher struct {
	calls atomic.Int32
	data  []byte
}

func (f *countingFetcher) Read(ctx context.Context, inode, offset uint64, length uint32, uc wire.UserContext) ([]byte, error) {
	f.calls.Add(1)
	end := offset + uint64(length)
	if end > uint64(len(f.data)) {
		end = uint64(len(f.data))
	}
	if offset > end {
		return nil, nil
	}
	return f.data[offset:end], nil
}

func TestSequentialReadsFromSameProcessHitCache(t *testing.T) {
	data := make([]byte, readahead.FetchBytes*2)
	for i := range data {
		data[i] = byte(i)
	}
	fetcher := &countingFetcher{data: data}
	cache := readahead.New()

	first, hit1, err := cache.Read(context.Background(), fetcher, 1, 100, 0, readahead.FetchSize, 42, wire.UserContext{})
	require.NoError(t, err)
	assert.False(t, hit1)
	assert.Equal(t, data[:readahead.FetchSize], first)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	second, hit2, err := cache.Read(context.Background(), fetcher, 1, 100, readahead.FetchSize, readahead.FetchSize, 42, wire.UserContext{})
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, data[readahead.FetchSize:2*readahead.FetchSize], second)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "second read should be served from cache with no extra fetch")
}

func TestDifferentProcessIDMisses(t *testing.T) {
	data := make([]byte, readahead.FetchBytes*2)
	fetcher := &countingFetcher{data: data}
	cache := readahead.New()

	_, _, err := cache.Read(context.Background(), fetcher, 1, 100, 0, readahead.FetchSize, 1, wire.UserContext{})
	require.NoError(t, err)

	_, hit, err := cache.Read(context.Background(), fetcher, 1, 100, readahead.FetchSize, readahead.FetchSize, 2, wire.UserContext{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestSmallReadsNeverTriggerReadahead(t *testing.T) {
	fetcher := &countingFetcher{data: make([]byte, 4096)}
	cache := readahead.New()

	_, hit, err := cache.Read(context.Background(), fetcher, 1, 100, 0, 1024, 1, wire.UserContext{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestReleasePurgesCache(t *testing.T) {
	data := make([]byte, readahead.FetchBytes*2)
	fetcher := &countingFetcher{data: data}
	cache := readahead.New()

	_, _, err := cache.Read(context.Background(), fetcher, 1, 100, 0, readahead.FetchSize, 1, wire.UserContext{})
	require.NoError(t, err)

	cache.Release(1)

	_, hit, err := cache.Read(context.Background(), fetcher, 1, 100, readahead.FetchSize, readahead.FetchSize, 1, wire.UserContext{})
	require.NoError(t, err)
	assert.False(t, hit, "cache entry should have been purged by Release")
}
