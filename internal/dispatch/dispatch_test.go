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

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/clock"
	"github.com/fleetfs/fleetfs/internal/apply"
	"github.com/fleetfs/fleetfs/internal/datastore/localdisk"
	"github.com/fleetfs/fleetfs/internal/dispatch"
	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/metadata"
	"github.com/fleetfs/fleetfs/internal/metrics"
	"github.com/fleetfs/fleetfs/internal/raftlog"
	"github.com/fleetfs/fleetfs/internal/wire"
)

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *metadata.Store) {
	t.Helper()
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)
	store := metadata.New(data, clock.NewSimulatedClock(time.Unix(1, 0)), 0, 0, 0o777)
	exec := apply.New(store, nil)
	log := raftlog.NewFake("n1", exec.Apply)
	return dispatch.New(log, store, nil, metrics.New(), nil), store
}

func TestDispatchWriteThenReadRoundTrip(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	createFrame := wire.EncodeRequest(wire.TypeCreate, wire.CreateRequest{
		Parent: metadata.RootInode, Name: "f", Uid: 1, Gid: 1, Mode: 0o644, Kind: wire.KindRegular,
	})
	createResp, err := wire.DecodeResponse(wire.TypeCreate, d.Handle(ctx, createFrame))
	require.NoError(t, err)
	inode := createResp.(wire.InodeResponse).Inode

	writeFrame := wire.EncodeRequest(wire.TypeWrite, wire.WriteRequest{
		Inode: inode, Offset: 0, Data: []byte("hello"),
	})
	writeResp, err := wire.DecodeResponse(wire.TypeWrite, d.Handle(ctx, writeFrame))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), writeResp.(wire.WrittenResponse).BytesWritten)

	readFrame := wire.EncodeRequest(wire.TypeRead, wire.ReadRequest{Inode: inode, Offset: 0, Length: 5})
	data, err := wire.DecodeReadResponseFast(d.Handle(ctx, readFrame))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestDispatchLookupUnknownNameReturnsErrorFrame(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	frame := wire.EncodeRequest(wire.TypeLookup, wire.LookupRequest{Parent: metadata.RootInode, Name: "missing"})
	resp := d.Handle(ctx, frame)

	_, err := wire.DecodeResponse(wire.TypeLookup, resp)
	assert.ErrorIs(t, err, fserrors.ErrDoesNotExist)
}

func TestDispatchGetLeader(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	frame := wire.EncodeRequest(wire.TypeGetLeader, wire.GetLeaderRequest{})
	resp, err := wire.DecodeResponse(wire.TypeGetLeader, d.Handle(ctx, frame))
	require.NoError(t, err)
	assert.Equal(t, "n1", resp.(wire.NodeIdResponse).NodeId)
}

func TestDispatchChecksumAndCheck(t *testing.T) {
	d, store := newDispatcher(t)
	ctx := context.Background()

	frame := wire.EncodeRequest(wire.TypeFilesystemChecksum, wire.FilesystemChecksumRequest{})
	resp, err := wire.DecodeResponse(wire.TypeFilesystemChecksum, d.Handle(ctx, frame))
	require.NoError(t, err)
	assert.Equal(t, store.Checksum(), resp.(wire.ChecksumResponse).Checksum)

	checkFrame := wire.EncodeRequest(wire.TypeFilesystemCheck, wire.FilesystemCheckRequest{})
	checkResp, err := wire.DecodeResponse(wire.TypeFilesystemCheck, d.Handle(ctx, checkFrame))
	require.NoError(t, err)
	assert.True(t, checkResp.(wire.CheckResponse).Healthy)
}

func TestDispatchMalformedFrameReturnsBadRequest(t *testing.T) {
	d, _ := newDispatcher(t)
	resp := d.Handle(context.Background(), []byte{0xff})

	_, err := wire.DecodeResponse(wire.TypeLookup, resp)
	assert.ErrorIs(t, err, fserrors.ErrBadRequest)
}
