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

package apply_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/clock"
	"github.com/fleetfs/fleetfs/internal/apply"
	"github.com/fleetfs/fleetfs/internal/datastore/localdisk"
	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/metadata"
	"github.com/fleetfs/fleetfs/internal/wire"
)

func newExecutor(t *testing.T) *apply.Executor {
	t.Helper()
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)
	store := metadata.New(data, clock.NewSimulatedClock(time.Unix(1, 0)), 0, 0, 0o777)
	return apply.New(store, nil)
}

func TestApplyMkdirThenLookupShape(t *testing.T) {
	e := newExecutor(t)

	frame := wire.EncodeRequest(wire.TypeMkdir, wire.MkdirRequest{
		Parent: metadata.RootInode, Name: "dir", Uid: 1, Gid: 1, Mode: 0o755,
	})
	respFrame := e.Apply(1, frame)

	resp, err := wire.DecodeResponse(wire.TypeMkdir, respFrame)
	require.NoError(t, err)
	inodeResp, ok := resp.(wire.InodeResponse)
	require.True(t, ok)
	assert.Equal(t, wire.KindDirectory, inodeResp.Attrs.Kind)
}

func TestApplyUnknownParentProducesErrorResponse(t *testing.T) {
	e := newExecutor(t)

	frame := wire.EncodeRequest(wire.TypeMkdir, wire.MkdirRequest{
		Parent: 999, Name: "dir", Uid: 0, Gid: 0, Mode: 0o755,
	})
	respFrame := e.Apply(1, frame)

	_, err := wire.DecodeResponse(wire.TypeMkdir, respFrame)
	assert.ErrorIs(t, err, fserrors.ErrInodeDoesNotExist)
}

func TestApplyCreateThenWrite(t *testing.T) {
	e := newExecutor(t)

	createFrame := wire.EncodeRequest(wire.TypeCreate, wire.CreateRequest{
		Parent: metadata.RootInode, Name: "f", Uid: 0, Gid: 0, Mode: 0o644, Kind: wire.KindRegular,
	})
	createResp, err := wire.DecodeResponse(wire.TypeCreate, e.Apply(1, createFrame))
	require.NoError(t, err)
	inode := createResp.(wire.InodeResponse).Inode

	writeFrame := wire.EncodeRequest(wire.TypeWrite, wire.WriteRequest{
		Inode: inode, Offset: 0, Data: []byte("payload"),
	})
	writeResp, err := wire.DecodeResponse(wire.TypeWrite, e.Apply(2, writeFrame))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), writeResp.(wire.WrittenResponse).BytesWritten)
}
