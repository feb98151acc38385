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

package metadata_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/clock"
	"github.com/fleetfs/fleetfs/internal/datastore/localdisk"
	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/metadata"
	"github.com/fleetfs/fleetfs/internal/wire"
)

func newStore(t *testing.T) *metadata.Store {
	t.Helper()
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)
	return metadata.New(data, clock.NewSimulatedClock(time.Unix(1000, 0)), 0, 0, 0o777)
}

func TestCreateAndLookup(t *testing.T) {
	s := newStore(t)

	id, attrs, err := s.Create(metadata.RootInode, "hello.txt", 1, 1, 0o644, wire.KindRegular)
	require.NoError(t, err)
	assert.Equal(t, wire.KindRegular, attrs.Kind)

	gotID, gotAttrs, err := s.Lookup(metadata.RootInode, "hello.txt", wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, attrs, gotAttrs)

	_, _, err = s.Lookup(metadata.RootInode, "missing.txt", wire.UserContext{})
	assert.ErrorIs(t, err, fserrors.ErrDoesNotExist)
}

func TestCreateDuplicateNameFails(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Create(metadata.RootInode, "dup", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)

	_, _, err = s.Create(metadata.RootInode, "dup", 0, 0, 0o644, wire.KindRegular)
	assert.ErrorIs(t, err, fserrors.ErrAlreadyExists)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newStore(t)
	id, _, err := s.Create(metadata.RootInode, "data.bin", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)

	n, err := s.Write(id, 0, []byte("hello world"), wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, uint32(11), n)

	buf := make([]byte, 32)
	got, err := s.Read(id, 0, buf, wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	attrs, err := s.Getattr(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), attrs.Size)
}

func TestMkdirReportsTwoHardlinksAndBlockSize(t *testing.T) {
	s := newStore(t)
	_, attrs, err := s.Mkdir(metadata.RootInode, "a", 0, 0, 0o755)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), attrs.Hardlinks)
	assert.Equal(t, uint64(4096), attrs.Size)
}

func TestAccessChecksEnforceModeBits(t *testing.T) {
	s := newStore(t)
	dirID, _, err := s.Mkdir(metadata.RootInode, "locked", 1, 1, 0o700)
	require.NoError(t, err)

	_, _, err = s.Lookup(dirID, "missing", wire.UserContext{Uid: 2, Gid: 2})
	assert.ErrorIs(t, err, fserrors.ErrAccessDenied)

	_, _, err = s.Create(dirID, "f", 2, 2, 0o644, wire.KindRegular)
	assert.ErrorIs(t, err, fserrors.ErrAccessDenied)

	id, _, err := s.Create(dirID, "f", 1, 1, 0o600, wire.KindRegular)
	require.NoError(t, err)

	_, err = s.Read(id, 0, make([]byte, 4), wire.UserContext{Uid: 2, Gid: 2})
	assert.ErrorIs(t, err, fserrors.ErrAccessDenied)

	_, err = s.Write(id, 0, []byte("x"), wire.UserContext{Uid: 2, Gid: 2})
	assert.ErrorIs(t, err, fserrors.ErrAccessDenied)

	err = s.Truncate(id, 0, wire.UserContext{Uid: 2, Gid: 2})
	assert.ErrorIs(t, err, fserrors.ErrAccessDenied)

	_, err = s.Write(id, 0, []byte("x"), wire.UserContext{Uid: 1, Gid: 1})
	require.NoError(t, err)
}

func TestUtimensAllowsNonOwnerUtimeNowWithWritePermission(t *testing.T) {
	s := newStore(t)
	id, _, err := s.Create(metadata.RootInode, "f", 1, 1, 0o666, wire.KindRegular)
	require.NoError(t, err)

	now := wire.Timestamp{Nsec: wire.UTimeNow}
	require.NoError(t, s.Utimens(id, &now, &now, wire.UserContext{Uid: 2, Gid: 2}))

	notNow := wire.Timestamp{Sec: 123}
	err = s.Utimens(id, &notNow, nil, wire.UserContext{Uid: 2, Gid: 2})
	assert.ErrorIs(t, err, fserrors.ErrAccessDenied)
}

func TestMkdirRmdirRequiresEmpty(t *testing.T) {
	s := newStore(t)
	dirID, _, err := s.Mkdir(metadata.RootInode, "sub", 0, 0, 0o755)
	require.NoError(t, err)

	_, _, err = s.Create(dirID, "file", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)

	err = s.Rmdir(metadata.RootInode, "sub", wire.UserContext{})
	assert.ErrorIs(t, err, fserrors.ErrNotEmpty)

	require.NoError(t, s.Unlink(dirID, "file", wire.UserContext{}))
	require.NoError(t, s.Rmdir(metadata.RootInode, "sub", wire.UserContext{}))

	_, _, err = s.Lookup(metadata.RootInode, "sub", wire.UserContext{})
	assert.ErrorIs(t, err, fserrors.ErrDoesNotExist)
}

func TestHardlinkSharesContent(t *testing.T) {
	s := newStore(t)
	id, _, err := s.Create(metadata.RootInode, "a", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)
	_, err = s.Write(id, 0, []byte("shared"), wire.UserContext{})
	require.NoError(t, err)

	attrs, err := s.Hardlink(id, metadata.RootInode, "b", wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), attrs.Hardlinks)

	bID, _, err := s.Lookup(metadata.RootInode, "b", wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, id, bID)

	require.NoError(t, s.Unlink(metadata.RootInode, "a", wire.UserContext{}))
	buf := make([]byte, 16)
	got, err := s.Read(bID, 0, buf, wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, "shared", string(got))
}

func TestRenameReplacesDestination(t *testing.T) {
	s := newStore(t)
	srcID, _, err := s.Create(metadata.RootInode, "src", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)
	_, _, err = s.Create(metadata.RootInode, "dst", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)

	require.NoError(t, s.Rename(metadata.RootInode, "src", metadata.RootInode, "dst", wire.UserContext{}))

	gotID, _, err := s.Lookup(metadata.RootInode, "dst", wire.UserContext{})
	require.NoError(t, err)
	assert.Equal(t, srcID, gotID)

	_, _, err = s.Lookup(metadata.RootInode, "src", wire.UserContext{})
	assert.ErrorIs(t, err, fserrors.ErrDoesNotExist)
}

func TestXattrRoundTrip(t *testing.T) {
	s := newStore(t)
	id, _, err := s.Create(metadata.RootInode, "f", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)

	_, err = s.GetXattr(id, "user.tag")
	assert.ErrorIs(t, err, fserrors.ErrMissingXattrKey)

	require.NoError(t, s.SetXattr(id, "user.tag", []byte("v1")))
	v, err := s.GetXattr(id, "user.tag")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	keys, err := s.ListXattrs(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"user.tag"}, keys)

	require.NoError(t, s.RemoveXattr(id, "user.tag"))
	_, err = s.GetXattr(id, "user.tag")
	assert.ErrorIs(t, err, fserrors.ErrMissingXattrKey)
}

func TestUtimensNowSentinel(t *testing.T) {
	s := newStore(t)
	id, _, err := s.Create(metadata.RootInode, "f", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)

	now := wire.Timestamp{Nsec: wire.UTimeNow}
	require.NoError(t, s.Utimens(id, &now, nil, wire.UserContext{}))

	attrs, err := s.Getattr(id)
	require.NoError(t, err)
	assert.NotEqual(t, int32(wire.UTimeNow), attrs.Atime.Nsec)
}

func TestChecksumStableAcrossEquivalentStores(t *testing.T) {
	build := func(t *testing.T) *metadata.Store {
		s := newStore(t)
		_, _, err := s.Create(metadata.RootInode, "f", 7, 7, 0o644, wire.KindRegular)
		require.NoError(t, err)
		return s
	}

	a := build(t)
	b := build(t)
	assert.Equal(t, a.Checksum(), b.Checksum())

	check := a.Check()
	assert.True(t, check.Healthy)
}

func TestWithMutexLoggingDoesNotFlagOrdinaryOperations(t *testing.T) {
	data, err := localdisk.New(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := metadata.New(data, clock.NewSimulatedClock(time.Unix(1000, 0)), 0, 0, 0o755, metadata.WithMutexLogging(logger))

	_, _, err = s.Create(metadata.RootInode, "f", 0, 0, 0o644, wire.KindRegular)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "held longer than expected")
}
