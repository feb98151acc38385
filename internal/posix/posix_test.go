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

package posix_test

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"

	"github.com/fleetfs/fleetfs/internal/fserrors"
	"github.com/fleetfs/fleetfs/internal/posix"
)

func TestErrnoMapsKnownKinds(t *testing.T) {
	cases := []struct {
		kind fserrors.Kind
		want syscall.Errno
	}{
		{fserrors.KindDoesNotExist, syscall.ENOENT},
		{fserrors.KindInodeDoesNotExist, syscall.ENOENT},
		{fserrors.KindAlreadyExists, syscall.EEXIST},
		{fserrors.KindNotEmpty, syscall.ENOTEMPTY},
		{fserrors.KindAccessDenied, syscall.EACCES},
		{fserrors.KindOperationNotPermitted, syscall.EPERM},
		{fserrors.KindNameTooLong, syscall.ENAMETOOLONG},
		{fserrors.KindFileTooLarge, syscall.EFBIG},
		{fserrors.KindMissingXattrKey, unix.ENODATA},
		{fserrors.KindBadRequest, syscall.EINVAL},
		{fserrors.KindBadResponse, syscall.EINVAL},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, posix.Errno(c.kind), "kind %v", c.kind)
	}
}

func TestErrnoDefaultsToEIOForUncategorizedKinds(t *testing.T) {
	assert.Equal(t, syscall.EIO, posix.Errno(fserrors.KindCorrupted))
	assert.Equal(t, syscall.EIO, posix.Errno(fserrors.KindRaftFailure))
	assert.Equal(t, syscall.EIO, posix.Errno(fserrors.KindUncategorized))
}

func TestModeBitConstantsMatchUnix(t *testing.T) {
	assert.Equal(t, uint32(unix.S_ISVTX), uint32(posix.Sticky))
	assert.Equal(t, uint32(unix.S_ISUID), uint32(posix.SetUID))
	assert.Equal(t, uint32(unix.S_ISGID), uint32(posix.SetGID))
	assert.Equal(t, uint32(unix.S_IFMT), uint32(posix.TypeMask))
}
