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

package kerneladapter

import (
	"errors"
	"syscall"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// toErrno translates a fserrors sentinel returned by internal/fsclient into
// the syscall.Errno the kernel expects a FileSystem method to return.
// Anything not recognized below collapses to EIO (§7's "uncategorized").
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	switch fserrors.KindOf(err) {
	case fserrors.KindDoesNotExist, fserrors.KindInodeDoesNotExist:
		return syscall.ENOENT
	case fserrors.KindAlreadyExists:
		return syscall.EEXIST
	case fserrors.KindNotEmpty:
		return syscall.ENOTEMPTY
	case fserrors.KindAccessDenied:
		return syscall.EACCES
	case fserrors.KindOperationNotPermitted:
		return syscall.EPERM
	case fserrors.KindNameTooLong:
		return syscall.ENAMETOOLONG
	case fserrors.KindFileTooLarge:
		return syscall.EFBIG
	case fserrors.KindMissingXattrKey:
		return syscall.ENODATA
	case fserrors.KindBadRequest, fserrors.KindBadResponse, fserrors.KindCorrupted:
		return syscall.EIO
	case fserrors.KindRaftFailure:
		return syscall.EIO
	default:
		var asErrno syscall.Errno
		if errors.As(err, &asErrno) {
			return asErrno
		}
		return syscall.EIO
	}
}
