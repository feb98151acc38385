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

// Package posix bridges fleetfs's wire-level fserrors.Kind and
// wire.FileKind to actual POSIX constants (§4.6): errno values and mode
// bits. internal/kerneladapter does not import it; it translates errors
// with its own table in errno.go.
package posix

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// Errno maps a fserrors.Kind to the errno a kernel adapter should return
// for it (§7).
func Errno(k fserrors.Kind) syscall.Errno {
	switch k {
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
		return unix.ENODATA
	case fserrors.KindBadRequest, fserrors.KindBadResponse:
		return syscall.EINVAL
	default: // Corrupted, RaftFailure, Uncategorized.
		return syscall.EIO
	}
}

// Sticky is the sticky bit (S_ISVTX), used by internal/metadata's rename
// and unlink sticky-directory check.
const Sticky = unix.S_ISVTX

// SetUID and SetGID are the setuid/setgid mode bits, preserved verbatim by
// chmod but never interpreted by fleetfs itself (§4.1 Non-goals).
const (
	SetUID = unix.S_ISUID
	SetGID = unix.S_ISGID
)

// TypeMask isolates the file-type bits from a POSIX mode_t; fleetfs
// stores type separately in wire.Attributes.Kind and strips these from
// Mode on the wire.
const TypeMask = unix.S_IFMT
