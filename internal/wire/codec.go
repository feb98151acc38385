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

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/fleetfs/fleetfs/internal/fserrors"
)

// writer accumulates a request/response payload. It is not safe for
// concurrent use; callers own one per encode.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *writer) i64(v int64)  { w.u64(uint64(v)) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }

func (w *writer) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) str(s string) { w.bytes([]byte(s)) }

func (w *writer) ctx(c UserContext) {
	w.u32(c.Uid)
	w.u32(c.Gid)
}

func (w *writer) ts(t Timestamp) {
	w.i64(t.Sec)
	w.i32(t.Nsec)
}

func (w *writer) attrs(a Attributes) {
	w.u64(a.Inode)
	w.u64(a.Size)
	w.u8(uint8(a.Kind))
	w.u32(a.Mode)
	w.u32(a.Uid)
	w.u32(a.Gid)
	w.u32(a.Rdev)
	w.u32(a.Hardlinks)
	w.ts(a.Atime)
	w.ts(a.Mtime)
	w.ts(a.Ctime)
}

func (w *writer) optU32(v *uint32) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.u32(*v)
}

func (w *writer) optTs(v *Timestamp) {
	if v == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.ts(*v)
}

// reader walks a decode buffer; byte slices it returns alias the backing
// array (§4.2 zero-copy decode), while strings are copied out of it.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated u8", fserrors.ErrBadRequest)
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated u32", fserrors.ErrBadRequest)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated u64", fserrors.ErrBadRequest)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated byte field", fserrors.ErrBadRequest)
	}
	v := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return v, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) ctx() (UserContext, error) {
	uid, err := r.u32()
	if err != nil {
		return UserContext{}, err
	}
	gid, err := r.u32()
	if err != nil {
		return UserContext{}, err
	}
	return UserContext{Uid: uid, Gid: gid}, nil
}

func (r *reader) ts() (Timestamp, error) {
	sec, err := r.i64()
	if err != nil {
		return Timestamp{}, err
	}
	nsec, err := r.i32()
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Sec: sec, Nsec: nsec}, nil
}

func (r *reader) attrs() (Attributes, error) {
	var a Attributes
	var err error
	if a.Inode, err = r.u64(); err != nil {
		return a, err
	}
	if a.Size, err = r.u64(); err != nil {
		return a, err
	}
	k, err := r.u8()
	if err != nil {
		return a, err
	}
	a.Kind = FileKind(k)
	if a.Mode, err = r.u32(); err != nil {
		return a, err
	}
	if a.Uid, err = r.u32(); err != nil {
		return a, err
	}
	if a.Gid, err = r.u32(); err != nil {
		return a, err
	}
	if a.Rdev, err = r.u32(); err != nil {
		return a, err
	}
	if a.Hardlinks, err = r.u32(); err != nil {
		return a, err
	}
	if a.Atime, err = r.ts(); err != nil {
		return a, err
	}
	if a.Mtime, err = r.ts(); err != nil {
		return a, err
	}
	if a.Ctime, err = r.ts(); err != nil {
		return a, err
	}
	return a, nil
}

func (r *reader) optU32() (*uint32, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := r.u32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *reader) optTs() (*Timestamp, error) {
	present, err := r.u8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := r.ts()
	if err != nil {
		return nil, err
	}
	return &v, nil
}
