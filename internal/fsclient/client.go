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

// Package fsclient is the kernel adapter's sole way of talking to a
// fleetfs node: one call per filesystem op, blocking send-then-receive
// over a single pooled TCP connection (§4.4). Each call is
// single-threaded-correct by construction; concurrency comes from each
// caller getting its own per-goroutine Client off the pool, not from
// shared mutable state inside one Client.
package fsclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fleetfs/fleetfs/internal/wire"
)

// Client owns one TCP connection to a fleetfs node and a reusable inbound
// response buffer, so reading a response frame does not allocate once the
// buffer has grown to fit. There is no reusable outbound buffer: every
// request payload is encoded into a freshly allocated slice.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	respBuf []byte
}

// Dial opens one connection to addr. Callers that want concurrency should
// Dial multiple Clients (e.g. from a Pool) rather than share one across
// goroutines: a Client serializes its own calls.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fsclient: dialing %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call encodes req as t, sends it length-prefixed, and reads back a
// length-prefixed response frame, decoding it with decodeFrame. It holds
// c's lock for the whole round trip: a Client is not meant to serve two
// concurrent callers (§4.4's per-thread model), and taking the lock turns
// a programming mistake into a stall instead of interleaved frames.
func (c *Client) call(ctx context.Context, t wire.RequestType, body any, decodeFrame func([]byte) (any, error)) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	payload := wire.EncodeRequest(t, body)
	if err := wire.WriteFrame(c.conn, payload); err != nil {
		return nil, fmt.Errorf("fsclient: writing request: %w", err)
	}

	frame, err := wire.ReadFrameInto(c.conn, &c.respBuf)
	if err != nil {
		return nil, fmt.Errorf("fsclient: reading response: %w", err)
	}
	return decodeFrame(frame)
}

func (c *Client) callTyped(ctx context.Context, t wire.RequestType, body any) (any, error) {
	return c.call(ctx, t, body, func(frame []byte) (any, error) {
		return wire.DecodeResponse(t, frame)
	})
}

// Lookup resolves name within parent.
func (c *Client) Lookup(ctx context.Context, parent uint64, name string, uc wire.UserContext) (uint64, wire.Attributes, error) {
	resp, err := c.callTyped(ctx, wire.TypeLookup, wire.LookupRequest{Parent: parent, Name: name, Ctx: uc})
	if err != nil {
		return 0, wire.Attributes{}, err
	}
	r := resp.(wire.InodeResponse)
	return r.Inode, r.Attrs, nil
}

// Getattr fetches inode's attributes.
func (c *Client) Getattr(ctx context.Context, inode uint64) (wire.Attributes, error) {
	resp, err := c.callTyped(ctx, wire.TypeGetattr, wire.GetattrRequest{Inode: inode})
	if err != nil {
		return wire.Attributes{}, err
	}
	return resp.(wire.FileMetadataResponse).Attrs, nil
}

// Mkdir creates a directory.
func (c *Client) Mkdir(ctx context.Context, parent uint64, name string, uid, gid, mode uint32) (uint64, wire.Attributes, error) {
	resp, err := c.callTyped(ctx, wire.TypeMkdir, wire.MkdirRequest{Parent: parent, Name: name, Uid: uid, Gid: gid, Mode: mode})
	if err != nil {
		return 0, wire.Attributes{}, err
	}
	r := resp.(wire.InodeResponse)
	return r.Inode, r.Attrs, nil
}

// Create creates a file, directory, or symlink entry (§4.1: a symlink's
// target is written as the new inode's content via a subsequent Write).
func (c *Client) Create(ctx context.Context, parent uint64, name string, uid, gid, mode uint32, kind wire.FileKind) (uint64, wire.Attributes, error) {
	resp, err := c.callTyped(ctx, wire.TypeCreate, wire.CreateRequest{Parent: parent, Name: name, Uid: uid, Gid: gid, Mode: mode, Kind: kind})
	if err != nil {
		return 0, wire.Attributes{}, err
	}
	r := resp.(wire.InodeResponse)
	return r.Inode, r.Attrs, nil
}

// Unlink removes a non-directory directory entry.
func (c *Client) Unlink(ctx context.Context, parent uint64, name string, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeUnlink, wire.UnlinkRequest{Parent: parent, Name: name, Ctx: uc})
	return err
}

// Rmdir removes an empty directory entry.
func (c *Client) Rmdir(ctx context.Context, parent uint64, name string, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeRmdir, wire.RmdirRequest{Parent: parent, Name: name, Ctx: uc})
	return err
}

// Rename moves a directory entry, possibly replacing an existing one.
func (c *Client) Rename(ctx context.Context, parent uint64, name string, newParent uint64, newName string, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeRename, wire.RenameRequest{Parent: parent, Name: name, NewParent: newParent, NewName: newName, Ctx: uc})
	return err
}

// Hardlink links inode into newParent under newName.
func (c *Client) Hardlink(ctx context.Context, inode, newParent uint64, newName string, uc wire.UserContext) (wire.Attributes, error) {
	resp, err := c.callTyped(ctx, wire.TypeHardlink, wire.HardlinkRequest{Inode: inode, NewParent: newParent, NewName: newName, Ctx: uc})
	if err != nil {
		return wire.Attributes{}, err
	}
	return resp.(wire.InodeResponse).Attrs, nil
}

// Read fetches up to length bytes of inode's content at offset, using the
// fast read framing (§6).
func (c *Client) Read(ctx context.Context, inode, offset uint64, length uint32, uc wire.UserContext) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	payload := wire.EncodeRequest(wire.TypeRead, wire.ReadRequest{Inode: inode, Offset: offset, Length: length, Ctx: uc})
	if err := wire.WriteFrame(c.conn, payload); err != nil {
		return nil, fmt.Errorf("fsclient: writing read request: %w", err)
	}
	frame, err := wire.ReadFrameInto(c.conn, &c.respBuf)
	if err != nil {
		return nil, fmt.Errorf("fsclient: reading read response: %w", err)
	}
	return wire.DecodeReadResponseFast(frame)
}

// Write stores data at offset in inode's content.
func (c *Client) Write(ctx context.Context, inode, offset uint64, data []byte, uc wire.UserContext) (uint32, error) {
	resp, err := c.callTyped(ctx, wire.TypeWrite, wire.WriteRequest{Inode: inode, Offset: offset, Data: data, Ctx: uc})
	if err != nil {
		return 0, err
	}
	return resp.(wire.WrittenResponse).BytesWritten, nil
}

// Truncate resizes inode's content.
func (c *Client) Truncate(ctx context.Context, inode, newLength uint64, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeTruncate, wire.TruncateRequest{Inode: inode, NewLength: newLength, Ctx: uc})
	return err
}

// Chmod sets inode's mode bits.
func (c *Client) Chmod(ctx context.Context, inode uint64, mode uint32, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeChmod, wire.ChmodRequest{Inode: inode, Mode: mode, Ctx: uc})
	return err
}

// Chown sets inode's uid/gid; a nil pointer leaves that field unchanged.
func (c *Client) Chown(ctx context.Context, inode uint64, uid, gid *uint32, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeChown, wire.ChownRequest{Inode: inode, Uid: uid, Gid: gid, Ctx: uc})
	return err
}

// Utimens sets inode's atime/mtime.
func (c *Client) Utimens(ctx context.Context, inode uint64, atime, mtime *wire.Timestamp, uc wire.UserContext) error {
	_, err := c.callTyped(ctx, wire.TypeUtimens, wire.UtimensRequest{Inode: inode, Atime: atime, Mtime: mtime, Ctx: uc})
	return err
}

// Readdir lists inode's directory entries.
func (c *Client) Readdir(ctx context.Context, inode uint64) ([]wire.DirEntry, error) {
	resp, err := c.callTyped(ctx, wire.TypeReaddir, wire.ReaddirRequest{Inode: inode})
	if err != nil {
		return nil, err
	}
	return resp.(wire.DirectoryListingResponse).Entries, nil
}

// GetXattr fetches one extended attribute.
func (c *Client) GetXattr(ctx context.Context, inode uint64, key string) ([]byte, error) {
	resp, err := c.callTyped(ctx, wire.TypeGetXattr, wire.GetXattrRequest{Inode: inode, Key: key})
	if err != nil {
		return nil, err
	}
	return resp.(wire.XattrValueResponse).Value, nil
}

// SetXattr sets one extended attribute.
func (c *Client) SetXattr(ctx context.Context, inode uint64, key string, value []byte) error {
	_, err := c.callTyped(ctx, wire.TypeSetXattr, wire.SetXattrRequest{Inode: inode, Key: key, Value: value})
	return err
}

// ListXattrs lists extended attribute keys.
func (c *Client) ListXattrs(ctx context.Context, inode uint64) ([]string, error) {
	resp, err := c.callTyped(ctx, wire.TypeListXattrs, wire.ListXattrsRequest{Inode: inode})
	if err != nil {
		return nil, err
	}
	return resp.(wire.XattrListResponse).Keys, nil
}

// RemoveXattr removes one extended attribute.
func (c *Client) RemoveXattr(ctx context.Context, inode uint64, key string) error {
	_, err := c.callTyped(ctx, wire.TypeRemoveXattr, wire.RemoveXattrRequest{Inode: inode, Key: key})
	return err
}

// Fsync flushes inode's content.
func (c *Client) Fsync(ctx context.Context, inode uint64) error {
	_, err := c.callTyped(ctx, wire.TypeFsync, wire.FsyncRequest{Inode: inode})
	return err
}

// GetLeader asks for the current leader's node id.
func (c *Client) GetLeader(ctx context.Context) (string, error) {
	resp, err := c.callTyped(ctx, wire.TypeGetLeader, wire.GetLeaderRequest{})
	if err != nil {
		return "", err
	}
	return resp.(wire.NodeIdResponse).NodeId, nil
}
