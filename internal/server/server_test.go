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

package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetfs/fleetfs/internal/fsclient"
	"github.com/fleetfs/fleetfs/internal/server"
	"github.com/fleetfs/fleetfs/internal/wire"
)

// fakeDispatcher answers every request with a fixed GetLeader response,
// letting tests check the server's framing without standing up a full
// dispatch.Dispatcher.
type fakeDispatcher struct {
	calls int
}

func (f *fakeDispatcher) Handle(ctx context.Context, frame []byte) []byte {
	f.calls++
	return wire.EncodeResponse(wire.TypeGetLeader, wire.NodeIdResponse{NodeId: "leader-1"})
}

func startServer(t *testing.T, d server.Dispatcher) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(ln, d, nil)
	go s.Serve()
	t.Cleanup(func() { s.Close() })

	return s.Addr().String()
}

func TestServerRoundTripsFrames(t *testing.T) {
	addr := startServer(t, &fakeDispatcher{})

	c, err := fsclient.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	nodeID, err := c.GetLeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "leader-1", nodeID)
}

func TestServerHandlesMultipleSequentialRequestsOnOneConnection(t *testing.T) {
	d := &fakeDispatcher{}
	addr := startServer(t, d)

	c, err := fsclient.Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 5; i++ {
		_, err := c.GetLeader(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 5, d.calls)
}

func TestServerClosesConnectionOnClientDisconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := server.New(ln, &fakeDispatcher{}, nil)
	done := make(chan struct{})
	go func() {
		s.Serve()
		close(done)
	}()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, wire.EncodeRequest(wire.TypeGetLeader, wire.GetLeaderRequest{})))
	var buf []byte
	_, err = wire.ReadFrameInto(conn, &buf)
	require.NoError(t, err)

	conn.Close()
	s.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}
