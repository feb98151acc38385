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

// Package server accepts the TCP connections internal/fsclient dials and
// feeds each frame to an internal/dispatch.Dispatcher, one goroutine per
// connection and one in-flight request per connection at a time (§4.4's
// client model: a connection serializes its own calls, so the server does
// too).
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/fleetfs/fleetfs/internal/wire"
)

// Dispatcher is the subset of internal/dispatch.Dispatcher the server
// needs, small enough that tests can supply a fake.
type Dispatcher interface {
	Handle(ctx context.Context, frame []byte) []byte
}

// Server listens on one address and serves every accepted connection with
// a Dispatcher.
type Server struct {
	ln       net.Listener
	dispatch Dispatcher
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New wraps an already-bound listener. logger may be nil, in which case
// slog.Default is used.
func New(ln net.Listener, dispatch Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ln: ln, dispatch: dispatch, logger: logger}
}

// Addr reports the address the server is listening on.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until the listener is closed, blocking the
// caller. It always returns a non-nil error; net.ErrClosed indicates a
// clean shutdown via Close.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.wg.Wait()
			return err
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections. Connections already accepted keep
// being served until their peer disconnects or a frame fails, and Serve
// returns only after all of them have ended.
func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	ctx := context.Background()
	var buf []byte
	for {
		frame, err := wire.ReadFrameInto(conn, &buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("connection closed", "remote", conn.RemoteAddr(), "err", err)
			}
			return
		}

		resp := s.dispatch.Handle(ctx, frame)
		if err := wire.WriteFrame(conn, resp); err != nil {
			s.logger.Debug("write failed", "remote", conn.RemoteAddr(), "err", err)
			return
		}
	}
}
