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

package fsclient

import (
	"context"
	"sync"
)

// Pool hands out *Client values to worker goroutines, dialing a fresh
// connection on demand and reusing released ones (§4.4's per-thread
// connection model: each borrower gets exclusive use of one Client for
// the duration of its call, never sharing one across goroutines).
type Pool struct {
	addr string
	pool sync.Pool
}

// NewPool returns a Pool that dials addr as needed.
func NewPool(addr string) *Pool {
	p := &Pool{addr: addr}
	p.pool.New = func() any { return nil }
	return p
}

// Get returns a Client connected to the pool's address, reusing an idle
// one if available.
func (p *Pool) Get(ctx context.Context) (*Client, error) {
	if v := p.pool.Get(); v != nil {
		return v.(*Client), nil
	}
	return Dial(ctx, p.addr)
}

// Put returns c to the pool for reuse. Callers should not use c again
// afterward.
func (p *Pool) Put(c *Client) {
	p.pool.Put(c)
}
