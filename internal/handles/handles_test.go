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

package handles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetfs/fleetfs/internal/handles"
)

func TestOpenLookupClose(t *testing.T) {
	tbl := handles.New()

	h := tbl.Open(42, handles.Capability{Read: true})
	inode, cap, ok := tbl.Lookup(h)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), inode)
	assert.True(t, cap.Read)
	assert.False(t, cap.Write)
	assert.Equal(t, 1, tbl.Len())

	tbl.Close(h)
	_, _, ok = tbl.Lookup(h)
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Len())
}

func TestHandlesAreDistinct(t *testing.T) {
	tbl := handles.New()
	a := tbl.Open(1, handles.Capability{Read: true})
	b := tbl.Open(2, handles.Capability{Write: true})
	assert.NotEqual(t, a, b)
}
