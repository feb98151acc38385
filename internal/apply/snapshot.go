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

package apply

// Snapshotter adapts Executor's metadata.Store to raftlog.Snapshotter,
// without internal/raftlog needing to import internal/metadata.
type Snapshotter struct {
	e *Executor
}

// NewSnapshotter returns a raftlog.Snapshotter backed by e's store.
func NewSnapshotter(e *Executor) Snapshotter {
	return Snapshotter{e: e}
}

func (s Snapshotter) Snapshot() ([]byte, error) {
	return s.e.store.MarshalSnapshot()
}

func (s Snapshotter) Restore(data []byte) error {
	return s.e.store.UnmarshalSnapshot(data)
}
