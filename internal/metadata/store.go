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

// Package metadata implements the authoritative POSIX namespace applied by
// every replica's apply loop: inodes, directory entries, the parent map
// used for rename and "..", and extended attributes (§4.1). Every mutating
// Store method is a full operation executed in commit order by the apply
// loop; the read-only ones, and Read (which also updates atime), are
// served from the read path. None of them talk to the network or the
// consensus log themselves.
package metadata

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jacobsa/syncutil"

	"github.com/fleetfs/fleetfs/clock"
	"github.com/fleetfs/fleetfs/internal/datastore"
	"github.com/fleetfs/fleetfs/internal/wire"
)

// RootInode is the inode number of the filesystem root, always present.
const RootInode uint64 = 1

// LOCK ORDERING
//
// Store has a single mutex, mu, guarding three logical regions in the
// struct below: directories, directoryParents and the inodes/xattrs
// metadata table. Methods that touch more than one region always do so in
// that order -- directories, then directoryParents, then metadata -- to
// match the ordering the apply loop and the read path agree on when they
// reason about the store informally; since all three live behind the same
// mutex here this is a documentation convention rather than a deadlock
// hazard, but it keeps the field layout below and the step-by-step
// operation bodies in ops_*.go easy to audit against that order.
type Store struct {
	mu syncutil.InvariantMutex

	clock clock.Clock
	data  datastore.Store

	// GUARDED_BY(mu)
	nextInode uint64

	// directories maps a directory inode to its entries, name -> child
	// inode. Regular files and symlinks never appear as keys here.
	//
	// GUARDED_BY(mu)
	directories map[uint64]map[string]uint64

	// directoryParents maps a directory inode to the inode of its parent.
	// The root maps to itself. Only directories have a single parent;
	// regular files may be hardlinked and so track their back-references
	// on the inode entry itself (see inodeEntry.links).
	//
	// GUARDED_BY(mu)
	directoryParents map[uint64]uint64

	// inodes is the metadata table proper: every live inode's attributes
	// plus kind-specific state (symlink target, hardlink back-references).
	//
	// INVARIANT: for all keys k, inodes[k].attrs.Inode == k
	// INVARIANT: inodes[RootInode] exists and is a directory
	//
	// GUARDED_BY(mu)
	inodes map[uint64]*inodeEntry

	// xattrs maps an inode to its extended attribute set. Inodes with no
	// xattrs set are simply absent from this map.
	//
	// GUARDED_BY(mu)
	xattrs map[uint64]map[string][]byte

	logger      *slog.Logger
	exitOnCheck bool
	logMutex    bool
	lockedAt    time.Time
}

// mutexSlowThreshold is how long a single Store operation may hold mu
// before WithMutexLogging reports it. Chosen well above the cost of any
// individual map lookup/insert below, so only a genuinely stuck or
// pathological operation trips it.
const mutexSlowThreshold = 10 * time.Millisecond

// lock and unlock wrap mu.Lock/mu.Unlock so every call site goes through
// one place, whether or not mutex-hold logging is enabled.
func (s *Store) lock() {
	s.mu.Lock()
	if s.logMutex {
		s.lockedAt = s.clock.Now()
	}
}

func (s *Store) unlock() {
	if s.logMutex {
		if held := s.clock.Now().Sub(s.lockedAt); held > mutexSlowThreshold {
			s.logger.Warn("metadata: store mutex held longer than expected", "held", held)
		}
	}
	s.mu.Unlock()
}

// Option configures optional Store behavior beyond the defaults New sets
// up on its own.
type Option func(*Store)

// WithInvariantLogging controls what checkInvariants does when it finds a
// violated invariant: by default it always panics (crashing the process,
// since continuing on corrupted state risks persisting the corruption
// through raft). When exitOnViolation is false, a violation is instead
// logged at Error level through logger and left unpanicked, a soft
// diagnostic mode useful for debugging a live replica without taking it
// down. Mirrors cfg.DebugConfig's "exit-on-invariant-violation" flag.
func WithInvariantLogging(logger *slog.Logger, exitOnViolation bool) Option {
	return func(s *Store) {
		s.logger = logger
		s.exitOnCheck = exitOnViolation
	}
}

// WithMutexLogging makes every Store operation log a warning through
// logger if it holds mu longer than mutexSlowThreshold. Mirrors
// cfg.DebugConfig's "log-mutex" flag.
func WithMutexLogging(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
		s.logMutex = true
	}
}

type inodeEntry struct {
	attrs wire.Attributes

	// symlinkTarget is not set by any operation (a symlink's target is its
	// content in the datastore); it is only carried through snapshots.
	symlinkTarget string

	// links holds, for a regular file, every (parent inode, name) pair
	// currently pointing at it; attrs.Hardlinks == len(links) always.
	// Directories always have exactly one entry here, mirrored by
	// directoryParents for convenience.
	links map[linkRef]struct{}
}

type linkRef struct {
	parent uint64
	name   string
}

// New returns a Store with only the root directory present, owned by
// uid/gid with the given mode bits (the dir-creation bits a mount would
// pass, e.g. 0755).
func New(data datastore.Store, clk clock.Clock, uid, gid, mode uint32, opts ...Option) *Store {
	s := &Store{
		clock:            clk,
		data:             data,
		nextInode:        RootInode + 1,
		directories:      make(map[uint64]map[string]uint64),
		directoryParents: make(map[uint64]uint64),
		inodes:           make(map[uint64]*inodeEntry),
		xattrs:           make(map[uint64]map[string][]byte),
		exitOnCheck:      true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	now := toTimestamp(clk.Now())
	s.inodes[RootInode] = &inodeEntry{
		attrs: wire.Attributes{
			Inode:     RootInode,
			Kind:      wire.KindDirectory,
			Mode:      mode,
			Uid:       uid,
			Gid:       gid,
			Hardlinks: 2,
			Atime:     now,
			Mtime:     now,
			Ctime:     now,
		},
		links: map[linkRef]struct{}{{parent: RootInode, name: ""}: {}},
	}
	s.directories[RootInode] = make(map[string]uint64)
	s.directoryParents[RootInode] = RootInode

	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *Store) checkInvariants() {
	for id, e := range s.inodes {
		if e.attrs.Inode != id {
			s.violation("inode key %d does not match attrs.Inode %d", id, e.attrs.Inode)
		}
	}
	if _, ok := s.inodes[RootInode]; !ok {
		s.violation("root inode missing")
		return
	}
	if s.inodes[RootInode].attrs.Kind != wire.KindDirectory {
		s.violation("root inode is not a directory")
	}
	for dir, children := range s.directories {
		e, ok := s.inodes[dir]
		if !ok || e.attrs.Kind != wire.KindDirectory {
			s.violation("directories entry %d is not a live directory inode", dir)
			continue
		}
		for name, child := range children {
			if _, ok := s.inodes[child]; !ok {
				s.violation("directory %d entry %q points at missing inode %d", dir, name, child)
			}
		}
	}
}

// violation reports a broken invariant. By default (exitOnCheck true) it
// panics, which syncutil.InvariantMutex turns into a permanently damaged
// mutex so no further operation can proceed on corrupted state. With
// exitOnCheck false it only logs, letting a replica keep serving while the
// violation is investigated.
func (s *Store) violation(format string, args ...any) {
	msg := fmt.Sprintf("metadata: "+format, args...)
	if s.exitOnCheck {
		panic(msg)
	}
	s.logger.Error(msg)
}

func toTimestamp(t time.Time) wire.Timestamp {
	return wire.Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}
