// Copyright 2024 The grpcfs Authors. All Rights Reserved.
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

// Package inode maintains the client's bidirectional binding between the
// inode numbers the kernel sees and the path strings the server speaks.
package inode

import (
	"github.com/grpcfs/grpcfs/internal/logger"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/syncutil"
)

// RootPath is the path bound to the root inode for the life of the mount.
const RootPath = "/"

type binding struct {
	path string

	// The inode of the directory this binding was discovered under. Used
	// to resolve ".." without ever touching the root binding.
	parent fuseops.InodeID
}

// Cache maps kernel-visible inode numbers to server-side paths.
//
// Inode numbers are the server's on-disk inodes, reused verbatim, with
// one exception: fuseops.RootInodeID is reserved for the mount root and
// bound to RootPath at construction. That binding is never overwritten.
//
// Insertions are additive. Nothing is evicted while the mount is live;
// the map grows with the working set of looked-up paths, which is
// acceptable for the intended workload of interactive browsing.
//
// Safe for concurrent use. Reads dominate (every operation begins with a
// lookup), so a shared mutex is taken in read mode on the lookup path.
type Cache struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	//
	// INVARIANT: bindings[fuseops.RootInodeID].path == RootPath
	// INVARIANT: bindings[fuseops.RootInodeID].parent == fuseops.RootInodeID
	bindings map[fuseops.InodeID]binding
}

// NewCache creates a cache holding only the reserved root binding. The
// root is its own parent, so ".." at the top of the mount resolves to
// the root itself.
func NewCache() *Cache {
	c := &Cache{
		bindings: map[fuseops.InodeID]binding{
			fuseops.RootInodeID: {path: RootPath, parent: fuseops.RootInodeID},
		},
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)

	return c
}

func (c *Cache) checkInvariants() {
	root, ok := c.bindings[fuseops.RootInodeID]
	if !ok || root.path != RootPath || root.parent != fuseops.RootInodeID {
		panic("root binding damaged")
	}
}

// Bind records inode → (path, parent). Rebinding a non-root inode is
// permitted and overwrites; paths may legitimately be rediscovered under
// different parents. Attempts to rebind the root are logged and ignored.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Cache) Bind(inode fuseops.InodeID, path string, parent fuseops.InodeID) {
	if inode == fuseops.RootInodeID {
		logger.Warnf("inode %d is reserved for the mount root: path %q", inode, path)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.bindings[inode] = binding{path: path, parent: parent}
}

// Lookup returns the path currently bound to inode.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Cache) Lookup(inode fuseops.InodeID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.bindings[inode]
	return b.path, ok
}

// Parent returns the inode of the directory under which inode was bound.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Cache) Parent(inode fuseops.InodeID) (fuseops.InodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, ok := c.bindings[inode]
	return b.parent, ok
}

// Len returns the number of live bindings, including the root.
//
// LOCKS_EXCLUDED(c.mu)
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.bindings)
}
