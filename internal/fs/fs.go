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

// Package fs implements the client side of the mount: a file system whose
// every operation is translated into a RemoteFS RPC. The kernel addresses
// objects by inode number; the server addresses them by path; the inode
// cache in the sub-package bridges the two.
package fs

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/grpcfs/grpcfs/internal/fs/inode"
	"github.com/grpcfs/grpcfs/internal/logger"
	"github.com/grpcfs/grpcfs/internal/rpcfs"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// How long the kernel may cache attributes and entries we hand it. The
// remote tree is assumed stable; one second keeps staleness invisible for
// interactive use without a coherence protocol.
const cacheTTL = time.Second

type ServerConfig struct {
	// A clock used to stamp attribute and entry expirations.
	Clock timeutil.Clock

	// The connected RemoteFS channel this file system serves from.
	Remote rpcfs.RemoteFSClient
}

// NewServer creates a fuse server that serves the remote tree. The remote
// channel must already be connected; there is no reconnect logic behind
// the mount.
func NewServer(cfg *ServerConfig) (fuse.Server, error) {
	fs := &fileSystem{
		clock:  cfg.Clock,
		remote: cfg.Remote,
		inodes: inode.NewCache(),
	}

	return fuseutil.NewFileSystemServer(fs), nil
}

type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	/////////////////////////
	// Dependencies
	/////////////////////////

	clock  timeutil.Clock
	remote rpcfs.RemoteFSClient

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Owns the inode ↔ path bindings. Safe for concurrent use; no other
	// mutable state exists, so ops never hold a lock across an RPC.
	inodes *inode.Cache
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// errno collapses an RPC failure to the errno handed to the kernel:
// server-confirmed absence becomes ENOENT, everything else (transport
// breakage, server internal errors) becomes EIO so the user can tell a
// missing file from a broken connection.
func errno(err error, opName string, path string) error {
	if status.Code(err) == codes.NotFound {
		logger.Debugf("%s %q: %v", opName, path, err)
		return fuse.ENOENT
	}

	logger.Warnf("%s %q: %v", opName, path, err)
	return fuse.EIO
}

// attributes shapes a wire attribute record into the kernel's form. The
// server's mode bits are forwarded; timestamps are not transported, so
// the epoch stands in for all of them.
func attributes(attrs *rpcfs.Attributes) fuseops.InodeAttributes {
	epoch := time.Unix(0, 0)

	mode := os.FileMode(attrs.Permission) & os.ModePerm
	switch attrs.Kind {
	case rpcfs.FileTypeDirectory:
		mode |= os.ModeDir
	case rpcfs.FileTypeSymlink:
		mode |= os.ModeSymlink
	}

	return fuseops.InodeAttributes{
		Size:   attrs.Size,
		Nlink:  attrs.Nlink,
		Mode:   mode,
		Rdev:   attrs.Rdev,
		Atime:  epoch,
		Mtime:  epoch,
		Ctime:  epoch,
		Crtime: epoch,
		Uid:    attrs.Uid,
		Gid:    attrs.Gid,
	}
}

func direntType(kind rpcfs.FileType) fuseutil.DirentType {
	switch kind {
	case rpcfs.FileTypeDirectory:
		return fuseutil.DT_Directory
	case rpcfs.FileTypeSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// childEntry assembles the lookup-style reply for an object whose
// attributes the server just reported.
func (fs *fileSystem) childEntry(attrs *rpcfs.Attributes) fuseops.ChildInodeEntry {
	now := fs.clock.Now()
	return fuseops.ChildInodeEntry{
		Child:                fuseops.InodeID(attrs.Inode),
		Attributes:           attributes(attrs),
		AttributesExpiration: now.Add(cacheTTL),
		EntryExpiration:      now.Add(cacheTTL),
	}
}

////////////////////////////////////////////////////////////////////////
// fuseutil.FileSystem methods
////////////////////////////////////////////////////////////////////////

func (fs *fileSystem) LookUpInode(
	ctx context.Context,
	op *fuseops.LookUpInodeOp) error {
	parentPath, ok := fs.inodes.Lookup(op.Parent)
	if !ok {
		return fuse.ENOENT
	}

	childPath := path.Join(parentPath, op.Name)
	reply, err := fs.remote.GetAttr(ctx, &rpcfs.GetAttrRequest{Path: childPath})
	if err != nil {
		return errno(err, "LookUpInode", childPath)
	}
	if reply.Attributes == nil {
		return fuse.ENOENT
	}

	// Bind before replying: the kernel may address this inode the moment
	// it sees the entry.
	fs.inodes.Bind(fuseops.InodeID(reply.Attributes.Inode), childPath, op.Parent)
	op.Entry = fs.childEntry(reply.Attributes)

	return nil
}

func (fs *fileSystem) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) error {
	p, ok := fs.inodes.Lookup(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	reply, err := fs.remote.GetAttr(ctx, &rpcfs.GetAttrRequest{Path: p})
	if err != nil {
		return errno(err, "GetInodeAttributes", p)
	}
	if reply.Attributes == nil {
		return fuse.ENOENT
	}

	// The reply intentionally carries no inode number; the kernel keeps
	// the identity it asked about.
	op.Attributes = attributes(reply.Attributes)
	op.AttributesExpiration = fs.clock.Now().Add(cacheTTL)

	return nil
}

func (fs *fileSystem) OpenDir(
	ctx context.Context,
	op *fuseops.OpenDirOp) error {
	if _, ok := fs.inodes.Lookup(op.Inode); !ok {
		return fuse.ENOENT
	}

	// Directory state lives on the server; the handle carries nothing.
	return nil
}

// resolveDotEntry maps the special names onto inodes the kernel already
// knows: "." is the listed directory itself and ".." its recorded parent.
// Neither creates a binding, so the root binding is never disturbed no
// matter what inode the server reports for them.
func (fs *fileSystem) resolveDotEntry(dir fuseops.InodeID, name string) (fuseops.InodeID, bool) {
	switch name {
	case ".":
		return dir, true
	case "..":
		parent, ok := fs.inodes.Parent(dir)
		if !ok {
			parent = fuseops.RootInodeID
		}
		return parent, true
	default:
		return 0, false
	}
}

func (fs *fileSystem) ReadDir(
	ctx context.Context,
	op *fuseops.ReadDirOp) error {
	dirPath, ok := fs.inodes.Lookup(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	// The server owns offset semantics: it skips the first op.Offset
	// entries and numbers the rest from there, so its entries are emitted
	// as-is.
	reply, err := fs.remote.ReadDir(ctx, &rpcfs.ReadDirRequest{
		Path:   dirPath,
		Offset: int64(op.Offset),
	})
	if err != nil {
		return errno(err, "ReadDir", dirPath)
	}

	for _, e := range reply.Entries {
		ino := fuseops.InodeID(e.Inode)
		if dotIno, isDot := fs.resolveDotEntry(op.Inode, e.FileName); isDot {
			ino = dotIno
		} else {
			// Bind before the entry reaches the kernel: a getattr on it may
			// arrive as soon as it is consumed.
			fs.inodes.Bind(ino, path.Join(dirPath, e.FileName), op.Inode)
		}

		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(e.Offset),
			Inode:  ino,
			Name:   e.FileName,
			Type:   direntType(e.Kind),
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}

	return nil
}

func (fs *fileSystem) ReadDirPlus(
	ctx context.Context,
	op *fuseops.ReadDirPlusOp) error {
	dirPath, ok := fs.inodes.Lookup(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	reply, err := fs.remote.ReadDirPlus(ctx, &rpcfs.ReadDirPlusRequest{
		Path:   dirPath,
		Offset: int64(op.Offset),
	})
	if err != nil {
		return errno(err, "ReadDirPlus", dirPath)
	}

	for _, e := range reply.Entries {
		// An entry can arrive without attributes when its stat failed on
		// the server. The rest of the listing proceeds without it; the
		// kernel will learn of the entry on a later plain readdir if it
		// still exists.
		if e.Attributes == nil {
			logger.Warnf("ReadDirPlus %q: no attributes for %q", dirPath, e.FileName)
			continue
		}

		ino := fuseops.InodeID(e.Inode)
		if dotIno, isDot := fs.resolveDotEntry(op.Inode, e.FileName); isDot {
			ino = dotIno
		} else {
			fs.inodes.Bind(ino, path.Join(dirPath, e.FileName), op.Inode)
		}

		entry := fs.childEntry(e.Attributes)
		entry.Child = ino

		n := fuseutil.WriteDirentPlus(op.Dst[op.BytesRead:], fuseutil.DirentPlus{
			Dirent: fuseutil.Dirent{
				Offset: fuseops.DirOffset(e.Offset),
				Inode:  ino,
				Name:   e.FileName,
				Type:   direntType(e.Kind),
			},
			Entry: entry,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}

	return nil
}

func (fs *fileSystem) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) error {
	p, ok := fs.inodes.Lookup(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	reply, err := fs.remote.Open(ctx, &rpcfs.OpenRequest{Path: p})
	if err != nil {
		return errno(err, "OpenFile", p)
	}

	// The server's handle is opaque and forwarded verbatim. Read ignores
	// it and re-addresses by path, so it exists only to satisfy the
	// kernel's open.
	op.Handle = fuseops.HandleID(reply.Fd)

	return nil
}

func (fs *fileSystem) ReadFile(
	ctx context.Context,
	op *fuseops.ReadFileOp) error {
	p, ok := fs.inodes.Lookup(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	reply, err := fs.remote.Read(ctx, &rpcfs.ReadRequest{
		Path:   p,
		Offset: uint64(op.Offset),
		Size:   uint64(op.Size),
	})
	if err != nil {
		return errno(err, "ReadFile", p)
	}

	// Short reads at EOF arrive as shorter buffers; reads past EOF as
	// empty ones. Both are passed through as-is.
	op.BytesRead = copy(op.Dst, reply.Data)

	return nil
}

func (fs *fileSystem) ReadSymlink(
	ctx context.Context,
	op *fuseops.ReadSymlinkOp) error {
	p, ok := fs.inodes.Lookup(op.Inode)
	if !ok {
		return fuse.ENOENT
	}

	reply, err := fs.remote.ReadLink(ctx, &rpcfs.ReadLinkRequest{Path: p})
	if err != nil {
		return errno(err, "ReadSymlink", p)
	}

	op.Target = reply.Target

	return nil
}

// The ops below exist so that normal read-only traffic doesn't trip the
// ENOSYS defaults: there is nothing to release or flush, and bindings are
// deliberately kept for the life of the mount.

func (fs *fileSystem) ReleaseDirHandle(
	ctx context.Context,
	op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

func (fs *fileSystem) ReleaseFileHandle(
	ctx context.Context,
	op *fuseops.ReleaseFileHandleOp) error {
	return nil
}

func (fs *fileSystem) FlushFile(
	ctx context.Context,
	op *fuseops.FlushFileOp) error {
	return nil
}

func (fs *fileSystem) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) error {
	return nil
}

func (fs *fileSystem) BatchForget(
	ctx context.Context,
	op *fuseops.BatchForgetOp) error {
	return nil
}

func (fs *fileSystem) Destroy() {
}
