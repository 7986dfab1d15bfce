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

// Package exportfs serves the RemoteFS RPC surface from a directory of
// the local filesystem. The handler is stateless: every request carries
// the full path of the object it addresses, so concurrency is limited
// only by the transport's scheduling.
package exportfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/grpcfs/grpcfs/internal/logger"
	"github.com/grpcfs/grpcfs/internal/rpcfs"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements rpcfs.RemoteFSServer over the tree rooted at an
// export directory.
type Server struct {
	root string
}

// New creates a handler exporting the tree rooted at root, which must be
// an existing directory.
func New(root string) (*Server, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("export root is not a directory")
	}

	return &Server{root: abs}, nil
}

// resolve maps a wire path onto the export root. Cleaning the path as an
// absolute one first strips any ".." prefix, so requests cannot escape
// the root.
func (s *Server) resolve(wirePath string) string {
	return filepath.Join(s.root, path.Clean("/"+wirePath))
}

func kindOf(mode uint32) rpcfs.FileType {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return rpcfs.FileTypeDirectory
	case unix.S_IFLNK:
		return rpcfs.FileTypeSymlink
	default:
		return rpcfs.FileTypeRegular
	}
}

func statToAttributes(st *unix.Stat_t) *rpcfs.Attributes {
	return &rpcfs.Attributes{
		Inode:      st.Ino,
		Kind:       kindOf(uint32(st.Mode)),
		Size:       uint64(st.Size),
		Blocks:     uint64(st.Blocks),
		Blksize:    uint32(st.Blksize),
		Permission: uint32(st.Mode) &^ uint32(unix.S_IFMT),
		Nlink:      uint32(st.Nlink),
		Uid:        st.Uid,
		Gid:        st.Gid,
		Rdev:       uint32(st.Rdev),
	}
}

func (s *Server) statPath(wirePath string) (*rpcfs.Attributes, error) {
	var st unix.Stat_t
	if err := unix.Lstat(s.resolve(wirePath), &st); err != nil {
		return nil, status.Errorf(codes.NotFound, "stat %q: %v", wirePath, err)
	}

	return statToAttributes(&st), nil
}

func (s *Server) GetAttr(ctx context.Context, req *rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
	attrs, err := s.statPath(req.Path)
	if err != nil {
		return nil, err
	}

	return &rpcfs.GetAttrReply{Attributes: attrs}, nil
}

func (s *Server) Lookup(ctx context.Context, req *rpcfs.LookupRequest) (*rpcfs.LookupReply, error) {
	attrs, err := s.statPath(req.Path)
	if err != nil {
		return nil, err
	}

	return &rpcfs.LookupReply{Attributes: attrs}, nil
}

// listDir reads a directory in its native stream order (no sorting) and
// drops the first offset entries. Callers number the remainder starting
// at offset+1.
func (s *Server) listDir(wirePath string, offset int64) ([]fs.DirEntry, error) {
	d, err := os.Open(s.resolve(wirePath))
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "open %q: %v", wirePath, err)
	}
	defer d.Close()

	entries, err := d.ReadDir(-1)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "read %q: %v", wirePath, err)
	}

	if offset < 0 || offset > int64(len(entries)) {
		return nil, nil
	}
	return entries[offset:], nil
}

func (s *Server) ReadDir(ctx context.Context, req *rpcfs.ReadDirRequest) (*rpcfs.ReadDirReply, error) {
	entries, err := s.listDir(req.Path, req.Offset)
	if err != nil {
		return nil, err
	}

	reply := &rpcfs.ReadDirReply{}
	for i, de := range entries {
		var st unix.Stat_t
		if err := unix.Lstat(filepath.Join(s.resolve(req.Path), de.Name()), &st); err != nil {
			return nil, status.Errorf(codes.Internal, "stat %q: %v", de.Name(), err)
		}

		reply.Entries = append(reply.Entries, &rpcfs.DirEntry{
			Inode:    st.Ino,
			Offset:   req.Offset + int64(i) + 1,
			FileName: de.Name(),
			Kind:     kindOf(uint32(st.Mode)),
		})
	}

	return reply, nil
}

func (s *Server) ReadDirPlus(ctx context.Context, req *rpcfs.ReadDirPlusRequest) (*rpcfs.ReadDirPlusReply, error) {
	entries, err := s.listDir(req.Path, req.Offset)
	if err != nil {
		return nil, err
	}

	reply := &rpcfs.ReadDirPlusReply{}
	for i, de := range entries {
		entry := &rpcfs.DirEntryPlus{
			Offset:   req.Offset + int64(i) + 1,
			FileName: de.Name(),
		}

		// A stat failure on one entry (e.g. it was unlinked mid-listing)
		// degrades that entry rather than failing the whole reply; the
		// client decides what to do with an attribute-less entry.
		var st unix.Stat_t
		if err := unix.Lstat(filepath.Join(s.resolve(req.Path), de.Name()), &st); err != nil {
			logger.Warnf("readdirplus: stat %q in %q: %v", de.Name(), req.Path, err)
		} else {
			entry.Inode = st.Ino
			entry.Kind = kindOf(uint32(st.Mode))
			entry.Attributes = statToAttributes(&st)
		}

		reply.Entries = append(reply.Entries, entry)
	}

	return reply, nil
}

func (s *Server) Open(ctx context.Context, req *rpcfs.OpenRequest) (*rpcfs.OpenReply, error) {
	fi, err := os.Stat(s.resolve(req.Path))
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "open %q: %v", req.Path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, status.Errorf(codes.NotFound, "open %q: not a regular file", req.Path)
	}

	// No descriptor is retained; Read re-opens per call. The handle
	// exists only to satisfy the kernel-side open.
	return &rpcfs.OpenReply{Fd: 0}, nil
}

func (s *Server) Read(ctx context.Context, req *rpcfs.ReadRequest) (*rpcfs.ReadReply, error) {
	f, err := os.Open(s.resolve(req.Path))
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "open %q: %v", req.Path, err)
	}
	defer f.Close()

	buf := make([]byte, req.Size)
	n, err := f.ReadAt(buf, int64(req.Offset))
	if err != nil && err != io.EOF {
		return nil, status.Errorf(codes.NotFound, "read %q: %v", req.Path, err)
	}

	return &rpcfs.ReadReply{Data: buf[:n]}, nil
}

func (s *Server) ReadLink(ctx context.Context, req *rpcfs.ReadLinkRequest) (*rpcfs.ReadLinkReply, error) {
	target, err := os.Readlink(s.resolve(req.Path))
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "readlink %q: %v", req.Path, err)
	}

	return &rpcfs.ReadLinkReply{Target: target}, nil
}
