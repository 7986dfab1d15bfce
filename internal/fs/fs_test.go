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

package fs

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/grpcfs/grpcfs/internal/fs/inode"
	"github.com/grpcfs/grpcfs/internal/rpcfs"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

////////////////////////////////////////////////////////////////////////
// Fake remote
////////////////////////////////////////////////////////////////////////

// fakeRemote intercepts the RPC channel. Handlers left nil fail the test
// if called; the call counter proves which operations never reach the
// wire.
type fakeRemote struct {
	t *testing.T

	getAttr     func(*rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error)
	readDir     func(*rpcfs.ReadDirRequest) (*rpcfs.ReadDirReply, error)
	readDirPlus func(*rpcfs.ReadDirPlusRequest) (*rpcfs.ReadDirPlusReply, error)
	open        func(*rpcfs.OpenRequest) (*rpcfs.OpenReply, error)
	read        func(*rpcfs.ReadRequest) (*rpcfs.ReadReply, error)
	readLink    func(*rpcfs.ReadLinkRequest) (*rpcfs.ReadLinkReply, error)

	calls int
}

func (f *fakeRemote) GetAttr(ctx context.Context, in *rpcfs.GetAttrRequest, opts ...grpc.CallOption) (*rpcfs.GetAttrReply, error) {
	f.calls++
	if f.getAttr == nil {
		f.t.Fatal("unexpected GetAttr call")
	}
	return f.getAttr(in)
}

func (f *fakeRemote) Lookup(ctx context.Context, in *rpcfs.LookupRequest, opts ...grpc.CallOption) (*rpcfs.LookupReply, error) {
	f.calls++
	f.t.Fatal("unexpected Lookup call")
	return nil, nil
}

func (f *fakeRemote) ReadDir(ctx context.Context, in *rpcfs.ReadDirRequest, opts ...grpc.CallOption) (*rpcfs.ReadDirReply, error) {
	f.calls++
	if f.readDir == nil {
		f.t.Fatal("unexpected ReadDir call")
	}
	return f.readDir(in)
}

func (f *fakeRemote) ReadDirPlus(ctx context.Context, in *rpcfs.ReadDirPlusRequest, opts ...grpc.CallOption) (*rpcfs.ReadDirPlusReply, error) {
	f.calls++
	if f.readDirPlus == nil {
		f.t.Fatal("unexpected ReadDirPlus call")
	}
	return f.readDirPlus(in)
}

func (f *fakeRemote) Open(ctx context.Context, in *rpcfs.OpenRequest, opts ...grpc.CallOption) (*rpcfs.OpenReply, error) {
	f.calls++
	if f.open == nil {
		f.t.Fatal("unexpected Open call")
	}
	return f.open(in)
}

func (f *fakeRemote) Read(ctx context.Context, in *rpcfs.ReadRequest, opts ...grpc.CallOption) (*rpcfs.ReadReply, error) {
	f.calls++
	if f.read == nil {
		f.t.Fatal("unexpected Read call")
	}
	return f.read(in)
}

func (f *fakeRemote) ReadLink(ctx context.Context, in *rpcfs.ReadLinkRequest, opts ...grpc.CallOption) (*rpcfs.ReadLinkReply, error) {
	f.calls++
	if f.readLink == nil {
		f.t.Fatal("unexpected ReadLink call")
	}
	return f.readLink(in)
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestFS(t *testing.T) (*fileSystem, *fakeRemote, *timeutil.SimulatedClock) {
	clock := new(timeutil.SimulatedClock)
	clock.SetTime(testStart)

	remote := &fakeRemote{t: t}
	fs := &fileSystem{
		clock:  clock,
		remote: remote,
		inodes: inode.NewCache(),
	}

	return fs, remote, clock
}

// A decoded fuse_dirent, as written by fuseutil.WriteDirent.
type parsedDirent struct {
	ino  uint64
	off  uint64
	typ  uint32
	name string
}

func parseDirents(t *testing.T, buf []byte) []parsedDirent {
	const headerLen = 24
	const alignment = 8

	var out []parsedDirent
	for len(buf) > 0 {
		require.GreaterOrEqual(t, len(buf), headerLen)
		d := parsedDirent{
			ino: binary.NativeEndian.Uint64(buf[0:8]),
			off: binary.NativeEndian.Uint64(buf[8:16]),
			typ: binary.NativeEndian.Uint32(buf[20:24]),
		}
		nameLen := int(binary.NativeEndian.Uint32(buf[16:20]))

		require.GreaterOrEqual(t, len(buf), headerLen+nameLen)
		d.name = string(buf[headerLen : headerLen+nameLen])

		recordLen := headerLen + nameLen
		if recordLen%alignment != 0 {
			recordLen += alignment - recordLen%alignment
		}
		if recordLen > len(buf) {
			recordLen = len(buf)
		}
		buf = buf[recordLen:]

		out = append(out, d)
	}

	return out
}

func regularAttrs(ino, size uint64) *rpcfs.Attributes {
	return &rpcfs.Attributes{
		Inode:      ino,
		Kind:       rpcfs.FileTypeRegular,
		Size:       size,
		Blocks:     1,
		Blksize:    4096,
		Permission: 0644,
		Nlink:      1,
		Uid:        123,
		Gid:        456,
	}
}

////////////////////////////////////////////////////////////////////////
// Lookup and attributes
////////////////////////////////////////////////////////////////////////

func TestLookUpInodeBindsChild(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.getAttr = func(req *rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
		assert.Equal(t, "/a", req.Path)
		return &rpcfs.GetAttrReply{Attributes: regularAttrs(42, 5)}, nil
	}

	op := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "a"}
	err := fs.LookUpInode(context.Background(), op)

	require.NoError(t, err)
	assert.Equal(t, fuseops.InodeID(42), op.Entry.Child)
	assert.Equal(t, uint64(5), op.Entry.Attributes.Size)
	assert.Equal(t, os.FileMode(0644), op.Entry.Attributes.Mode)
	assert.Equal(t, uint32(123), op.Entry.Attributes.Uid)
	assert.Equal(t, uint32(456), op.Entry.Attributes.Gid)
	assert.Equal(t, testStart.Add(cacheTTL), op.Entry.AttributesExpiration)
	assert.Equal(t, testStart.Add(cacheTTL), op.Entry.EntryExpiration)

	// The kernel may address inode 42 immediately.
	p, ok := fs.inodes.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, "/a", p)
}

func TestLookUpThenGetAttrCoherence(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.getAttr = func(req *rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
		return &rpcfs.GetAttrReply{Attributes: regularAttrs(42, 5)}, nil
	}

	lookUp := &fuseops.LookUpInodeOp{Parent: fuseops.RootInodeID, Name: "a"}
	require.NoError(t, fs.LookUpInode(context.Background(), lookUp))

	getAttr := &fuseops.GetInodeAttributesOp{Inode: lookUp.Entry.Child}
	require.NoError(t, fs.GetInodeAttributes(context.Background(), getAttr))

	assert.Equal(t, lookUp.Entry.Attributes.Mode, getAttr.Attributes.Mode)
	assert.Equal(t, lookUp.Entry.Attributes.Size, getAttr.Attributes.Size)
	assert.Equal(t, lookUp.Entry.Attributes.Nlink, getAttr.Attributes.Nlink)
	assert.Equal(t, lookUp.Entry.Attributes.Uid, getAttr.Attributes.Uid)
	assert.Equal(t, lookUp.Entry.Attributes.Gid, getAttr.Attributes.Gid)
}

func TestGetInodeAttributesDirectoryMode(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.getAttr = func(req *rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
		assert.Equal(t, "/", req.Path)
		return &rpcfs.GetAttrReply{
			Attributes: &rpcfs.Attributes{
				Inode:      1,
				Kind:       rpcfs.FileTypeDirectory,
				Permission: 0755,
				Nlink:      2,
			},
		}, nil
	}

	op := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
	err := fs.GetInodeAttributes(context.Background(), op)

	require.NoError(t, err)
	assert.True(t, op.Attributes.Mode.IsDir())
	assert.Equal(t, os.FileMode(0755), op.Attributes.Mode.Perm())
	assert.Equal(t, time.Unix(0, 0), op.Attributes.Mtime)
	assert.Equal(t, testStart.Add(cacheTTL), op.AttributesExpiration)
}

func TestAttributeExpirationTracksClock(t *testing.T) {
	fs, remote, clock := newTestFS(t)
	remote.getAttr = func(req *rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
		return &rpcfs.GetAttrReply{Attributes: regularAttrs(2, 0)}, nil
	}

	clock.AdvanceTime(time.Minute)

	op := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
	require.NoError(t, fs.GetInodeAttributes(context.Background(), op))

	assert.Equal(t, testStart.Add(time.Minute+cacheTTL), op.AttributesExpiration)
}

////////////////////////////////////////////////////////////////////////
// Unknown inodes and error mapping
////////////////////////////////////////////////////////////////////////

func TestUnknownInodeFailsWithoutRPC(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	ctx := context.Background()
	const unknown = fuseops.InodeID(99)

	ops := map[string]func() error{
		"GetInodeAttributes": func() error {
			return fs.GetInodeAttributes(ctx, &fuseops.GetInodeAttributesOp{Inode: unknown})
		},
		"LookUpInode": func() error {
			return fs.LookUpInode(ctx, &fuseops.LookUpInodeOp{Parent: unknown, Name: "x"})
		},
		"OpenDir": func() error {
			return fs.OpenDir(ctx, &fuseops.OpenDirOp{Inode: unknown})
		},
		"ReadDir": func() error {
			return fs.ReadDir(ctx, &fuseops.ReadDirOp{Inode: unknown, Dst: make([]byte, 1024)})
		},
		"OpenFile": func() error {
			return fs.OpenFile(ctx, &fuseops.OpenFileOp{Inode: unknown})
		},
		"ReadFile": func() error {
			return fs.ReadFile(ctx, &fuseops.ReadFileOp{Inode: unknown, Dst: make([]byte, 1024)})
		},
		"ReadSymlink": func() error {
			return fs.ReadSymlink(ctx, &fuseops.ReadSymlinkOp{Inode: unknown})
		},
	}

	for name, f := range ops {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, fuse.ENOENT, f())
			assert.Equal(t, 0, remote.calls)
		})
	}
}

func TestServerNotFoundMapsToENOENT(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.getAttr = func(req *rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
		return nil, status.Errorf(codes.NotFound, "stat %q: no such file", req.Path)
	}

	op := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
	assert.Equal(t, fuse.ENOENT, fs.GetInodeAttributes(context.Background(), op))
}

func TestTransportFailureMapsToEIO(t *testing.T) {
	fs, remote, _ := newTestFS(t)

	for _, rpcErr := range []error{
		status.Error(codes.Unavailable, "connection refused"),
		status.Error(codes.Internal, "mid-listing failure"),
		errors.New("no status at all"),
	} {
		remote.getAttr = func(*rpcfs.GetAttrRequest) (*rpcfs.GetAttrReply, error) {
			return nil, rpcErr
		}

		op := &fuseops.GetInodeAttributesOp{Inode: fuseops.RootInodeID}
		assert.Equal(t, fuse.EIO, fs.GetInodeAttributes(context.Background(), op))
	}
}

////////////////////////////////////////////////////////////////////////
// Directory reading
////////////////////////////////////////////////////////////////////////

func TestReadDirEmitsServerEntriesVerbatim(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.readDir = func(req *rpcfs.ReadDirRequest) (*rpcfs.ReadDirReply, error) {
		// The kernel's offset is forwarded untouched; the server owns the
		// skip.
		assert.Equal(t, "/", req.Path)
		assert.Equal(t, int64(2), req.Offset)

		return &rpcfs.ReadDirReply{
			Entries: []*rpcfs.DirEntry{
				{Inode: 10, Offset: 3, FileName: "a", Kind: rpcfs.FileTypeRegular},
				{Inode: 11, Offset: 4, FileName: "sub", Kind: rpcfs.FileTypeDirectory},
				{Inode: 12, Offset: 5, FileName: "ln", Kind: rpcfs.FileTypeSymlink},
			},
		}, nil
	}

	op := &fuseops.ReadDirOp{
		Inode:  fuseops.RootInodeID,
		Offset: 2,
		Dst:    make([]byte, 4096),
	}
	require.NoError(t, fs.ReadDir(context.Background(), op))

	dirents := parseDirents(t, op.Dst[:op.BytesRead])
	require.Len(t, dirents, 3)

	assert.Equal(t, parsedDirent{ino: 10, off: 3, typ: uint32(fuseutil.DT_File), name: "a"}, dirents[0])
	assert.Equal(t, parsedDirent{ino: 11, off: 4, typ: uint32(fuseutil.DT_Directory), name: "sub"}, dirents[1])
	assert.Equal(t, parsedDirent{ino: 12, off: 5, typ: uint32(fuseutil.DT_Link), name: "ln"}, dirents[2])

	// Every entry was bound before being emitted.
	for ino, want := range map[fuseops.InodeID]string{10: "/a", 11: "/sub", 12: "/ln"} {
		p, ok := fs.inodes.Lookup(ino)
		require.True(t, ok)
		assert.Equal(t, want, p)
	}
}

func TestReadDirResolvesDotEntries(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	fs.inodes.Bind(5, "/sub", fuseops.RootInodeID)

	remote.readDir = func(req *rpcfs.ReadDirRequest) (*rpcfs.ReadDirReply, error) {
		// The server reports the true on-disk inodes for the dot entries;
		// they must not leak into the kernel or the cache.
		return &rpcfs.ReadDirReply{
			Entries: []*rpcfs.DirEntry{
				{Inode: 777, Offset: 1, FileName: ".", Kind: rpcfs.FileTypeDirectory},
				{Inode: 888, Offset: 2, FileName: "..", Kind: rpcfs.FileTypeDirectory},
				{Inode: 13, Offset: 3, FileName: "f", Kind: rpcfs.FileTypeRegular},
			},
		}, nil
	}

	op := &fuseops.ReadDirOp{Inode: 5, Dst: make([]byte, 4096)}
	require.NoError(t, fs.ReadDir(context.Background(), op))

	dirents := parseDirents(t, op.Dst[:op.BytesRead])
	require.Len(t, dirents, 3)

	// "." is the listed directory, ".." its recorded parent.
	assert.Equal(t, uint64(5), dirents[0].ino)
	assert.Equal(t, uint64(fuseops.RootInodeID), dirents[1].ino)
	assert.Equal(t, uint64(13), dirents[2].ino)

	// Dot entries create no bindings and the root is untouched.
	_, ok := fs.inodes.Lookup(777)
	assert.False(t, ok)
	_, ok = fs.inodes.Lookup(888)
	assert.False(t, ok)
	p, ok := fs.inodes.Lookup(fuseops.RootInodeID)
	require.True(t, ok)
	assert.Equal(t, inode.RootPath, p)
}

func TestReadDirRootDotDotIsRoot(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.readDir = func(req *rpcfs.ReadDirRequest) (*rpcfs.ReadDirReply, error) {
		return &rpcfs.ReadDirReply{
			Entries: []*rpcfs.DirEntry{
				{Inode: 999, Offset: 1, FileName: "..", Kind: rpcfs.FileTypeDirectory},
			},
		}, nil
	}

	op := &fuseops.ReadDirOp{Inode: fuseops.RootInodeID, Dst: make([]byte, 4096)}
	require.NoError(t, fs.ReadDir(context.Background(), op))

	dirents := parseDirents(t, op.Dst[:op.BytesRead])
	require.Len(t, dirents, 1)
	assert.Equal(t, uint64(fuseops.RootInodeID), dirents[0].ino)
}

func TestReadDirStopsWhenBufferFull(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.readDir = func(req *rpcfs.ReadDirRequest) (*rpcfs.ReadDirReply, error) {
		return &rpcfs.ReadDirReply{
			Entries: []*rpcfs.DirEntry{
				{Inode: 10, Offset: 1, FileName: "first", Kind: rpcfs.FileTypeRegular},
				{Inode: 11, Offset: 2, FileName: "second", Kind: rpcfs.FileTypeRegular},
			},
		}, nil
	}

	// Room for one record only.
	op := &fuseops.ReadDirOp{Inode: fuseops.RootInodeID, Dst: make([]byte, 40)}
	require.NoError(t, fs.ReadDir(context.Background(), op))

	dirents := parseDirents(t, op.Dst[:op.BytesRead])
	require.Len(t, dirents, 1)
	assert.Equal(t, "first", dirents[0].name)
}

func TestReadDirPlusBindsAndSkipsAttributelessEntries(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	remote.readDirPlus = func(req *rpcfs.ReadDirPlusRequest) (*rpcfs.ReadDirPlusReply, error) {
		assert.Equal(t, "/", req.Path)
		assert.Equal(t, int64(0), req.Offset)

		return &rpcfs.ReadDirPlusReply{
			Entries: []*rpcfs.DirEntryPlus{
				{Inode: 10, Offset: 1, FileName: "a", Kind: rpcfs.FileTypeRegular, Attributes: regularAttrs(10, 5)},
				// Stat failed server-side; no attribute record.
				{Offset: 2, FileName: "gone"},
				{Inode: 11, Offset: 3, FileName: "b", Kind: rpcfs.FileTypeRegular, Attributes: regularAttrs(11, 7)},
			},
		}, nil
	}

	op := &fuseops.ReadDirPlusOp{
		ReadDirOp: fuseops.ReadDirOp{
			Inode: fuseops.RootInodeID,
			Dst:   make([]byte, 8192),
		},
	}
	require.NoError(t, fs.ReadDirPlus(context.Background(), op))
	assert.Positive(t, op.BytesRead)

	// The healthy entries are bound; the degraded one is not.
	p, ok := fs.inodes.Lookup(10)
	require.True(t, ok)
	assert.Equal(t, "/a", p)
	p, ok = fs.inodes.Lookup(11)
	require.True(t, ok)
	assert.Equal(t, "/b", p)
	_, ok = fs.inodes.Lookup(0)
	assert.False(t, ok)
}

////////////////////////////////////////////////////////////////////////
// Files and symlinks
////////////////////////////////////////////////////////////////////////

func TestOpenFileForwardsServerHandle(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	fs.inodes.Bind(7, "/f", fuseops.RootInodeID)

	remote.open = func(req *rpcfs.OpenRequest) (*rpcfs.OpenReply, error) {
		assert.Equal(t, "/f", req.Path)
		return &rpcfs.OpenReply{Fd: 3}, nil
	}

	op := &fuseops.OpenFileOp{Inode: 7}
	require.NoError(t, fs.OpenFile(context.Background(), op))
	assert.Equal(t, fuseops.HandleID(3), op.Handle)
}

func TestReadFileCopiesReplyBytes(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	fs.inodes.Bind(7, "/f", fuseops.RootInodeID)

	remote.read = func(req *rpcfs.ReadRequest) (*rpcfs.ReadReply, error) {
		assert.Equal(t, "/f", req.Path)
		assert.Equal(t, uint64(4), req.Offset)
		assert.Equal(t, uint64(5), req.Size)
		return &rpcfs.ReadReply{Data: []byte("hello")}, nil
	}

	op := &fuseops.ReadFileOp{
		Inode:  7,
		Offset: 4,
		Size:   5,
		Dst:    make([]byte, 5),
	}
	require.NoError(t, fs.ReadFile(context.Background(), op))

	assert.Equal(t, 5, op.BytesRead)
	assert.Equal(t, "hello", string(op.Dst[:op.BytesRead]))
}

func TestReadFileShortReadAtEOF(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	fs.inodes.Bind(7, "/f", fuseops.RootInodeID)

	remote.read = func(req *rpcfs.ReadRequest) (*rpcfs.ReadReply, error) {
		// Two bytes left before EOF.
		return &rpcfs.ReadReply{Data: []byte("xy")}, nil
	}

	op := &fuseops.ReadFileOp{Inode: 7, Offset: 8, Size: 4096, Dst: make([]byte, 4096)}
	require.NoError(t, fs.ReadFile(context.Background(), op))
	assert.Equal(t, 2, op.BytesRead)
}

func TestReadFilePastEOF(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	fs.inodes.Bind(7, "/f", fuseops.RootInodeID)

	remote.read = func(req *rpcfs.ReadRequest) (*rpcfs.ReadReply, error) {
		return &rpcfs.ReadReply{}, nil
	}

	op := &fuseops.ReadFileOp{Inode: 7, Offset: 1 << 20, Size: 4096, Dst: make([]byte, 4096)}
	require.NoError(t, fs.ReadFile(context.Background(), op))
	assert.Zero(t, op.BytesRead)
}

func TestReadSymlink(t *testing.T) {
	fs, remote, _ := newTestFS(t)
	fs.inodes.Bind(9, "/ln", fuseops.RootInodeID)

	remote.readLink = func(req *rpcfs.ReadLinkRequest) (*rpcfs.ReadLinkReply, error) {
		assert.Equal(t, "/ln", req.Path)
		return &rpcfs.ReadLinkReply{Target: "a/b"}, nil
	}

	op := &fuseops.ReadSymlinkOp{Inode: 9}
	require.NoError(t, fs.ReadSymlink(context.Background(), op))
	assert.Equal(t, "a/b", op.Target)
}

////////////////////////////////////////////////////////////////////////
// Handle plumbing
////////////////////////////////////////////////////////////////////////

func TestHandleOpsAreBenign(t *testing.T) {
	fs, _, _ := newTestFS(t)
	ctx := context.Background()

	assert.NoError(t, fs.ReleaseDirHandle(ctx, &fuseops.ReleaseDirHandleOp{}))
	assert.NoError(t, fs.ReleaseFileHandle(ctx, &fuseops.ReleaseFileHandleOp{}))
	assert.NoError(t, fs.FlushFile(ctx, &fuseops.FlushFileOp{}))
	assert.NoError(t, fs.ForgetInode(ctx, &fuseops.ForgetInodeOp{Inode: 2}))
}
