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

// Package rpcfs defines the wire protocol spoken between the mount daemon
// and the export server: the message set from rpcfs.proto, a protowire
// codec for carrying those messages over gRPC, and hand-maintained client
// and server stubs for the rpcfs.RemoteFS service.
//
// The Go types below mirror rpcfs.proto field for field. Keep the two in
// sync; the proto file is the schema of record.
package rpcfs

// FileType is the kind of a filesystem object as reported on the wire.
// Object kinds the protocol does not model (sockets, fifos, devices) are
// coerced to FileTypeRegular by the server.
type FileType int32

const (
	FileTypeRegular   FileType = 0
	FileTypeDirectory FileType = 1
	FileTypeSymlink   FileType = 2
)

func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "REGULAR"
	case FileTypeDirectory:
		return "DIRECTORY"
	case FileTypeSymlink:
		return "SYMLINK"
	default:
		return "UNKNOWN"
	}
}

// Attributes is the stat record for a single filesystem object. The inode
// number is the server's on-disk inode; the client reuses it verbatim so
// that bindings survive across calls.
type Attributes struct {
	Inode      uint64
	Kind       FileType
	Size       uint64
	Blocks     uint64
	Blksize    uint32
	Permission uint32
	Nlink      uint32
	Uid        uint32
	Gid        uint32
	Rdev       uint32
}

type GetAttrRequest struct {
	Path string
}

type GetAttrReply struct {
	Attributes *Attributes
}

type LookupRequest struct {
	Path string
}

type LookupReply struct {
	Attributes *Attributes
}

type ReadDirRequest struct {
	Path   string
	Offset int64
}

// DirEntry is one entry of a paginated plain directory listing. Offset is
// the cursor at which the listing resumes after this entry; the server
// numbers entries 1-based after the skipped prefix.
type DirEntry struct {
	Inode    uint64
	Offset   int64
	FileName string
	Kind     FileType
}

type ReadDirReply struct {
	Entries []*DirEntry
}

type ReadDirPlusRequest struct {
	Path   string
	Offset int64
}

// DirEntryPlus is a DirEntry with the full attribute record attached, so
// the client can answer a subsequent getattr without another round trip.
type DirEntryPlus struct {
	Inode      uint64
	Offset     int64
	FileName   string
	Kind       FileType
	Attributes *Attributes
}

type ReadDirPlusReply struct {
	Entries []*DirEntryPlus
}

type OpenRequest struct {
	Path  string
	Flags int32
}

type OpenReply struct {
	Fd int64
}

type ReadRequest struct {
	Path   string
	Offset uint64
	Size   uint64
}

type ReadReply struct {
	Data []byte
}

type ReadLinkRequest struct {
	Path string
}

type ReadLinkReply struct {
	Target string
}
