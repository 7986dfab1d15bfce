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

package rpcfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRequestBytesMatchProtoWireFormat(t *testing.T) {
	// The hand-maintained encoder must produce exactly what a generated
	// stub would for the same schema: field 1 string, field 2 varint.
	got, err := (&ReadDirRequest{Path: "/sub", Offset: 7}).MarshalBinary()
	require.NoError(t, err)

	var want []byte
	want = protowire.AppendTag(want, 1, protowire.BytesType)
	want = protowire.AppendString(want, "/sub")
	want = protowire.AppendTag(want, 2, protowire.VarintType)
	want = protowire.AppendVarint(want, 7)

	assert.Equal(t, want, got)
}

func TestNestedReplyRoundTrip(t *testing.T) {
	in := &ReadDirPlusReply{
		Entries: []*DirEntryPlus{
			{
				Inode:    10,
				Offset:   1,
				FileName: "a",
				Kind:     FileTypeRegular,
				Attributes: &Attributes{
					Inode:      10,
					Kind:       FileTypeRegular,
					Size:       5,
					Blocks:     1,
					Blksize:    4096,
					Permission: 0644,
					Nlink:      1,
					Uid:        1000,
					Gid:        1000,
				},
			},
			// Attribute-less entry: presence of the sub-message must
			// survive the trip as absence, not as an empty record.
			{Offset: 2, FileName: "gone"},
			{Inode: 12, Offset: 3, FileName: "sub", Kind: FileTypeDirectory, Attributes: &Attributes{Inode: 12, Kind: FileTypeDirectory, Permission: 0755, Nlink: 2}},
		},
	}

	b, err := in.MarshalBinary()
	require.NoError(t, err)

	out := new(ReadDirPlusReply)
	require.NoError(t, out.UnmarshalBinary(b))

	assert.Equal(t, in, out)
	assert.Nil(t, out.Entries[1].Attributes)
}

func TestEmptyReplyDecodesToAbsentAttributes(t *testing.T) {
	b, err := (&GetAttrReply{}).MarshalBinary()
	require.NoError(t, err)
	assert.Empty(t, b)

	out := new(GetAttrReply)
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Nil(t, out.Attributes)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	// A peer built from a newer rpcfs.proto may send fields this build
	// doesn't know. They must be ignored, not rejected.
	b, err := (&GetAttrRequest{Path: "/a"}).MarshalBinary()
	require.NoError(t, err)

	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = protowire.AppendTag(b, 16, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	out := new(GetAttrRequest)
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, "/a", out.Path)
}

func TestTruncatedMessageIsRejected(t *testing.T) {
	b, err := (&ReadReply{Data: []byte("hello")}).MarshalBinary()
	require.NoError(t, err)

	out := new(ReadReply)
	assert.Error(t, out.UnmarshalBinary(b[:len(b)-2]))
}

func TestNonASCIIPathsSurvive(t *testing.T) {
	// Filenames are arbitrary bytes on the wire; invalid UTF-8 included.
	in := &GetAttrRequest{Path: "/caf\xc3\xa9/\xff\xfe"}

	b, err := in.MarshalBinary()
	require.NoError(t, err)

	out := new(GetAttrRequest)
	require.NoError(t, out.UnmarshalBinary(b))
	assert.Equal(t, in.Path, out.Path)
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	var c Codec

	_, err := c.Marshal(42)
	assert.Error(t, err)

	assert.Error(t, c.Unmarshal(nil, "not a message"))
}

func TestCodecRoundTrip(t *testing.T) {
	var c Codec

	b, err := c.Marshal(&OpenRequest{Path: "/a", Flags: 0})
	require.NoError(t, err)

	out := new(OpenRequest)
	require.NoError(t, c.Unmarshal(b, out))
	assert.Equal(t, "/a", out.Path)
}
