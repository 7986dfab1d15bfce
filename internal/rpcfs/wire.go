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
	"google.golang.org/protobuf/encoding/protowire"
)

// Wire encoding for the message set, implemented directly on the protobuf
// wire format. Zero-valued scalar fields are omitted and unknown fields are
// skipped on decode, matching proto3 semantics, so these bytes stay
// compatible with any stub regenerated from rpcfs.proto.

////////////////////////////////////////////////////////////////////////
// Append helpers
////////////////////////////////////////////////////////////////////////

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, uint64(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// Sub-messages are length-delimited; unlike scalars, presence is
// meaningful, so a non-nil empty message is still emitted.
func appendMessage(b []byte, num protowire.Number, m interface {
	MarshalBinary() ([]byte, error)
}) ([]byte, error) {
	sub, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub), nil
}

////////////////////////////////////////////////////////////////////////
// Consume helpers
////////////////////////////////////////////////////////////////////////

// A fieldFunc consumes the value of a single field from the front of b,
// returning the number of bytes read.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walkFields drives a decode loop over a whole message, dispatching each
// field to f. Fields f does not recognize are skipped.
func walkFields(b []byte, f fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := f(num, typ, b)
		if err != nil {
			return err
		}
		if n == 0 {
			// Unknown field.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]
	}

	return nil
}

func consumeUint(b []byte, v *uint64) (int, error) {
	u, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	*v = u
	return n, nil
}

func consumeInt(b []byte, v *int64) (int, error) {
	var u uint64
	n, err := consumeUint(b, &u)
	*v = int64(u)
	return n, err
}

func consumeString(b []byte, v *string) (int, error) {
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	*v = s
	return n, nil
}

func consumeBytes(b []byte, v *[]byte) (int, error) {
	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	*v = append([]byte(nil), raw...)
	return n, nil
}

func consumeMessage(b []byte, m interface{ UnmarshalBinary([]byte) error }) (int, error) {
	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}

	if err := m.UnmarshalBinary(raw); err != nil {
		return 0, err
	}

	return n, nil
}

////////////////////////////////////////////////////////////////////////
// Attributes
////////////////////////////////////////////////////////////////////////

func (m *Attributes) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendUint(b, 1, m.Inode)
	b = appendInt(b, 2, int64(m.Kind))
	b = appendUint(b, 3, m.Size)
	b = appendUint(b, 4, m.Blocks)
	b = appendUint(b, 5, uint64(m.Blksize))
	b = appendUint(b, 6, uint64(m.Permission))
	b = appendUint(b, 7, uint64(m.Nlink))
	b = appendUint(b, 8, uint64(m.Uid))
	b = appendUint(b, 9, uint64(m.Gid))
	b = appendUint(b, 10, uint64(m.Rdev))
	return b, nil
}

func (m *Attributes) UnmarshalBinary(b []byte) error {
	*m = Attributes{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}

		var v uint64
		n, err := consumeUint(b, &v)
		if err != nil {
			return 0, err
		}

		switch num {
		case 1:
			m.Inode = v
		case 2:
			m.Kind = FileType(v)
		case 3:
			m.Size = v
		case 4:
			m.Blocks = v
		case 5:
			m.Blksize = uint32(v)
		case 6:
			m.Permission = uint32(v)
		case 7:
			m.Nlink = uint32(v)
		case 8:
			m.Uid = uint32(v)
		case 9:
			m.Gid = uint32(v)
		case 10:
			m.Rdev = uint32(v)
		default:
			return 0, nil
		}

		return n, nil
	})
}

////////////////////////////////////////////////////////////////////////
// GetAttr / Lookup
////////////////////////////////////////////////////////////////////////

func (m *GetAttrRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Path), nil
}

func (m *GetAttrRequest) UnmarshalBinary(b []byte) error {
	*m = GetAttrRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			return consumeString(b, &m.Path)
		}
		return 0, nil
	})
}

func (m *GetAttrReply) MarshalBinary() ([]byte, error) {
	if m.Attributes == nil {
		return nil, nil
	}
	return appendMessage(nil, 1, m.Attributes)
}

func (m *GetAttrReply) UnmarshalBinary(b []byte) error {
	*m = GetAttrReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			m.Attributes = new(Attributes)
			return consumeMessage(b, m.Attributes)
		}
		return 0, nil
	})
}

func (m *LookupRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Path), nil
}

func (m *LookupRequest) UnmarshalBinary(b []byte) error {
	*m = LookupRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			return consumeString(b, &m.Path)
		}
		return 0, nil
	})
}

func (m *LookupReply) MarshalBinary() ([]byte, error) {
	if m.Attributes == nil {
		return nil, nil
	}
	return appendMessage(nil, 1, m.Attributes)
}

func (m *LookupReply) UnmarshalBinary(b []byte) error {
	*m = LookupReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			m.Attributes = new(Attributes)
			return consumeMessage(b, m.Attributes)
		}
		return 0, nil
	})
}

////////////////////////////////////////////////////////////////////////
// ReadDir
////////////////////////////////////////////////////////////////////////

func (m *ReadDirRequest) MarshalBinary() ([]byte, error) {
	b := appendString(nil, 1, m.Path)
	b = appendInt(b, 2, m.Offset)
	return b, nil
}

func (m *ReadDirRequest) UnmarshalBinary(b []byte) error {
	*m = ReadDirRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Path)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt(b, &m.Offset)
		}
		return 0, nil
	})
}

func (m *DirEntry) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendUint(b, 1, m.Inode)
	b = appendInt(b, 2, m.Offset)
	b = appendString(b, 3, m.FileName)
	b = appendInt(b, 4, int64(m.Kind))
	return b, nil
}

func (m *DirEntry) UnmarshalBinary(b []byte) error {
	*m = DirEntry{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeUint(b, &m.Inode)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt(b, &m.Offset)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.FileName)
		case num == 4 && typ == protowire.VarintType:
			var v int64
			n, err := consumeInt(b, &v)
			m.Kind = FileType(v)
			return n, err
		}
		return 0, nil
	})
}

func (m *ReadDirReply) MarshalBinary() ([]byte, error) {
	var b []byte
	var err error
	for _, e := range m.Entries {
		if b, err = appendMessage(b, 1, e); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *ReadDirReply) UnmarshalBinary(b []byte) error {
	*m = ReadDirReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			e := new(DirEntry)
			n, err := consumeMessage(b, e)
			if err == nil {
				m.Entries = append(m.Entries, e)
			}
			return n, err
		}
		return 0, nil
	})
}

////////////////////////////////////////////////////////////////////////
// ReadDirPlus
////////////////////////////////////////////////////////////////////////

func (m *ReadDirPlusRequest) MarshalBinary() ([]byte, error) {
	b := appendString(nil, 1, m.Path)
	b = appendInt(b, 2, m.Offset)
	return b, nil
}

func (m *ReadDirPlusRequest) UnmarshalBinary(b []byte) error {
	*m = ReadDirPlusRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Path)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt(b, &m.Offset)
		}
		return 0, nil
	})
}

func (m *DirEntryPlus) MarshalBinary() ([]byte, error) {
	var b []byte
	b = appendUint(b, 1, m.Inode)
	b = appendInt(b, 2, m.Offset)
	b = appendString(b, 3, m.FileName)
	b = appendInt(b, 4, int64(m.Kind))
	if m.Attributes != nil {
		var err error
		if b, err = appendMessage(b, 5, m.Attributes); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *DirEntryPlus) UnmarshalBinary(b []byte) error {
	*m = DirEntryPlus{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeUint(b, &m.Inode)
		case num == 2 && typ == protowire.VarintType:
			return consumeInt(b, &m.Offset)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.FileName)
		case num == 4 && typ == protowire.VarintType:
			var v int64
			n, err := consumeInt(b, &v)
			m.Kind = FileType(v)
			return n, err
		case num == 5 && typ == protowire.BytesType:
			m.Attributes = new(Attributes)
			return consumeMessage(b, m.Attributes)
		}
		return 0, nil
	})
}

func (m *ReadDirPlusReply) MarshalBinary() ([]byte, error) {
	var b []byte
	var err error
	for _, e := range m.Entries {
		if b, err = appendMessage(b, 1, e); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (m *ReadDirPlusReply) UnmarshalBinary(b []byte) error {
	*m = ReadDirPlusReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			e := new(DirEntryPlus)
			n, err := consumeMessage(b, e)
			if err == nil {
				m.Entries = append(m.Entries, e)
			}
			return n, err
		}
		return 0, nil
	})
}

////////////////////////////////////////////////////////////////////////
// Open / Read / ReadLink
////////////////////////////////////////////////////////////////////////

func (m *OpenRequest) MarshalBinary() ([]byte, error) {
	b := appendString(nil, 1, m.Path)
	b = appendInt(b, 2, int64(m.Flags))
	return b, nil
}

func (m *OpenRequest) UnmarshalBinary(b []byte) error {
	*m = OpenRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Path)
		case num == 2 && typ == protowire.VarintType:
			var v int64
			n, err := consumeInt(b, &v)
			m.Flags = int32(v)
			return n, err
		}
		return 0, nil
	})
}

func (m *OpenReply) MarshalBinary() ([]byte, error) {
	return appendInt(nil, 1, m.Fd), nil
}

func (m *OpenReply) UnmarshalBinary(b []byte) error {
	*m = OpenReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			return consumeInt(b, &m.Fd)
		}
		return 0, nil
	})
}

func (m *ReadRequest) MarshalBinary() ([]byte, error) {
	b := appendString(nil, 1, m.Path)
	b = appendUint(b, 2, m.Offset)
	b = appendUint(b, 3, m.Size)
	return b, nil
}

func (m *ReadRequest) UnmarshalBinary(b []byte) error {
	*m = ReadRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			return consumeString(b, &m.Path)
		case num == 2 && typ == protowire.VarintType:
			return consumeUint(b, &m.Offset)
		case num == 3 && typ == protowire.VarintType:
			return consumeUint(b, &m.Size)
		}
		return 0, nil
	})
}

func (m *ReadReply) MarshalBinary() ([]byte, error) {
	return appendBytes(nil, 1, m.Data), nil
}

func (m *ReadReply) UnmarshalBinary(b []byte) error {
	*m = ReadReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			return consumeBytes(b, &m.Data)
		}
		return 0, nil
	})
}

func (m *ReadLinkRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Path), nil
}

func (m *ReadLinkRequest) UnmarshalBinary(b []byte) error {
	*m = ReadLinkRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			return consumeString(b, &m.Path)
		}
		return 0, nil
	})
}

func (m *ReadLinkReply) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Target), nil
}

func (m *ReadLinkReply) UnmarshalBinary(b []byte) error {
	*m = ReadLinkReply{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			return consumeString(b, &m.Target)
		}
		return 0, nil
	})
}
