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
	"fmt"
)

// CodecName identifies the rpcfs message codec to gRPC.
const CodecName = "rpcfs"

type binaryMarshaler interface {
	MarshalBinary() ([]byte, error)
}

type binaryUnmarshaler interface {
	UnmarshalBinary([]byte) error
}

// Codec carries rpcfs messages over gRPC. The client forces it per call
// (grpc.ForceCodec) and the server per connection (grpc.ForceServerCodec),
// so neither side depends on protoc-generated message types.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(binaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("rpcfs codec: cannot marshal %T", v)
	}

	return m.MarshalBinary()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(binaryUnmarshaler)
	if !ok {
		return fmt.Errorf("rpcfs codec: cannot unmarshal into %T", v)
	}

	return m.UnmarshalBinary(data)
}

func (Codec) Name() string {
	return CodecName
}
