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
	"context"

	"google.golang.org/grpc"
)

// Full method names for the RemoteFS service.
const (
	RemoteFSGetAttrMethod     = "/rpcfs.RemoteFS/GetAttr"
	RemoteFSLookupMethod      = "/rpcfs.RemoteFS/Lookup"
	RemoteFSReadDirMethod     = "/rpcfs.RemoteFS/ReadDir"
	RemoteFSReadDirPlusMethod = "/rpcfs.RemoteFS/ReadDirPlus"
	RemoteFSOpenMethod        = "/rpcfs.RemoteFS/Open"
	RemoteFSReadMethod        = "/rpcfs.RemoteFS/Read"
	RemoteFSReadLinkMethod    = "/rpcfs.RemoteFS/ReadLink"
)

// RemoteFSClient is the client-side API for the RemoteFS service. The
// operation bridge depends on this interface rather than the concrete
// stub so that tests can intercept the RPC channel.
type RemoteFSClient interface {
	GetAttr(ctx context.Context, in *GetAttrRequest, opts ...grpc.CallOption) (*GetAttrReply, error)
	Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupReply, error)
	ReadDir(ctx context.Context, in *ReadDirRequest, opts ...grpc.CallOption) (*ReadDirReply, error)
	ReadDirPlus(ctx context.Context, in *ReadDirPlusRequest, opts ...grpc.CallOption) (*ReadDirPlusReply, error)
	Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenReply, error)
	Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadReply, error)
	ReadLink(ctx context.Context, in *ReadLinkRequest, opts ...grpc.CallOption) (*ReadLinkReply, error)
}

type remoteFSClient struct {
	cc grpc.ClientConnInterface
}

func NewRemoteFSClient(cc grpc.ClientConnInterface) RemoteFSClient {
	return &remoteFSClient{cc}
}

func (c *remoteFSClient) GetAttr(ctx context.Context, in *GetAttrRequest, opts ...grpc.CallOption) (*GetAttrReply, error) {
	out := new(GetAttrReply)
	if err := c.cc.Invoke(ctx, RemoteFSGetAttrMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteFSClient) Lookup(ctx context.Context, in *LookupRequest, opts ...grpc.CallOption) (*LookupReply, error) {
	out := new(LookupReply)
	if err := c.cc.Invoke(ctx, RemoteFSLookupMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteFSClient) ReadDir(ctx context.Context, in *ReadDirRequest, opts ...grpc.CallOption) (*ReadDirReply, error) {
	out := new(ReadDirReply)
	if err := c.cc.Invoke(ctx, RemoteFSReadDirMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteFSClient) ReadDirPlus(ctx context.Context, in *ReadDirPlusRequest, opts ...grpc.CallOption) (*ReadDirPlusReply, error) {
	out := new(ReadDirPlusReply)
	if err := c.cc.Invoke(ctx, RemoteFSReadDirPlusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteFSClient) Open(ctx context.Context, in *OpenRequest, opts ...grpc.CallOption) (*OpenReply, error) {
	out := new(OpenReply)
	if err := c.cc.Invoke(ctx, RemoteFSOpenMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteFSClient) Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (*ReadReply, error) {
	out := new(ReadReply)
	if err := c.cc.Invoke(ctx, RemoteFSReadMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteFSClient) ReadLink(ctx context.Context, in *ReadLinkRequest, opts ...grpc.CallOption) (*ReadLinkReply, error) {
	out := new(ReadLinkReply)
	if err := c.cc.Invoke(ctx, RemoteFSReadLinkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
