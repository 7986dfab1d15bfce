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

// RemoteFSServer is the server-side API for the RemoteFS service.
type RemoteFSServer interface {
	GetAttr(ctx context.Context, req *GetAttrRequest) (*GetAttrReply, error)
	Lookup(ctx context.Context, req *LookupRequest) (*LookupReply, error)
	ReadDir(ctx context.Context, req *ReadDirRequest) (*ReadDirReply, error)
	ReadDirPlus(ctx context.Context, req *ReadDirPlusRequest) (*ReadDirPlusReply, error)
	Open(ctx context.Context, req *OpenRequest) (*OpenReply, error)
	Read(ctx context.Context, req *ReadRequest) (*ReadReply, error)
	ReadLink(ctx context.Context, req *ReadLinkRequest) (*ReadLinkReply, error)
}

func RegisterRemoteFSServer(s grpc.ServiceRegistrar, srv RemoteFSServer) {
	s.RegisterService(&RemoteFSServiceDesc, srv)
}

func getAttrHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetAttrRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).GetAttr(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSGetAttrMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).GetAttr(ctx, req.(*GetAttrRequest))
	})
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LookupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).Lookup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSLookupMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).Lookup(ctx, req.(*LookupRequest))
	})
}

func readDirHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadDirRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).ReadDir(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSReadDirMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).ReadDir(ctx, req.(*ReadDirRequest))
	})
}

func readDirPlusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadDirPlusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).ReadDirPlus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSReadDirPlusMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).ReadDirPlus(ctx, req.(*ReadDirPlusRequest))
	})
}

func openHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OpenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).Open(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSOpenMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).Open(ctx, req.(*OpenRequest))
	})
}

func readHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).Read(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSReadMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).Read(ctx, req.(*ReadRequest))
	})
}

func readLinkHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReadLinkRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteFSServer).ReadLink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteFSReadLinkMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RemoteFSServer).ReadLink(ctx, req.(*ReadLinkRequest))
	})
}

// RemoteFSServiceDesc wires the RemoteFS handlers into gRPC. It mirrors
// the service block of rpcfs.proto.
var RemoteFSServiceDesc = grpc.ServiceDesc{
	ServiceName: "rpcfs.RemoteFS",
	HandlerType: (*RemoteFSServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAttr", Handler: getAttrHandler},
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "ReadDir", Handler: readDirHandler},
		{MethodName: "ReadDirPlus", Handler: readDirPlusHandler},
		{MethodName: "Open", Handler: openHandler},
		{MethodName: "Read", Handler: readHandler},
		{MethodName: "ReadLink", Handler: readLinkHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpcfs/rpcfs.proto",
}
