package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "filekeeper.FileKeeper"

// fileKeeperServer exists only as the HandlerType of serviceDesc.
type fileKeeperServer interface {
	Ping(context.Context, *Empty) (*PingResponse, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds a method descriptor that decodes Req and hands it to call,
// going through the server's interceptor chain the way generated code does.
func unary[Req, Resp any](name string, call func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*fileKeeperServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", (*GRPCServer).Ping),
		unary("GetFile", (*GRPCServer).GetFile),
		unary("DeleteFile", (*GRPCServer).DeleteFile),
		unary("RevertFile", (*GRPCServer).RevertFile),
		unary("UpdateFileMetadata", (*GRPCServer).UpdateFileMetadata),
		unary("ShareFile", (*GRPCServer).ShareFile),
		unary("ListFiles", (*GRPCServer).ListFiles),
		unary("Search", (*GRPCServer).Search),
		unary("GetUsage", (*GRPCServer).GetUsage),
		unary("DownloadURL", (*GRPCServer).DownloadURL),
		unary("AccessHistory", (*GRPCServer).AccessHistory),
		unary("CreateFolder", (*GRPCServer).CreateFolder),
		unary("GetFolder", (*GRPCServer).GetFolder),
		unary("ListFolders", (*GRPCServer).ListFolders),
		unary("UpdateFolder", (*GRPCServer).UpdateFolder),
		unary("ShareFolder", (*GRPCServer).ShareFolder),
		unary("DeleteFolder", (*GRPCServer).DeleteFolder),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Upload",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(*GRPCServer).Upload(stream)
			},
		},
		{
			StreamName:    "UploadVersion",
			ClientStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(*GRPCServer).UploadVersion(stream)
			},
		},
		{
			StreamName:    "Download",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				return srv.(*GRPCServer).Download(stream)
			},
		},
	},
	Metadata: "filekeeper.json",
}
