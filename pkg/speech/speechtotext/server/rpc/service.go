// Package rpc declares the whisperstream.SpeechToText gRPC service. The
// messages are protobuf well-known types; see package goconv for their
// layout.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "whisperstream.SpeechToText"

	MethodPing       = "/" + ServiceName + "/Ping"
	MethodNewContext = "/" + ServiceName + "/NewContext"
	MethodWriteAudio = "/" + ServiceName + "/WriteAudio"
	MethodOutputChan = "/" + ServiceName + "/OutputChan"
)

type SpeechToTextServer interface {
	Ping(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	NewContext(*structpb.Struct, grpc.ServerStreamingServer[wrapperspb.UInt64Value]) error
	WriteAudio(grpc.ClientStreamingServer[wrapperspb.BytesValue, emptypb.Empty]) error
	OutputChan(*wrapperspb.UInt64Value, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterSpeechToTextServer(s grpc.ServiceRegistrar, srv SpeechToTextServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SpeechToTextServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    pingHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "NewContext",
			Handler:       newContextHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "WriteAudio",
			Handler:       writeAudioHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "OutputChan",
			Handler:       outputChanHandler,
			ServerStreams: true,
		},
	},
	Metadata: "whisperstream/speechtotext.proto",
}

func pingHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SpeechToTextServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MethodPing,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SpeechToTextServer).Ping(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func newContextHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SpeechToTextServer).NewContext(in, &grpc.GenericServerStream[structpb.Struct, wrapperspb.UInt64Value]{ServerStream: stream})
}

func writeAudioHandler(srv any, stream grpc.ServerStream) error {
	return srv.(SpeechToTextServer).WriteAudio(&grpc.GenericServerStream[wrapperspb.BytesValue, emptypb.Empty]{ServerStream: stream})
}

func outputChanHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.UInt64Value)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SpeechToTextServer).OutputChan(in, &grpc.GenericServerStream[wrapperspb.UInt64Value, structpb.Struct]{ServerStream: stream})
}
