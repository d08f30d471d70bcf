// Package api exposes the daemon over gRPC on the session socket. Requests
// and responses are google.protobuf.Struct values carrying the same JSON
// shapes the page handlers produce, so no generated code is needed.
package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wppilot.v1.Automation"

// Method names.
const (
	MethodGetStatus      = "GetStatus"
	MethodCollectContext = "CollectContext"
	MethodRunAction      = "RunAction"
	MethodQueueMessage   = "QueueMessage"
	MethodListOutbox     = "ListOutbox"
	MethodSearchMessages = "SearchMessages"
	MethodListLedger     = "ListLedger"
	MethodWatchEvents    = "WatchEvents"
)

// AutomationServer is the server side of the Automation service.
type AutomationServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CollectContext(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueueMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOutbox(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListLedger(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, EventStream) error
}

// EventStream is the server stream of WatchEvents.
type EventStream interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

// ServiceDesc describes the Automation service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AutomationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetStatus, AutomationServer.GetStatus),
		unary(MethodCollectContext, AutomationServer.CollectContext),
		unary(MethodRunAction, AutomationServer.RunAction),
		unary(MethodQueueMessage, AutomationServer.QueueMessage),
		unary(MethodListOutbox, AutomationServer.ListOutbox),
		unary(MethodSearchMessages, AutomationServer.SearchMessages),
		unary(MethodListLedger, AutomationServer.ListLedger),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchEvents,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "wppilot/v1/automation",
}

// Register attaches srv to s.
func Register(s *grpc.Server, srv AutomationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryFunc func(AutomationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryFunc) grpc.MethodDesc {
	fullMethod := fullName(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AutomationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AutomationServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AutomationServer).WatchEvents(in, &eventStream{stream})
}

func fullName(method string) string {
	return "/" + ServiceName + "/" + method
}

// toStruct converts any JSON-encodable value into a Struct. The value must
// encode as a JSON object.
func toStruct(v any) (*structpb.Struct, error) {
	if v == nil {
		return &structpb.Struct{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("encode %T as struct: %w", v, err)
	}
	return s, nil
}

// fromStruct decodes a Struct into T through its JSON form.
func fromStruct[T any](s *structpb.Struct) (T, error) {
	var out T
	if s == nil {
		return out, nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return out, fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode into %T: %w", out, err)
	}
	return out, nil
}
