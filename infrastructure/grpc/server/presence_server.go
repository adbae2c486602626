package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/wire"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	PresenceServiceName  = "relay.PresenceService"
	ListUsersMethod      = "/" + PresenceServiceName + "/ListUsers"
	GetHistoryMethod     = "/" + PresenceServiceName + "/GetHistory"
	presenceProtoPackage = "relay/presence.proto"
)

// PresenceServiceServer is the read-only surface for clients that are not attached.
// Messages only use well-known types so no generated code is involved.
type PresenceServiceServer interface {
	ListUsers(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	GetHistory(ctx context.Context, peer *wrapperspb.StringValue) (*structpb.ListValue, error)
}

var PresenceServiceDesc = grpc.ServiceDesc{
	ServiceName: PresenceServiceName,
	HandlerType: (*PresenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListUsers", Handler: listUsersHandler},
		{MethodName: "GetHistory", Handler: getHistoryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: presenceProtoPackage,
}

func RegisterPresenceServiceServer(s grpc.ServiceRegistrar, srv PresenceServiceServer) {
	s.RegisterService(&PresenceServiceDesc, srv)
}

type PresenceServer struct {
	log         *slog.Logger
	chatService services.IChatService
}

func NewPresenceServer(log *slog.Logger, chatService services.IChatService) *PresenceServer {
	return &PresenceServer{log: log, chatService: chatService}
}

func (s *PresenceServer) ListUsers(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	identities := s.chatService.OnlineUsers()
	return &structpb.ListValue{
		Values: lo.Map(identities, func(identity domain.Identity, _ int) *structpb.Value {
			return structpb.NewStringValue(identity.String())
		}),
	}, nil
}

func (s *PresenceServer) GetHistory(ctx context.Context, peer *wrapperspb.StringValue) (*structpb.ListValue, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, errors.MapToGRPCError(errors.ErrInvalidToken)
	}
	messages, err := s.chatService.GetMessages(ctx, domain.GetHistoryCommand{
		Requester: identity,
		A:         identity,
		B:         domain.Identity(peer.GetValue()),
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	values := make([]*structpb.Value, 0, len(messages))
	for _, payload := range wire.ToMessagePayloads(messages) {
		value, err := toStruct(payload)
		if err != nil {
			s.log.Error("Unable to encode message", "id", payload.ID, "error", err)
			return nil, errors.MapToGRPCError(err)
		}
		values = append(values, structpb.NewStructValue(value))
	}
	return &structpb.ListValue{Values: values}, nil
}

func toStruct(payload wire.MessagePayload) (*structpb.Struct, error) {
	value, err := structpb.NewStruct(map[string]any{
		"_id":       payload.ID,
		"from":      payload.From,
		"to":        payload.To,
		"text":      payload.Text,
		"time":      payload.Time,
		"createdAt": payload.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", payload.ID, err)
	}
	return value, nil
}

func listUsersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServiceServer).ListUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListUsersMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServiceServer).ListUsers(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServiceServer).GetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetHistoryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServiceServer).GetHistory(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
