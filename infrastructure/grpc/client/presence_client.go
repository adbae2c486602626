package client

import (
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/wire"
	"context"
	"fmt"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PresenceClient calls relay.PresenceService with a bearer token.
type PresenceClient struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewPresenceClient(cc grpc.ClientConnInterface, token string) *PresenceClient {
	return &PresenceClient{cc: cc, token: token}
}

func (c *PresenceClient) ListUsers(ctx context.Context) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(c.authorized(ctx), server.ListUsersMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return lo.Map(out.GetValues(), func(value *structpb.Value, _ int) string {
		return value.GetStringValue()
	}), nil
}

func (c *PresenceClient) GetHistory(ctx context.Context, peer string) ([]wire.MessagePayload, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(c.authorized(ctx), server.GetHistoryMethod, wrapperspb.String(peer), out); err != nil {
		return nil, err
	}
	messages := make([]wire.MessagePayload, 0, len(out.GetValues()))
	for _, value := range out.GetValues() {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("unexpected history entry %v", value)
		}
		messages = append(messages, wire.MessagePayload{
			ID:        fields["_id"].GetStringValue(),
			From:      fields["from"].GetStringValue(),
			To:        fields["to"].GetStringValue(),
			Text:      fields["text"].GetStringValue(),
			Time:      fields["time"].GetStringValue(),
			CreatedAt: fields["createdAt"].GetStringValue(),
		})
	}
	return messages, nil
}

func (c *PresenceClient) authorized(ctx context.Context) context.Context {
	return WithToken(ctx, c.token)
}

// WithToken attaches the bearer token expected by the server interceptor.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
