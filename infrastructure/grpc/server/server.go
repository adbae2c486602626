package server

import (
	"chat-relay/auth"
	"chat-relay/services"
	"log/slog"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer builds the gRPC server with logging then authentication on every unary call,
// health checks included.
func NewGRPCServer(log *slog.Logger, issuer *auth.TokenIssuer, chatService services.IChatService) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
			auth.AuthInterceptor(issuer),
		))
	RegisterPresenceServiceServer(s, NewPresenceServer(log, chatService))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(PresenceServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	return s, healthServer
}
