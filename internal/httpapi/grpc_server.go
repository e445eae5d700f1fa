package httpapi

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/obs"
)

// GRPCServer serves the standard gRPC health protocol backed by the same
// readiness probe as /readyz.
type GRPCServer struct {
	healthpb.UnimplementedHealthServer

	readiness readinessChecker
	auth      *auth.Service
}

// NewGRPCServer creates the gRPC service wrapper. authSvc may be nil, in
// which case every call is anonymous.
func NewGRPCServer(r readinessChecker, authSvc *auth.Service) *GRPCServer {
	if r == nil {
		r = ReadyProbe{}
	}
	return &GRPCServer{readiness: r, auth: authSvc}
}

// Server builds a grpc.Server with the interceptor chain and registers the
// health service on it.
func (s *GRPCServer) Server(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.AuthUnary, s.logUnary))
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, s)
	return srv
}

// Check evaluates readiness for the whole server ("") or for serviceName.
func (s *GRPCServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// AuthUnary applies the same soft authentication as the HTTP middleware to
// the "authorization" metadata key. It runs first in the chain, so the call
// log and any service registered on the server see the caller through
// auth.IdentityFromContext.
func (s *GRPCServer) AuthUnary(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.auth == nil {
		return handler(ctx, req)
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return handler(ctx, req)
	}
	values := md.Get(strings.ToLower(authHeader))
	if len(values) == 0 {
		return handler(ctx, req)
	}
	token, err := extractBearerToken(values[0])
	if err != nil {
		return handler(ctx, req)
	}
	identity, err := s.auth.ResolveIdentity(ctx, token)
	if err != nil {
		return handler(ctx, req)
	}
	ctx = auth.ContextWithIdentity(ctx, identity)
	ctx = auth.ContextWithToken(ctx, token)
	return handler(ctx, req)
}

func (s *GRPCServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := map[string]any{
		"method":      info.FullMethod,
		"code":        status.Code(err).String(),
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		fields["user_email"] = identity.Email
		fields["user_role"] = string(identity.Role)
	}
	obs.Log("info", "grpc_complete", fields)
	return resp, err
}
