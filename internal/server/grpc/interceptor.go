package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logCall(ctx, info.FullMethod, err, time.Since(start))
	return resp, err
}

func (s *GRPCServer) streamLoggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	s.logCall(ss.Context(), info.FullMethod, err, time.Since(start))
	return err
}

func (s *GRPCServer) logCall(ctx context.Context, method string, err error, d time.Duration) {
	code := status.Code(err)
	args := []any{"method", method, "code", code.String(), "duration", d}
	switch code {
	case codes.OK, codes.Canceled, codes.NotFound:
		s.logger.Debug(ctx, "grpc call", args...)
	default:
		s.logger.Error(ctx, "grpc call", append(args, "error", err)...)
	}
}
