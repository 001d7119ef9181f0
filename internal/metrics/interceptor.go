package metrics

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor records count, latency and in-flight gauges for
// every control call, labelled by the service and method of FullMethod.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		service, method := splitMethodName(info.FullMethod)

		inFlight := GRPCRequestsInFlight.WithLabelValues(method)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		resp, err := handler(ctx, req)

		GRPCRequestsTotal.WithLabelValues(service, method, status.Code(err).String()).Inc()
		GRPCRequestDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

func splitMethodName(fullMethod string) (service, method string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	if service, method, ok := strings.Cut(fullMethod, "/"); ok {
		return service, method
	}
	return "unknown", fullMethod
}
