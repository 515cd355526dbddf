// Package client - клиент сервиса grpc.health.v1. Используется для
// проверки контейнера (tour-booking -healthcheck).
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthClient опрашивает gRPC health.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewHealthClient создаёт клиента. Соединение устанавливается лениво.
func NewHealthClient(addr string, opts ...grpc.DialOption) (*HealthClient, error) {
	const op = "grpc.client.NewHealthClient"
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &HealthClient{conn: conn, client: healthpb.NewHealthClient(conn)}, nil
}

// Close закрывает соединение.
func (c *HealthClient) Close() error {
	return c.conn.Close()
}

// Check возвращает nil, если service в статусе SERVING.
func (c *HealthClient) Check(ctx context.Context, service string) error {
	const op = "grpc.client.Check"
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s: service %q is %s", op, service, resp.GetStatus())
	}
	return nil
}
