package health

import (
	"context"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func TestHealthServer(t *testing.T) {
	lis := bufconn.Listen(bufSize)
	srv := NewServer()
	go func() { _ = srv.GRPC.Serve(lis) }()
	defer srv.Shutdown()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	ctx := context.Background()
	status := func() grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, status())

	var mongoDown bool
	deps := map[string]Pinger{
		"mongodb": func(context.Context) error {
			if mongoDown {
				return errors.New("connection refused")
			}
			return nil
		},
	}

	assert.True(t, srv.Check(ctx, deps))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, status())

	mongoDown = true
	assert.False(t, srv.Check(ctx, deps))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, status())
}
