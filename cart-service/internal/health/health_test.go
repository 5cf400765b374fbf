package health

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeChecker struct {
	healthy atomic.Bool
}

func (f *fakeChecker) Healthy() bool {
	return f.healthy.Load()
}

func startServer(t *testing.T, checker Checker) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := NewServer(checker, 10*time.Millisecond, nil)

	go func() {
		_ = srv.GRPC().Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		srv.Shutdown()
	})
	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealth_Serving(t *testing.T) {
	checker := &fakeChecker{}
	checker.healthy.Store(true)
	_, client := startServer(t, checker)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, CatalogService))
}

func TestHealth_CatalogFollowsChecker(t *testing.T) {
	checker := &fakeChecker{}
	srv, client := startServer(t, checker)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, CatalogService))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Watch(ctx)

	checker.healthy.Store(true)
	require.Eventually(t, func() bool {
		return check(t, client, CatalogService) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 20*time.Millisecond)
}

func TestHealth_NilChecker(t *testing.T) {
	_, client := startServer(t, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, CatalogService))
}
