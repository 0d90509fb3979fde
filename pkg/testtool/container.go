package testtool

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupContainer starts a container for an integration test and returns the
// host:port of its first exposed port. The test is skipped when no Docker
// provider is reachable.
func SetupContainer(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	if reason := dockerUnavailable(); reason != "" {
		t.Skipf("docker unavailable: %s", reason)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint %s: %v", req.Image, err)
	}
	return endpoint
}

// dockerUnavailable reports why no Docker daemon can be used, or "" when one
// answers. Host discovery panics when it finds no socket.
func dockerUnavailable() (reason string) {
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprint(r)
		}
	}()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Health closes the provider
	if err := provider.Health(ctx); err != nil {
		return err.Error()
	}
	return ""
}

func RedisRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}
}

func MongoRequest() testcontainers.ContainerRequest {
	return testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}
}
