//go:build integration

// Package integration runs the pipeline against real Redis and MinIO
// containers. Tests require Docker and are gated behind the "integration"
// build tag and CDSS_INTEGRATION_TEST=1.
package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// EnvIntegrationEnabled controls whether integration tests run.
	EnvIntegrationEnabled = "CDSS_INTEGRATION_TEST"

	minioUser     = "cdss"
	minioPassword = "cdss-secret"

	startupTimeout = 90 * time.Second
)

// SkipIfNoIntegration skips the calling test when the integration flag is unset.
func SkipIfNoIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvIntegrationEnabled) == "" {
		t.Skipf("skipping integration test: set %s=1 to enable", EnvIntegrationEnabled)
	}
}

// startContainer launches req and returns host:port for exposed.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, exposed string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, nat.Port(exposed))
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

// StartRedis launches Redis 7 and returns its address.
func StartRedis(t *testing.T) string {
	t.Helper()
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(startupTimeout),
	}, "6379")
}

// StartMinIO launches a single-node MinIO server and returns its endpoint.
func StartMinIO(t *testing.T) string {
	t.Helper()
	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(startupTimeout),
	}, "9000")
}

//Personal.AI order the ending
