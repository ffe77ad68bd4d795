package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/device-inventory/internal/api"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// writeTestConfig writes a config with MQTT and InfluxDB disabled and
// points INVENTORY_CONFIG at it.
func writeTestConfig(t *testing.T, dbPath string, port int) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	content := fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: %d

logging:
  level: warn
  format: text
  output: stderr

security:
  jwt:
    secret: %q
  bootstrap:
    username: admin
    password: changeme123
`, dbPath, port, testJWTSecret)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("INVENTORY_CONFIG", configPath)
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("INVENTORY_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingJWTSecret verifies config validation stops startup.
func TestRun_MissingJWTSecret(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "database:\n  path: " + filepath.Join(t.TempDir(), "x.db") + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("INVENTORY_CONFIG", configPath)
	t.Setenv("INVENTORY_JWT_SECRET", "")

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail without a JWT secret")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("INVENTORY_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("INVENTORY_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHealthCheck(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name       string
		db         api.HealthChecker
		components map[string]api.HealthChecker
		wantErr    bool
	}{
		{name: "database only", db: stubChecker{}},
		{name: "all healthy", db: stubChecker{}, components: map[string]api.HealthChecker{"mqtt": stubChecker{}}},
		{name: "database down", db: stubChecker{err: down}, wantErr: true},
		{name: "component down", db: stubChecker{}, components: map[string]api.HealthChecker{"influxdb": stubChecker{err: down}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := healthCheck(context.Background(), tt.db, tt.components)
			if (err != nil) != tt.wantErr {
				t.Errorf("healthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the service with optional
// integrations disabled, checks the health endpoint and shuts down.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	port := freePort(t)
	writeTestConfig(t, filepath.Join(t.TempDir(), "test.db"), port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", port)
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(healthURL) //nolint:gosec,noctx // test URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("health status = %d, want 200", resp.StatusCode)
			}
			break
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error on shutdown: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}
