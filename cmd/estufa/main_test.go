package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// clearBrokerEnv makes sure the host environment cannot configure a broker.
func clearBrokerEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MQTT_URL", "MQTT_PORT", "MQTT_USERNAME", "MQTT_PASSWORD",
		"ESTUFA_MQTT_HOST", "ESTUFA_MQTT_PORT", "ESTUFA_MQTT_USERNAME", "ESTUFA_MQTT_PASSWORD",
		"ESTUFA_DATABASE_PATH", "ESTUFA_API_HOST", "ESTUFA_API_PORT",
	} {
		t.Setenv(name, "")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close() //nolint:errcheck // Only reserving a port number
	return port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("ESTUFA_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("ESTUFA_CONFIG", "/etc/estufa/config.yaml")
	if got := getConfigPath(); got != "/etc/estufa/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

func TestRun_MissingJWTSecret(t *testing.T) {
	clearBrokerEnv(t)
	t.Setenv("ESTUFA_JWT_SECRET", "")
	t.Setenv("ESTUFA_CONFIG", writeConfig(t, fmt.Sprintf(`
database:
  path: %q
`, filepath.Join(t.TempDir(), "estufa.db"))))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() error = nil, want validation error")
	}
}

func TestRun_MalformedConfig(t *testing.T) {
	t.Setenv("ESTUFA_CONFIG", writeConfig(t, "database: [unterminated"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() error = nil, want parse error")
	}
}

// TestRun_WithoutBroker starts the service with no broker settings and
// checks the API answers until shutdown.
func TestRun_WithoutBroker(t *testing.T) {
	clearBrokerEnv(t)
	port := freePort(t)
	t.Setenv("ESTUFA_JWT_SECRET", testJWTSecret)
	t.Setenv("ESTUFA_CONFIG", writeConfig(t, fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: ""
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
  output: stdout
influxdb:
  enabled: false
`, filepath.Join(t.TempDir(), "estufa.db"), port)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	var healthy bool
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:gosec,noctx // Test-local URL
		if err == nil {
			resp.Body.Close() //nolint:errcheck // Test
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if !healthy {
		t.Error("health endpoint never answered 200")
	}
}
