package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/device-inventory/internal/infrastructure/config"
	"github.com/nerrad567/device-inventory/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records the line protocol posted to /write.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
	srv    *httptest.Server
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/write"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "inventory-test-token",
		Org:           "inventory",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(srv.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClient_WriteAndFlush(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(fake.srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	client.WriteInventoryStats(influxdb.InventoryStats{Total: 3, Available: 2, Issued: 1, AddedThisMonth: 3}, at)
	client.WriteDeviceEvent("device.issued", "AUV-1", true, at)
	client.Flush()

	body := fake.body()
	for _, want := range []string{
		"inventory_stats ",
		"total=3i",
		"issued=1i",
		"added_this_month=3i",
		"device_events,event=device.issued ",
		`device_id="AUV-1"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("written line protocol missing %q:\n%s", want, body)
		}
	}
}

func TestClient_Close(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), testConfig(fake.srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after close are dropped silently.
	client.WriteInventoryStats(influxdb.InventoryStats{Total: 1}, time.Now())
	client.Flush()
}
