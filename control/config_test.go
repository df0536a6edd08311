package control

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gibheer/fastd/api"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("interface: tap7\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Interface != "tap7" {
		t.Errorf("interface = %q", cfg.Interface)
	}
	if cfg.Mode != ModeTAP || cfg.MTU != 1426 || cfg.MaintenanceInterval != 10*time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Backend != DefaultBackend() {
		t.Errorf("backend = %q", cfg.Backend)
	}
	if cfg.CPU != -1 {
		t.Errorf("cpu = %d, want unpinned", cfg.CPU)
	}
}

func TestParseConfigFull(t *testing.T) {
	doc := `
mode: tun
backend: poll
mtu: 1280
maintenance_interval: 5s
handshake_min_interval: 1s
handshake_max_interval: 8s
eth_addr_stale_time: 2m
log_level: debug
cpu: 0
bind: ["0.0.0.0:10000"]
peers:
  - name: alpha
    address: 192.0.2.1:10000
  - name: beta
    address: "[2001:db8::1]:10000"
    dynamic: true
`
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Mode != ModeTUN || cfg.Backend != "poll" || cfg.MTU != 1280 || cfg.CPU != 0 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.EthAddrStaleTime != 2*time.Minute || cfg.HandshakeMaxInterval != 8*time.Second {
		t.Errorf("durations not decoded: %+v", cfg)
	}
	if len(cfg.Peers) != 2 || !cfg.Peers[1].Dynamic || cfg.Peers[0].Name != "alpha" {
		t.Errorf("peers = %+v", cfg.Peers)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"mode", "mode: bridge\n"},
		{"backend", "backend: kqueue\n"},
		{"mtu", "mtu: 0\n"},
		{"handshake", "handshake_min_interval: 10s\nhandshake_max_interval: 1s\n"},
		{"level", "log_level: loud\n"},
		{"cpu", "cpu: -2\n"},
		{"peer", "peers:\n  - name: x\n"},
		{"peer address", "peers:\n  - {name: x, address: \"192.0.2.1\"}\n"},
		{"duplicate peer", "peers:\n  - {name: x, address: \"192.0.2.1:1\"}\n  - {name: x, address: \"[::ffff:192.0.2.1]:1\"}\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(c.doc))
			if !errors.Is(err, api.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestStoreListeners(t *testing.T) {
	s := NewStore(DefaultConfig())
	var gotOld, gotCur *Config
	s.OnReload(func(old, cur *Config) { gotOld, gotCur = old, cur })

	first := s.Current()
	next := DefaultConfig()
	next.MTU = 1000
	s.Set(next)
	if gotOld != first || gotCur != next {
		t.Fatal("listener not called with old and new config")
	}
	if s.Current().MTU != 1000 {
		t.Fatal("store did not switch config")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger("warn", &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if lvl, _ := ParseLevel("verbose"); lvl != zerolog.DebugLevel {
		t.Fatalf("verbose = %v", lvl)
	}
	if _, err := NewLogger("nope", &buf); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected invalid level error, got %v", err)
	}
}

func TestMetricsAndHooks(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Add(MetricTunnelFrames, 2)
	mr.Add(MetricTunnelFrames, 3)
	mr.Set(MetricBytesForwarded, 2048)
	if mr.Get(MetricTunnelFrames) != 5 {
		t.Fatalf("frames = %d", mr.Get(MetricTunnelFrames))
	}

	dp := NewDebugHooks()
	dp.RegisterMetrics(mr)
	RegisterPlatformHooks(dp)
	names := dp.Names()
	if len(names) != 3 || names[0] != "metrics" {
		t.Fatalf("names = %v", names)
	}
	m := dp.DumpState()["metrics"].(map[string]any)
	if m[MetricTunnelFrames] != int64(5) {
		t.Fatalf("metrics hook = %v", m)
	}
	if _, ok := m[MetricBytesForwarded].(string); !ok {
		t.Fatalf("bytes not rendered: %v", m[MetricBytesForwarded])
	}
}

func TestWatchConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fastd.yaml")
	if err := os.WriteFile(path, []byte("mtu: 1400\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed := make(chan struct{}, 8)
	w, err := WatchConfig(path, zerolog.Nop(), func() { changed <- struct{}{} })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("mtu: 1300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
