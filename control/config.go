// control/config.go
// License: Apache-2.0
//
// Daemon configuration: YAML file format, defaults and validation, plus the
// store holding the active configuration.

package control

import (
	"fmt"
	"net/netip"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Gibheer/fastd/api"
)

// Mode is the tunnel operating mode.
type Mode string

const (
	ModeTAP Mode = "tap" // bridged, frames carry an Ethernet header
	ModeTUN Mode = "tun" // point-to-point, every frame is broadcast
)

// PeerConfig describes one configured peer.
type PeerConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Dynamic bool   `yaml:"dynamic"` // use a private socket
}

// Config holds the daemon parameters.
type Config struct {
	Mode                 Mode          `yaml:"mode"`
	Backend              string        `yaml:"backend"`
	Interface            string        `yaml:"interface"`
	MTU                  int           `yaml:"mtu"`
	MaintenanceInterval  time.Duration `yaml:"maintenance_interval"`
	HandshakeMinInterval time.Duration `yaml:"handshake_min_interval"`
	HandshakeMaxInterval time.Duration `yaml:"handshake_max_interval"`
	EthAddrStaleTime     time.Duration `yaml:"eth_addr_stale_time"`
	LogLevel             string        `yaml:"log_level"`
	CPU                  int           `yaml:"cpu"` // pin the loop thread, -1 disables
	Bind                 []string      `yaml:"bind"`
	Peers                []PeerConfig  `yaml:"peers"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Mode:                 ModeTAP,
		Backend:              DefaultBackend(),
		Interface:            "fastd0",
		MTU:                  1426,
		MaintenanceInterval:  10 * time.Second,
		HandshakeMinInterval: 2 * time.Second,
		HandshakeMaxInterval: 20 * time.Second,
		EthAddrStaleTime:     300 * time.Second,
		LogLevel:             "info",
		CPU:                  -1,
	}
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", api.ErrInvalidArgument, fmt.Sprintf(format, args...))
	}
	switch c.Mode {
	case ModeTAP, ModeTUN:
	default:
		return invalid("mode %q", c.Mode)
	}
	switch c.Backend {
	case "epoll", "poll":
	default:
		return invalid("backend %q", c.Backend)
	}
	if c.MTU <= 0 {
		return invalid("mtu %d", c.MTU)
	}
	if c.MaintenanceInterval <= 0 {
		return invalid("maintenance_interval %v", c.MaintenanceInterval)
	}
	if c.HandshakeMinInterval <= 0 || c.HandshakeMaxInterval < c.HandshakeMinInterval {
		return invalid("handshake interval %v..%v", c.HandshakeMinInterval, c.HandshakeMaxInterval)
	}
	if c.EthAddrStaleTime <= 0 {
		return invalid("eth_addr_stale_time %v", c.EthAddrStaleTime)
	}
	if c.CPU < -1 {
		return invalid("cpu %d", c.CPU)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Peers))
	for i, p := range c.Peers {
		if p.Address == "" {
			return invalid("peer %d (%s) without address", i, p.Name)
		}
		ap, err := netip.ParseAddrPort(p.Address)
		if err != nil {
			return invalid("peer %d (%s) address: %v", i, p.Name, err)
		}
		key := p.Name + "|" + netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()).String()
		if seen[key] {
			return invalid("duplicate peer %s %s", p.Name, p.Address)
		}
		seen[key] = true
	}
	return nil
}

// Store holds the active configuration and notifies listeners on change.
type Store struct {
	mu        sync.RWMutex
	cfg       *Config
	listeners []func(old, cur *Config)
}

// NewStore initializes a store with cfg.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Current returns the active configuration. It must not be modified.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the configuration and runs the listeners synchronously.
func (s *Store) Set(cfg *Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	listeners := append([]func(old, cur *Config){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(old, cfg)
	}
}

// OnReload registers a listener called after every Set.
func (s *Store) OnReload(fn func(old, cur *Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
