// Package config loads and validates the YAML deployment configuration:
// the readsb injection target, the device-id to ICAO address plan, the UDP
// location sharing peers, and the mesh transport settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eastham/mesh-adsb/internal/icao"
)

type Config struct {
	Readsb  ReadsbConfig  `yaml:"readsb"`
	Mesh    MeshConfig    `yaml:"mesh"`
	Share   ShareConfig   `yaml:"share"`
	ICAO    ICAOConfig    `yaml:"icao"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracker TrackerConfig `yaml:"tracker"`
}

type ReadsbConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Repeat         int           `yaml:"repeat"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// Addr returns the readsb ingest endpoint in host:port form.
func (r ReadsbConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type MeshConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type ShareConfig struct {
	OutputAddr string   `yaml:"output_addr"`
	InputPort  int      `yaml:"input_port"`
	Whitelist  []string `yaml:"whitelist"`
	Department string   `yaml:"department"`
}

type DeviceConfig struct {
	ICAO string `yaml:"icao"`
	Name string `yaml:"name"`
}

type ICAOConfig struct {
	Start        string                  `yaml:"start"`
	ShareStart   string                  `yaml:"share_start"`
	ShareEnd     string                  `yaml:"share_end"`
	Default      string                  `yaml:"default"`
	DefaultAltFt int                     `yaml:"default_alt_ft"`
	Devices      map[string]DeviceConfig `yaml:"devices"`

	table icao.Config
}

// Table returns the validated, typed address plan for the resolver.
func (c ICAOConfig) Table() icao.Config {
	return c.table
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type TrackerConfig struct {
	Path         string        `yaml:"path"`
	MaxSize      int           `yaml:"max_size"`
	SaveInterval time.Duration `yaml:"save_interval"`
}

// Load reads, unmarshals, and validates the configuration file. Hex ICAO
// strings are converted to typed addresses once here; the rest of the
// program deals only in validated values.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Readsb.Host == "" {
		return Config{}, fmt.Errorf("readsb.host is required")
	}
	if cfg.Readsb.Port == 0 {
		cfg.Readsb.Port = 30001
	}
	if cfg.Readsb.Repeat <= 0 {
		cfg.Readsb.Repeat = 2 // tar1090 needs the pair twice to render promptly
	}
	if cfg.Readsb.ConnectTimeout <= 0 {
		cfg.Readsb.ConnectTimeout = 5 * time.Second
	}
	if cfg.Readsb.WriteTimeout <= 0 {
		cfg.Readsb.WriteTimeout = 5 * time.Second
	}

	if cfg.Mesh.Broker != "" && cfg.Mesh.Topic == "" {
		return Config{}, fmt.Errorf("mesh.topic is required when mesh.broker is set")
	}
	if cfg.Mesh.ClientID == "" {
		cfg.Mesh.ClientID = "mesh-adsb"
	}

	if cfg.Share.Department == "" {
		cfg.Share.Department = "AIRPORT"
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9091"
	}

	if cfg.Tracker.MaxSize <= 0 {
		cfg.Tracker.MaxSize = 100
	}
	if cfg.Tracker.SaveInterval <= 0 {
		cfg.Tracker.SaveInterval = time.Minute
	}

	table, err := cfg.ICAO.buildTable()
	if err != nil {
		return Config{}, err
	}
	cfg.ICAO.table = table

	return cfg, nil
}

func (c *ICAOConfig) buildTable() (icao.Config, error) {
	var table icao.Config
	var err error

	if table.Start, err = parseAddr(c.Start); err != nil {
		return table, fmt.Errorf("icao.start: %w", err)
	}
	if table.ShareStart, err = parseAddr(c.ShareStart); err != nil {
		return table, fmt.Errorf("icao.share_start: %w", err)
	}
	if table.ShareEnd, err = parseAddr(c.ShareEnd); err != nil {
		return table, fmt.Errorf("icao.share_end: %w", err)
	}
	if table.Start >= table.ShareStart || table.ShareStart > table.ShareEnd {
		return table, fmt.Errorf("icao ranges must satisfy start < share_start <= share_end")
	}

	if c.Default != "" {
		if table.Default, err = parseAddr(c.Default); err != nil {
			return table, fmt.Errorf("icao.default: %w", err)
		}
		table.HasDefault = true
	}

	if c.DefaultAltFt == 0 {
		return table, fmt.Errorf("icao.default_alt_ft is required")
	}

	table.Devices = make(map[string]icao.Entry, len(c.Devices))
	for id, dev := range c.Devices {
		addr, err := parseAddr(dev.ICAO)
		if err != nil {
			return table, fmt.Errorf("icao.devices[%s]: %w", id, err)
		}
		if addr < table.Start || addr >= table.ShareStart {
			return table, fmt.Errorf("icao.devices[%s]: address %06X outside local range", id, addr)
		}
		table.Devices[id] = icao.Entry{Addr: addr, Name: dev.Name}
	}

	return table, nil
}

// parseAddr parses a 24-bit hex address, with or without a 0x prefix.
func parseAddr(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("address is required")
	}
	hex := strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q", s)
	}
	if v > 0xFFFFFF {
		return 0, fmt.Errorf("address %q exceeds 24 bits", s)
	}
	return uint32(v), nil
}
