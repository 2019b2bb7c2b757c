package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
readsb:
  host: localhost
  port: 30001
mesh:
  broker: tcp://localhost:1883
  topic: msh/US/2/json/#
share:
  output_addr: 203.0.113.7:8869
  input_port: 8869
  whitelist: [203.0.113.7]
icao:
  start: "0xADF000"
  share_start: "0xADF800"
  share_end: "0xADF8FF"
  default_alt_ft: 3900
  devices:
    "!4dc1acfe":
      icao: "0xADF001"
      name: Truck 1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "icao_map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "localhost:30001", cfg.Readsb.Addr())
	assert.Equal(t, 2, cfg.Readsb.Repeat)
	assert.Equal(t, 5*time.Second, cfg.Readsb.ConnectTimeout)
	assert.Equal(t, "msh/US/2/json/#", cfg.Mesh.Topic)
	assert.Equal(t, []string{"203.0.113.7"}, cfg.Share.Whitelist)
	assert.Equal(t, "AIRPORT", cfg.Share.Department)
	assert.Equal(t, ":9091", cfg.Metrics.Listen)
	assert.Equal(t, 3900, cfg.ICAO.DefaultAltFt)

	table := cfg.ICAO.Table()
	assert.Equal(t, uint32(0xADF000), table.Start)
	assert.Equal(t, uint32(0xADF800), table.ShareStart)
	assert.Equal(t, uint32(0xADF8FF), table.ShareEnd)
	assert.False(t, table.HasDefault)
	require.Contains(t, table.Devices, "!4dc1acfe")
	assert.Equal(t, uint32(0xADF001), table.Devices["!4dc1acfe"].Addr)
	assert.Equal(t, "Truck 1", table.Devices["!4dc1acfe"].Name)
}

func TestLoadDefaultAddress(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
readsb:
  host: localhost
icao:
  start: adf000
  share_start: adf800
  share_end: adf8ff
  default: adf7ff
  default_alt_ft: 1200
`))
	require.NoError(t, err)
	assert.True(t, cfg.ICAO.Table().HasDefault)
	assert.Equal(t, uint32(0xADF7FF), cfg.ICAO.Table().Default)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing host",
			body: `
icao:
  start: adf000
  share_start: adf800
  share_end: adf8ff
  default_alt_ft: 3900
`,
		},
		{
			name: "missing default altitude",
			body: `
readsb:
  host: localhost
icao:
  start: adf000
  share_start: adf800
  share_end: adf8ff
`,
		},
		{
			name: "inverted ranges",
			body: `
readsb:
  host: localhost
icao:
  start: adf800
  share_start: adf000
  share_end: adf8ff
  default_alt_ft: 3900
`,
		},
		{
			name: "device outside local range",
			body: `
readsb:
  host: localhost
icao:
  start: adf000
  share_start: adf800
  share_end: adf8ff
  default_alt_ft: 3900
  devices:
    "!4dc1acfe":
      icao: adf900
`,
		},
		{
			name: "address over 24 bits",
			body: `
readsb:
  host: localhost
icao:
  start: "0x1adf000"
  share_start: adf800
  share_end: adf8ff
  default_alt_ft: 3900
`,
		},
		{
			name: "mesh broker without topic",
			body: `
readsb:
  host: localhost
mesh:
  broker: tcp://localhost:1883
icao:
  start: adf000
  share_start: adf800
  share_end: adf8ff
  default_alt_ft: 3900
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
