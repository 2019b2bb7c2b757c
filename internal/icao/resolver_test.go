package icao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(withDefault bool) Config {
	cfg := Config{
		Start:      0xADF000,
		ShareStart: 0xADF800,
		ShareEnd:   0xADF8FF,
		Devices: map[string]Entry{
			"!4dc1acfe": {Addr: 0xADF001, Name: "Truck 1"},
			"!cafebabe": {Addr: 0xADF002, Name: "Gator 2"},
		},
	}
	if withDefault {
		cfg.Default = 0xADF7FF
		cfg.HasDefault = true
	}
	return cfg
}

func TestResolveLocal(t *testing.T) {
	r := NewResolver(testConfig(false))

	entry, err := r.ResolveLocal("!4dc1acfe")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xADF001), entry.Addr)
	assert.Equal(t, "Truck 1", entry.Name)
	assert.Equal(t, 1, r.Unit(entry.Addr))
}

func TestResolveLocalUnknown(t *testing.T) {
	r := NewResolver(testConfig(false))
	_, err := r.ResolveLocal("!deadbeef")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestResolveLocalDefaultFallback(t *testing.T) {
	r := NewResolver(testConfig(true))
	entry, err := r.ResolveLocal("!deadbeef")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xADF7FF), entry.Addr)
}

func TestResolvePeer(t *testing.T) {
	r := NewResolver(testConfig(false))

	assert.Equal(t, uint32(0xADF800), r.ResolvePeer(0))
	assert.Equal(t, uint32(0xADF805), r.ResolvePeer(5))

	// Units past the end of the shared range clamp to the last address.
	assert.Equal(t, uint32(0xADF8FF), r.ResolvePeer(0xFF))
	assert.Equal(t, uint32(0xADF8FF), r.ResolvePeer(0x100))
	assert.Equal(t, uint32(0xADF8FF), r.ResolvePeer(-1))
}

// Peer resolution never lands in the local range, even for a unit number
// whose device also has a local mapping.
func TestResolvePeerDisjointFromLocal(t *testing.T) {
	cfg := testConfig(false)
	r := NewResolver(cfg)
	for unit := 0; unit < 0x200; unit++ {
		addr := r.ResolvePeer(unit)
		assert.GreaterOrEqual(t, addr, cfg.ShareStart)
		assert.LessOrEqual(t, addr, cfg.ShareEnd)
	}
}
