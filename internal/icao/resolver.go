// Package icao maps opaque mesh device identifiers onto the reserved
// 24-bit ICAO address block this deployment owns.
package icao

import "errors"

// ErrUnknownDevice reports a device id with no configured mapping and no
// default-address policy. Expected for unmapped devices; callers count and
// skip.
var ErrUnknownDevice = errors.New("icao: no address mapping for device")

// Entry is one configured device mapping.
type Entry struct {
	Addr uint32 // assigned 24-bit address within the local range
	Name string // familiar name, may be empty
}

// Config is the static address plan, validated once at load time.
// Local addresses live in [Start, ShareStart); addresses derived for
// peer-relayed positions live in [ShareStart, ShareEnd], keeping the two
// populations collision-free.
type Config struct {
	Start      uint32
	ShareStart uint32
	ShareEnd   uint32

	// Optional fallback for device ids with no mapping.
	Default    uint32
	HasDefault bool

	Devices map[string]Entry
}

// Resolver performs deterministic device-id to address lookups. It holds
// no mutable state.
type Resolver struct {
	cfg Config
}

func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// ResolveLocal maps a locally heard device id to its configured address,
// falling back to the default address when one is configured.
func (r *Resolver) ResolveLocal(deviceID string) (Entry, error) {
	if entry, ok := r.cfg.Devices[deviceID]; ok {
		return entry, nil
	}
	if r.cfg.HasDefault {
		return Entry{Addr: r.cfg.Default}, nil
	}
	return Entry{}, ErrUnknownDevice
}

// ResolvePeer derives an address in the shared range for a peer-relayed
// position. Peer positions never map into the local range, even when the
// same device also has a local mapping; units past the end of the range
// clamp to the last shared address.
func (r *Resolver) ResolvePeer(unit int) uint32 {
	addr := r.cfg.ShareStart + uint32(unit)
	if unit < 0 || addr > r.cfg.ShareEnd {
		return r.cfg.ShareEnd
	}
	return addr
}

// Unit returns the unit number a local address represents: its offset from
// the start of the local range.
func (r *Resolver) Unit(addr uint32) int {
	return int(addr - r.cfg.Start)
}
