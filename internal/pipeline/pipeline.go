// Package pipeline turns decoded position events into wire-ready pairs of
// Beast-framed DF17 airborne position frames.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eastham/mesh-adsb/internal/adsb"
	"github.com/eastham/mesh-adsb/internal/beast"
	"github.com/eastham/mesh-adsb/internal/icao"
	"github.com/eastham/mesh-adsb/internal/metrics"
)

// PositionEvent is one decoded position report. Events are immutable once
// produced; the transports create them and the pipeline consumes each one
// exactly once.
type PositionEvent struct {
	DeviceID  string
	Latitude  float64
	Longitude float64

	AltitudeFt  int
	HasAltitude bool

	// Peer is the relaying peer's IP for shared positions, empty for
	// positions heard directly off the mesh.
	Peer string
	// Unit and Name ride along on peer-relayed records.
	Unit int
	Name string

	Timestamp time.Time
}

// Local reports whether the event was heard directly rather than relayed.
func (ev PositionEvent) Local() bool {
	return ev.Peer == ""
}

// FramePair is one emission round: the even frame followed by the odd
// frame, both built from the same fix, plus the resolved identity the
// caller needs for relaying and bookkeeping.
type FramePair struct {
	Even []byte
	Odd  []byte

	Addr  uint32
	Unit  int
	Name  string
	AltFt int // altitude actually encoded, after defaulting
}

// Frames returns the pair in emission order, even before odd.
func (fp *FramePair) Frames() [][]byte {
	return [][]byte{fp.Even, fp.Odd}
}

// DeviceFrameState records the last emission for one device.
type DeviceFrameState struct {
	LastFormat   adsb.CPRFormat
	LastEmission time.Time
}

// Pipeline resolves, encodes, and frames position events. It owns the
// per-device emission state; everything else it touches is pure.
type Pipeline struct {
	resolver     *icao.Resolver
	defaultAltFt int
	logger       *logrus.Logger
	metrics      *metrics.Metrics

	// signal level placeholder; no RF signal strength exists here.
	signalLevel byte

	mu      sync.Mutex
	devices map[string]*DeviceFrameState
	tick    uint64
}

// New creates a pipeline. defaultAltFt fills in for events that carry no
// altitude.
func New(resolver *icao.Resolver, defaultAltFt int, m *metrics.Metrics, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		resolver:     resolver,
		defaultAltFt: defaultAltFt,
		logger:       logger,
		metrics:      m,
		signalLevel:  0xC8,
		devices:      make(map[string]*DeviceFrameState),
	}
}

// Handle processes one position event. It returns the even/odd frame pair
// ready for injection, or (nil, nil) when the event is for an unmapped
// device — an expected condition that is counted and skipped. A non-nil
// error indicates a contract violation upstream (bad config or resolver
// logic), never network noise.
//
// Both CPR halves are always computed from the same fix, so a receiver
// sees a fresh, mutually consistent pair on every emission and no
// waiting-for-the-other-half state exists.
func (p *Pipeline) Handle(ev PositionEvent) (*FramePair, error) {
	p.metrics.PacketsReceived.Inc()

	pair := &FramePair{Unit: ev.Unit, Name: ev.Name}
	if ev.Local() {
		entry, err := p.resolver.ResolveLocal(ev.DeviceID)
		if errors.Is(err, icao.ErrUnknownDevice) {
			p.metrics.DevicesUnresolved.Inc()
			p.logger.WithField("device", ev.DeviceID).Info("No ICAO mapping for device, dropping position")
			return nil, nil
		}
		pair.Addr = entry.Addr
		pair.Name = entry.Name
		pair.Unit = p.resolver.Unit(entry.Addr)
	} else {
		pair.Addr = p.resolver.ResolvePeer(ev.Unit)
	}
	p.metrics.DevicesResolved.Inc()

	altFt := ev.AltitudeFt
	if !ev.HasAltitude {
		altFt = p.defaultAltFt
	}
	pair.AltFt = altFt

	evenEnc, oddEnc := adsb.EncodeCPR(ev.Latitude, ev.Longitude)

	evenFrame, err := adsb.BuildAirbornePosition(pair.Addr, altFt, evenEnc)
	if err != nil {
		return nil, fmt.Errorf("build even frame for %s: %w", ev.DeviceID, err)
	}
	oddFrame, err := adsb.BuildAirbornePosition(pair.Addr, altFt, oddEnc)
	if err != nil {
		return nil, fmt.Errorf("build odd frame for %s: %w", ev.DeviceID, err)
	}

	// Update shared state before the caller's blocking write, never during.
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	p.mu.Lock()
	evenTick := p.tick + 1
	oddTick := p.tick + 2
	p.tick += 2
	state, ok := p.devices[ev.DeviceID]
	if !ok {
		state = &DeviceFrameState{}
		p.devices[ev.DeviceID] = state
	}
	state.LastFormat = adsb.FormatOdd
	state.LastEmission = now
	p.mu.Unlock()

	if pair.Even, err = beast.Frame(evenFrame[:], evenTick, p.signalLevel); err != nil {
		return nil, err
	}
	if pair.Odd, err = beast.Frame(oddFrame[:], oddTick, p.signalLevel); err != nil {
		return nil, err
	}

	p.metrics.PositionsDecoded.Inc()
	p.logger.WithFields(logrus.Fields{
		"device": ev.DeviceID,
		"icao":   fmt.Sprintf("%06X", pair.Addr),
		"lat":    ev.Latitude,
		"lon":    ev.Longitude,
		"alt_ft": altFt,
	}).Debug("Encoded position frame pair")

	return pair, nil
}

// DeviceState returns a copy of the emission state for a device id.
func (p *Pipeline) DeviceState(deviceID string) (DeviceFrameState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.devices[deviceID]
	if !ok {
		return DeviceFrameState{}, false
	}
	return *state, true
}
