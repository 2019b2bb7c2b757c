// Package share relays position events between peer instances over UDP.
// The wire format is one JSON object per datagram.
package share

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eastham/mesh-adsb/internal/metrics"
	"github.com/eastham/mesh-adsb/internal/pipeline"
)

// Datagrams at or above this size are dropped as malformed.
const maxDatagram = 1024

// Record is one shared location observation as it appears on the wire.
type Record struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltFtMSL   int     `json:"alt_ft_msl"`
	Timestamp  int64   `json:"timestamp"`
	Department string  `json:"department"`
	UnitNo     int     `json:"unit_no"`
	Name       string  `json:"name"`
}

// NewRecord builds a wire record, defaulting the name from the department
// and unit number when none is known.
func NewRecord(department string, unit int, name string, lat, lon float64, altFt int, ts time.Time) Record {
	if name == "" {
		name = fmt.Sprintf("%s_%d", department, unit)
	}
	return Record{
		Lat:        lat,
		Lon:        lon,
		AltFtMSL:   altFt,
		Timestamp:  ts.Unix(),
		Department: department,
		UnitNo:     unit,
		Name:       name,
	}
}

// Event converts a received record into a peer-tagged position event.
func (rec Record) Event(peerIP string) pipeline.PositionEvent {
	return pipeline.PositionEvent{
		DeviceID:    fmt.Sprintf("%s_%d", rec.Department, rec.UnitNo),
		Latitude:    rec.Lat,
		Longitude:   rec.Lon,
		AltitudeFt:  rec.AltFtMSL,
		HasAltitude: true,
		Peer:        peerIP,
		Unit:        rec.UnitNo,
		Name:        rec.Name,
		Timestamp:   time.Unix(rec.Timestamp, 0),
	}
}

// Sender transmits records to one peer endpoint.
type Sender struct {
	conn    *net.UDPConn
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewSender dials the peer endpoint. DialUDP selects a suitable local
// address automatically.
func NewSender(addr string, m *metrics.Metrics, logger *logrus.Logger) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("share: resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("share: dial %s: %w", addr, err)
	}
	return &Sender{conn: conn, logger: logger, metrics: m}, nil
}

// Send relays one record. Failures are counted and returned, never fatal.
func (s *Sender) Send(rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.metrics.SharesSendErrors.Inc()
		return fmt.Errorf("share: encode record: %w", err)
	}
	if _, err := s.conn.Write(payload); err != nil {
		s.metrics.SharesSendErrors.Inc()
		return fmt.Errorf("share: send record: %w", err)
	}
	s.metrics.SharesSent.Inc()
	return nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

// Receiver accepts shared locations from whitelisted peers and re-injects
// them as peer-tagged position events.
type Receiver struct {
	conn      *net.UDPConn
	whitelist map[string]struct{}
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

// NewReceiver binds the share input port. An empty whitelist accepts any
// sender.
func NewReceiver(port int, whitelist []string, m *metrics.Metrics, logger *logrus.Logger) (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("share: listen on %d: %w", port, err)
	}
	allowed := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		allowed[ip] = struct{}{}
	}
	return &Receiver{conn: conn, whitelist: allowed, logger: logger, metrics: m}, nil
}

// Run reads datagrams until ctx is cancelled, delivering accepted events.
// Datagrams from non-whitelisted senders are discarded silently: that is a
// security boundary, not an error.
func (r *Receiver) Run(ctx context.Context, events chan<- pipeline.PositionEvent) {
	go func() {
		<-ctx.Done()
		_ = r.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.WithError(err).Info("Share receive error")
			r.metrics.SharesRejected.Inc()
			continue
		}

		ev, ok := r.accept(buf[:n], addr.IP.String())
		if !ok {
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// accept validates one datagram, enforcing the whitelist before anything
// else touches the payload.
func (r *Receiver) accept(payload []byte, peerIP string) (pipeline.PositionEvent, bool) {
	if len(r.whitelist) > 0 {
		if _, ok := r.whitelist[peerIP]; !ok {
			r.metrics.SharesRejected.Inc()
			return pipeline.PositionEvent{}, false
		}
	}
	if len(payload) >= maxDatagram {
		r.metrics.SharesRejected.Inc()
		return pipeline.PositionEvent{}, false
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		r.logger.WithError(err).Info("Discarding malformed share datagram")
		r.metrics.SharesRejected.Inc()
		return pipeline.PositionEvent{}, false
	}

	r.metrics.SharesReceived.Inc()
	return rec.Event(peerIP), true
}
