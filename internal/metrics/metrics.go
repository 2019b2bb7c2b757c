// Package metrics exposes the service counters over a Prometheus endpoint.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the counters the pipeline and transports increment.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived   prometheus.Counter
	PositionsDecoded  prometheus.Counter
	DevicesResolved   prometheus.Counter
	DevicesUnresolved prometheus.Counter
	FramesInjected    prometheus.Counter
	InjectFailures    prometheus.Counter
	Reconnects        prometheus.Counter
	SharesSent        prometheus.Counter
	SharesSendErrors  prometheus.Counter
	SharesReceived    prometheus.Counter
	SharesRejected    prometheus.Counter
}

// New creates and registers the counter set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mesh_adsb",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		registry:          reg,
		PacketsReceived:   counter("packets_received_total", "Position packets received from all sources"),
		PositionsDecoded:  counter("positions_decoded_total", "Positions successfully encoded into frame pairs"),
		DevicesResolved:   counter("devices_resolved_total", "Device ids resolved to an ICAO address"),
		DevicesUnresolved: counter("devices_unresolved_total", "Device ids with no ICAO mapping, dropped"),
		FramesInjected:    counter("frames_injected_total", "Beast frames delivered to readsb"),
		InjectFailures:    counter("inject_failures_total", "Frame pair deliveries that failed after retries"),
		Reconnects:        counter("reconnects_total", "Reconnection attempts to readsb"),
		SharesSent:        counter("shares_sent_total", "Location records relayed to peers"),
		SharesSendErrors:  counter("shares_send_errors_total", "Location relay send failures"),
		SharesReceived:    counter("shares_received_total", "Location records accepted from peers"),
		SharesRejected:    counter("shares_rejected_total", "Peer datagrams discarded by whitelist or parse failure"),
	}
}

// Serve exposes the registry over HTTP until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *logrus.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("Metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
