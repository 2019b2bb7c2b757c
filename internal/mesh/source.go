// Package mesh adapts the mesh network's position uplink into position
// events. Positions arrive as Meshtastic JSON packets over MQTT.
package mesh

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/eastham/mesh-adsb/internal/pipeline"
)

const metersToFeet = 3.28084

// packet is the subset of the Meshtastic JSON uplink we consume.
type packet struct {
	From    uint32          `json:"from"`
	Sender  string          `json:"sender"`
	Type    string          `json:"type"`
	Payload positionPayload `json:"payload"`
}

// positionPayload carries coordinates as degrees scaled by 1e7 and
// altitude in meters, per the Meshtastic position packet.
type positionPayload struct {
	LatitudeI  int64 `json:"latitude_i"`
	LongitudeI int64 `json:"longitude_i"`
	AltitudeM  *int  `json:"altitude"`
	Time       int64 `json:"time"`
}

// Source subscribes to a Meshtastic JSON topic and emits position events.
type Source struct {
	broker   string
	topic    string
	clientID string
	logger   *logrus.Logger
}

func NewSource(broker, topic, clientID string, logger *logrus.Logger) *Source {
	return &Source{
		broker:   broker,
		topic:    topic,
		clientID: clientID,
		logger:   logger,
	}
}

// Run connects to the broker and delivers decoded positions until ctx is
// cancelled. Non-position packets and packets without a usable location
// are skipped; the MQTT client reconnects on its own.
func (s *Source) Run(ctx context.Context, events chan<- pipeline.PositionEvent) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.broker).
		SetClientID(s.clientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(client mqtt.Client) {
			s.logger.WithFields(logrus.Fields{
				"broker": s.broker,
				"topic":  s.topic,
			}).Info("Connected to mesh MQTT broker")
			client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
				s.handleMessage(ctx, msg.Payload(), events)
			})
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mesh: connect %s: %w", s.broker, token.Error())
	}

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func (s *Source) handleMessage(ctx context.Context, payload []byte, events chan<- pipeline.PositionEvent) {
	ev, ok := s.decode(payload)
	if !ok {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// decode parses one uplink packet into a position event.
func (s *Source) decode(payload []byte) (pipeline.PositionEvent, bool) {
	var pkt packet
	if err := json.Unmarshal(payload, &pkt); err != nil {
		s.logger.WithError(err).Debug("Skipping unparseable mesh packet")
		return pipeline.PositionEvent{}, false
	}
	if pkt.Type != "position" {
		return pipeline.PositionEvent{}, false
	}
	if pkt.Payload.LatitudeI == 0 && pkt.Payload.LongitudeI == 0 {
		s.logger.Debug("Position packet without coordinates, skipping")
		return pipeline.PositionEvent{}, false
	}

	deviceID := pkt.Sender
	if deviceID == "" {
		deviceID = fmt.Sprintf("!%08x", pkt.From)
	}

	ev := pipeline.PositionEvent{
		DeviceID:  deviceID,
		Latitude:  float64(pkt.Payload.LatitudeI) * 1e-7,
		Longitude: float64(pkt.Payload.LongitudeI) * 1e-7,
		Timestamp: time.Now(),
	}
	if pkt.Payload.Time > 0 {
		ev.Timestamp = time.Unix(pkt.Payload.Time, 0)
	}
	if pkt.Payload.AltitudeM != nil {
		ev.AltitudeFt = int(float64(*pkt.Payload.AltitudeM) * metersToFeet)
		ev.HasAltitude = true
	}
	return ev, true
}
