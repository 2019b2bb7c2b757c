package mesh

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource() *Source {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewSource("tcp://localhost:1883", "msh/US/2/json/#", "test", logger)
}

func TestDecodePosition(t *testing.T) {
	src := newTestSource()

	payload := []byte(`{
		"from": 1304538366,
		"sender": "!4dc1acfe",
		"type": "position",
		"payload": {
			"latitude_i": 407859839,
			"longitude_i": -1192470743,
			"altitude": 1200,
			"time": 1700000000
		}
	}`)

	ev, ok := src.decode(payload)
	require.True(t, ok)
	assert.Equal(t, "!4dc1acfe", ev.DeviceID)
	assert.InDelta(t, 40.7859839, ev.Latitude, 1e-9)
	assert.InDelta(t, -119.2470743, ev.Longitude, 1e-9)
	require.True(t, ev.HasAltitude)
	wantAltFt := float64(1200) * metersToFeet
	assert.Equal(t, int(wantAltFt), ev.AltitudeFt)
	assert.Equal(t, time.Unix(1700000000, 0), ev.Timestamp)
	assert.True(t, ev.Local())
}

func TestDecodeDeviceIDFallsBackToNodeNumber(t *testing.T) {
	src := newTestSource()

	payload := []byte(`{
		"from": 1304538366,
		"type": "position",
		"payload": {"latitude_i": 407859839, "longitude_i": -1192470743}
	}`)

	ev, ok := src.decode(payload)
	require.True(t, ok)
	assert.Equal(t, "!4dc1acfe", ev.DeviceID)
	assert.False(t, ev.HasAltitude)
}

func TestDecodeSkipsNonPosition(t *testing.T) {
	src := newTestSource()

	cases := []struct {
		name    string
		payload string
	}{
		{
			name:    "telemetry packet",
			payload: `{"sender": "!4dc1acfe", "type": "telemetry", "payload": {"battery_level": 93}}`,
		},
		{
			name:    "position without coordinates",
			payload: `{"sender": "!4dc1acfe", "type": "position", "payload": {"time": 1700000000}}`,
		},
		{
			name:    "malformed json",
			payload: `{"sender": "!4dc1acfe`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := src.decode([]byte(tc.payload))
			assert.False(t, ok)
		})
	}
}

func TestDecodeUsesReceiptTimeWhenUnset(t *testing.T) {
	src := newTestSource()

	payload := []byte(`{
		"sender": "!4dc1acfe",
		"type": "position",
		"payload": {"latitude_i": 407859839, "longitude_i": -1192470743}
	}`)

	before := time.Now()
	ev, ok := src.decode(payload)
	require.True(t, ok)
	assert.False(t, ev.Timestamp.Before(before))
	assert.False(t, ev.Timestamp.After(time.Now()))
}
