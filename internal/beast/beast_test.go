package beast

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameRoundTrip: de-escaping a framed message always reproduces the
// exact payload, timestamp, and signal byte.
func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		timestamp uint64
		signal    byte
	}{
		{
			name:      "plain payload",
			payload:   []byte{0x8d, 0xad, 0xf8, 0x00, 0x58, 0x19, 0x43, 0xbc, 0xca, 0xd0, 0xaa, 0x4f, 0xb9, 0x6b},
			timestamp: 1,
			signal:    0xC8,
		},
		{
			name:      "payload full of escape bytes",
			payload:   bytes.Repeat([]byte{0x1A}, 14),
			timestamp: 0x1A1A1A1A1A1A,
			signal:    0x1A,
		},
		{
			name:      "escape bytes at payload edges",
			payload:   []byte{0x1A, 0x00, 0xFF, 0x1A, 0x1A, 0x42, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x19, 0x1A},
			timestamp: 0xFFFFFFFFFFFF,
			signal:    0x00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := Frame(tt.payload, tt.timestamp, tt.signal)
			require.NoError(t, err)
			assert.Equal(t, byte(SyncByte), wire[0])
			assert.Equal(t, byte(ModeSLong), wire[1])

			msgs, err := NewDecoder().Decode(wire)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, byte(ModeSLong), msgs[0].MessageType)
			assert.Equal(t, tt.timestamp, msgs[0].Timestamp)
			assert.Equal(t, tt.signal, msgs[0].Signal)
			assert.Equal(t, tt.payload, msgs[0].Data)
		})
	}
}

// TestFrameEscaping checks every 0x1A after the sync byte is doubled.
func TestFrameEscaping(t *testing.T) {
	payload := bytes.Repeat([]byte{0x1A}, 14)
	wire, err := Frame(payload, 0, 0x1A)
	require.NoError(t, err)

	// sync + type + 6 timestamp + (1 signal + 14 payload) doubled.
	assert.Len(t, wire, 2+6+2*15)
	assert.Equal(t, 2*15+1, bytes.Count(wire, []byte{0x1A}))
}

// TestFrameRejectsBadLength: wrong payload size is a contract violation.
func TestFrameRejectsBadLength(t *testing.T) {
	_, err := Frame(make([]byte, 7), 0, 0)
	assert.Error(t, err)
	_, err = Frame(nil, 0, 0)
	assert.Error(t, err)
}

// TestDecoderStreaming feeds two frames byte by byte to exercise partial
// buffer handling.
func TestDecoderStreaming(t *testing.T) {
	payload1 := bytes.Repeat([]byte{0x1A}, 14)
	payload2 := []byte{0x8d, 0xad, 0xf8, 0x00, 0x58, 0x19, 0x47, 0x35, 0x61, 0x7e, 0xa5, 0x72, 0xe7, 0xdc}

	frame1, err := Frame(payload1, 41, 0x10)
	require.NoError(t, err)
	frame2, err := Frame(payload2, 42, 0x20)
	require.NoError(t, err)

	stream := append(append([]byte{}, frame1...), frame2...)
	decoder := NewDecoder()

	var got []*Message
	for _, b := range stream {
		msgs, err := decoder.Decode([]byte{b})
		require.NoError(t, err)
		got = append(got, msgs...)
	}

	require.Len(t, got, 2)
	assert.Equal(t, payload1, got[0].Data)
	assert.Equal(t, uint64(41), got[0].Timestamp)
	assert.Equal(t, payload2, got[1].Data)
	assert.Equal(t, uint64(42), got[1].Timestamp)
}

// TestDecoderOutOfSync reports garbage instead of resynchronizing over it.
func TestDecoderOutOfSync(t *testing.T) {
	_, err := NewDecoder().Decode([]byte{0x42, 0x33})
	assert.Error(t, err)
}
