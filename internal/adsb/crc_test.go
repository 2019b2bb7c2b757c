package adsb

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChecksumKnownFrame checks the CRC against a published DF17 frame.
func TestChecksumKnownFrame(t *testing.T) {
	frame, err := hex.DecodeString("8d4840d6202cc371c32ce0576098")
	require.NoError(t, err)

	// Remainder over a complete valid frame is zero.
	assert.Equal(t, uint32(0), Checksum(frame))

	// Remainder over the first 88 bits is the parity field itself.
	assert.Equal(t, uint32(0x576098), Checksum(frame[:11]))
}

// TestChecksumDetectsSingleBitErrors flips every payload bit of a valid
// frame and checks the remainder is no longer zero.
func TestChecksumDetectsSingleBitErrors(t *testing.T) {
	frame, err := BuildAirbornePosition(0xADF800, 3900, CPREncoding{
		Format: FormatEven,
		LatCPR: 122469,
		LonCPR: 53418,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(0), Checksum(frame[:]))

	for bit := 0; bit < 88; bit++ {
		corrupted := frame
		corrupted[bit/8] ^= 1 << (7 - bit%8)
		assert.NotEqualf(t, uint32(0), Checksum(corrupted[:]),
			"flipping bit %d went undetected", bit)
	}
}
