package beast

import "fmt"

// Beast wire protocol markers.
const (
	SyncByte  = 0x1A // frame start and escape byte
	ModeAC    = 0x31 // Mode A/C
	ModeS     = 0x32 // Mode S short (56 bits)
	ModeSLong = 0x33 // Mode S long (112 bits)
)

const (
	timestampLen = 6
	modeSLongLen = 14
)

// Frame wraps a 14-byte Mode S long frame in the Beast binary transport
// format: sync byte, type marker, 6-byte big-endian timestamp, one signal
// level byte, then the payload. Every 0x1A after the sync byte is doubled
// per the Beast escaping rule.
//
// The timestamp is a monotonic tick counter; downstream ingest does not
// validate absolute time. Malformed payload length is a contract violation.
func Frame(payload []byte, timestamp uint64, signal byte) ([]byte, error) {
	if len(payload) != modeSLongLen {
		return nil, fmt.Errorf("beast: mode s long payload must be %d bytes, got %d",
			modeSLongLen, len(payload))
	}

	// Worst case every body byte escapes.
	out := make([]byte, 0, 2+2*(timestampLen+1+modeSLongLen))
	out = append(out, SyncByte, ModeSLong)

	for i := timestampLen - 1; i >= 0; i-- {
		out = appendEscaped(out, byte(timestamp>>(8*i)))
	}
	out = appendEscaped(out, signal)
	for _, b := range payload {
		out = appendEscaped(out, b)
	}
	return out, nil
}

func appendEscaped(out []byte, b byte) []byte {
	if b == SyncByte {
		return append(out, SyncByte, SyncByte)
	}
	return append(out, b)
}
