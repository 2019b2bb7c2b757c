package beast

import "fmt"

// Message is one de-escaped Beast frame.
type Message struct {
	MessageType byte
	Timestamp   uint64
	Signal      byte
	Data        []byte
}

// Decoder incrementally decodes a Beast byte stream. It is the inverse of
// Frame and exists so the injection path can be verified end to end.
type Decoder struct {
	buffer []byte
}

// NewDecoder creates an empty Beast stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{buffer: make([]byte, 0, 4096)}
}

// Decode consumes raw stream bytes and returns any complete messages.
// Partial frames stay buffered for the next call.
func (d *Decoder) Decode(data []byte) ([]*Message, error) {
	d.buffer = append(d.buffer, data...)

	var messages []*Message
	for {
		msg, consumed, err := d.next()
		if err != nil {
			return messages, err
		}
		if consumed == 0 {
			break
		}
		d.buffer = d.buffer[consumed:]
		if msg != nil {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// next parses one frame from the head of the buffer. consumed is zero when
// more stream bytes are needed.
func (d *Decoder) next() (*Message, int, error) {
	buf := d.buffer
	if len(buf) < 2 {
		return nil, 0, nil
	}
	if buf[0] != SyncByte {
		return nil, 0, fmt.Errorf("beast: stream out of sync at 0x%02x", buf[0])
	}

	var payloadLen int
	switch buf[1] {
	case ModeAC:
		payloadLen = 2
	case ModeS:
		payloadLen = 7
	case ModeSLong:
		payloadLen = 14
	default:
		return nil, 0, fmt.Errorf("beast: unknown message type 0x%02x", buf[1])
	}

	// De-escape the body: timestamp, signal, payload.
	bodyLen := timestampLen + 1 + payloadLen
	body := make([]byte, 0, bodyLen)
	i := 2
	for len(body) < bodyLen {
		if i >= len(buf) {
			return nil, 0, nil // incomplete frame
		}
		b := buf[i]
		if b == SyncByte {
			if i+1 >= len(buf) {
				return nil, 0, nil
			}
			if buf[i+1] != SyncByte {
				return nil, 0, fmt.Errorf("beast: unescaped sync byte inside frame")
			}
			i++
		}
		body = append(body, b)
		i++
	}

	var timestamp uint64
	for _, b := range body[:timestampLen] {
		timestamp = timestamp<<8 | uint64(b)
	}

	return &Message{
		MessageType: buf[1],
		Timestamp:   timestamp,
		Signal:      body[timestampLen],
		Data:        body[timestampLen+1:],
	}, i, nil
}
