package adsb

import "errors"

// FrameLen is the length of a Mode S long (112-bit) frame in bytes.
const FrameLen = 14

// DF17 airborne position frame constants.
const (
	downlinkFormatExtSquitter = 17
	capabilityAirborne        = 5  // airborne, ADS-B capable
	typeCodeAirbornePosBaro   = 11 // airborne position, barometric altitude
)

// Altitude sub-field limits for the 25 ft encoding.
const (
	MinAltitudeFt = -1000
	MaxAltitudeFt = 50175
)

// Contract violations surfaced by BuildAirbornePosition. These indicate an
// upstream bug (bad config or resolver logic), not network noise.
var (
	ErrAddressOutOfRange  = errors.New("adsb: icao address exceeds 24 bits")
	ErrAltitudeOutOfRange = errors.New("adsb: altitude outside encodable range")
)

// BuildAirbornePosition assembles a 112-bit DF17 airborne position frame
// carrying one CPR-encoded half of a position fix. The final three bytes
// hold the CRC-24 remainder of the preceding 88 bits, so the frame checks
// out as zero under Checksum.
func BuildAirbornePosition(icao uint32, altFt int, enc CPREncoding) ([FrameLen]byte, error) {
	var frame [FrameLen]byte

	if icao > 0xFFFFFF {
		return frame, ErrAddressOutOfRange
	}
	ac12, err := encodeAltitude(altFt)
	if err != nil {
		return frame, err
	}

	frame[0] = downlinkFormatExtSquitter<<3 | capabilityAirborne
	frame[1] = byte(icao >> 16)
	frame[2] = byte(icao >> 8)
	frame[3] = byte(icao)

	// ME field: TC(5) SS(2) NICsb(1) ALT(12) T(1) F(1) LAT(17) LON(17).
	frame[4] = typeCodeAirbornePosBaro << 3
	frame[5] = byte(ac12 >> 4)
	frame[6] = byte(ac12&0x0F)<<4 | byte(enc.Format)<<2 | byte(enc.LatCPR>>15)&0x03
	frame[7] = byte(enc.LatCPR >> 7)
	frame[8] = byte(enc.LatCPR&0x7F)<<1 | byte(enc.LonCPR>>16)&0x01
	frame[9] = byte(enc.LonCPR >> 8)
	frame[10] = byte(enc.LonCPR)

	parity := Checksum(frame[:11])
	frame[11] = byte(parity >> 16)
	frame[12] = byte(parity >> 8)
	frame[13] = byte(parity)

	return frame, nil
}

// encodeAltitude packs an altitude into the 12-bit AC12 sub-field with the
// Q-bit set: an 11-bit count of 25 ft increments above -1000 ft, split
// around the Q-bit. Receivers decode with the matching table, so the bit
// layout must be exact or the displayed altitude is silently wrong.
func encodeAltitude(altFt int) (uint16, error) {
	if altFt < MinAltitudeFt || altFt > MaxAltitudeFt {
		return 0, ErrAltitudeOutOfRange
	}
	n := uint16((altFt + 1000 + 12) / 25) // nearest 25 ft increment
	return (n&0x7F0)<<1 | 0x010 | n&0x00F, nil
}

// DecodeAltitude recovers the altitude in feet from a DF17 AC12 sub-field.
// Only the 25 ft (Q-bit) encoding produced by encodeAltitude is handled.
func DecodeAltitude(ac12 uint16) int {
	n := (ac12&0x0FE0)>>1 | ac12&0x000F
	return int(n)*25 - 1000
}

// FrameICAO extracts the 24-bit address from a built frame.
func FrameICAO(frame [FrameLen]byte) uint32 {
	return uint32(frame[1])<<16 | uint32(frame[2])<<8 | uint32(frame[3])
}

// FrameCPR extracts the altitude sub-field and CPR encoding from a built
// airborne position frame.
func FrameCPR(frame [FrameLen]byte) (ac12 uint16, enc CPREncoding) {
	ac12 = uint16(frame[5])<<4 | uint16(frame[6])>>4
	enc.Format = CPRFormat(frame[6] >> 2 & 0x01)
	enc.LatCPR = uint32(frame[6]&0x03)<<15 | uint32(frame[7])<<7 | uint32(frame[8])>>1
	enc.LonCPR = uint32(frame[8]&0x01)<<16 | uint32(frame[9])<<8 | uint32(frame[10])
	return ac12, enc
}
