package adsb

// Mode S CRC-24 generator polynomial.
const modeSGeneratorPoly = 0xfff409

// Pre-computed byte-wise CRC table.
var crcTable [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		c := uint32(i) << 16
		for j := 0; j < 8; j++ {
			if c&0x800000 != 0 {
				c = (c << 1) ^ modeSGeneratorPoly
			} else {
				c = c << 1
			}
		}
		crcTable[i] = c & 0x00ffffff
	}
}

// Checksum computes the Mode S CRC-24 remainder over data.
//
// For a transmitted frame the last three bytes hold the remainder of the
// preceding bytes, so Checksum over a complete, uncorrupted frame is zero.
func Checksum(data []byte) uint32 {
	var rem uint32
	for _, b := range data {
		rem = (rem << 8) ^ crcTable[uint32(b)^((rem&0xff0000)>>16)]
		rem &= 0xffffff
	}
	return rem
}
