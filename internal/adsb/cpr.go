package adsb

import "math"

// CPR quantization constants.
const (
	cprLatBits = 17
	cprLonBits = 17
	cprScale   = 131072.0 // 2^17
	cprMask    = 0x1FFFF
)

// CPRFormat selects the even or odd CPR frame format.
type CPRFormat uint8

const (
	FormatEven CPRFormat = 0
	FormatOdd  CPRFormat = 1
)

// CPREncoding holds one quantized 17-bit latitude/longitude pair.
type CPREncoding struct {
	Format CPRFormat
	LatCPR uint32
	LonCPR uint32
}

// EncodeCPR produces the even and odd CPR encodings for a position. Both
// halves are computed from the same fix; a receiver needs the pair to
// resolve an unambiguous global position.
func EncodeCPR(lat, lon float64) (even, odd CPREncoding) {
	even = encodeCPR(lat, lon, FormatEven)
	odd = encodeCPR(lat, lon, FormatOdd)
	return even, odd
}

func encodeCPR(lat, lon float64, format CPRFormat) CPREncoding {
	i := float64(format) // 0 even, 1 odd

	// Latitude zone width: 60 zones even, 59 odd.
	dlat := 360.0 / (60.0 - i)
	yz := math.Floor(cprScale*cprMod(lat, dlat)/dlat + 0.5)

	// Latitude the receiver will reconstruct from yz; it selects the
	// longitude zone count.
	rlat := dlat * (yz/cprScale + math.Floor(lat/dlat))

	// Near the poles NL-1 reaches zero for the odd format; a single zone
	// spanning the full circle applies there.
	dlon := 360.0
	if nl := cprNL(rlat) - int(i); nl > 0 {
		dlon = 360.0 / float64(nl)
	}
	xz := math.Floor(cprScale*cprMod(lon, dlon)/dlon + 0.5)

	return CPREncoding{
		Format: format,
		LatCPR: uint32(int64(yz)) & cprMask,
		LonCPR: uint32(int64(xz)) & cprMask,
	}
}

// cprMod is the always-positive floating point modulus used by CPR.
func cprMod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

// cprModInt is the always-positive integer modulus (dump1090 style).
func cprModInt(a, b int) int {
	res := a % b
	if res < 0 {
		res += b
	}
	return res
}

// DecodeCPRPair performs the global CPR decode over a mutually consistent
// even/odd encoding pair, returning the position carried by the odd half.
// ok is false when the pair straddles a latitude zone boundary and cannot
// be jointly resolved.
func DecodeCPRPair(even, odd CPREncoding) (lat, lon float64, ok bool) {
	const airDlat0 = 360.0 / 60.0
	const airDlat1 = 360.0 / 59.0

	lat0 := float64(even.LatCPR)
	lat1 := float64(odd.LatCPR)
	lon0 := float64(even.LonCPR)
	lon1 := float64(odd.LonCPR)

	// Latitude index j.
	j := int(math.Floor(((59*lat0 - 60*lat1) / cprScale) + 0.5))

	rlat0 := airDlat0 * (float64(cprModInt(j, 60)) + lat0/cprScale)
	rlat1 := airDlat1 * (float64(cprModInt(j, 59)) + lat1/cprScale)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if rlat0 < -90 || rlat0 > 90 || rlat1 < -90 || rlat1 > 90 {
		return 0, 0, false
	}

	// Both halves must sit in the same longitude zone band.
	if cprNL(rlat0) != cprNL(rlat1) {
		return 0, 0, false
	}

	ni := cprNL(rlat1) - 1
	if ni < 1 {
		ni = 1
	}
	m := int(math.Floor((((lon0 * float64(cprNL(rlat1)-1)) -
		(lon1 * float64(cprNL(rlat1)))) / cprScale) + 0.5))
	rlon := (360.0 / float64(ni)) * (float64(cprModInt(m, ni)) + lon1/cprScale)

	// Renormalize longitude to -180 .. +180.
	rlon -= math.Floor((rlon+180)/360) * 360

	return rlat1, rlon, true
}

// cprNL returns the number of even-format longitude zones for a latitude,
// per the ICAO NL lookup table. Latitudes at or beyond 87 degrees collapse
// to a single zone.
func cprNL(lat float64) int {
	absLat := math.Abs(lat)

	switch {
	case absLat < 10.47047130:
		return 59
	case absLat < 14.82817437:
		return 58
	case absLat < 18.18626357:
		return 57
	case absLat < 21.02939493:
		return 56
	case absLat < 23.54504487:
		return 55
	case absLat < 25.82924707:
		return 54
	case absLat < 27.93898710:
		return 53
	case absLat < 29.91135686:
		return 52
	case absLat < 31.77209708:
		return 51
	case absLat < 33.53993436:
		return 50
	case absLat < 35.22899598:
		return 49
	case absLat < 36.85025108:
		return 48
	case absLat < 38.41241892:
		return 47
	case absLat < 39.92256684:
		return 46
	case absLat < 41.38651832:
		return 45
	case absLat < 42.80914012:
		return 44
	case absLat < 44.19454951:
		return 43
	case absLat < 45.54626723:
		return 42
	case absLat < 46.86733252:
		return 41
	case absLat < 48.16039128:
		return 40
	case absLat < 49.42776439:
		return 39
	case absLat < 50.67150166:
		return 38
	case absLat < 51.89342469:
		return 37
	case absLat < 53.09516153:
		return 36
	case absLat < 54.27817472:
		return 35
	case absLat < 55.44378444:
		return 34
	case absLat < 56.59318756:
		return 33
	case absLat < 57.72747354:
		return 32
	case absLat < 58.84763776:
		return 31
	case absLat < 59.95459277:
		return 30
	case absLat < 61.04917774:
		return 29
	case absLat < 62.13216659:
		return 28
	case absLat < 63.20427479:
		return 27
	case absLat < 64.26616523:
		return 26
	case absLat < 65.31845310:
		return 25
	case absLat < 66.36171008:
		return 24
	case absLat < 67.39646774:
		return 23
	case absLat < 68.42322022:
		return 22
	case absLat < 69.44242631:
		return 21
	case absLat < 70.45451075:
		return 20
	case absLat < 71.45986473:
		return 19
	case absLat < 72.45884545:
		return 18
	case absLat < 73.45177442:
		return 17
	case absLat < 74.43893416:
		return 16
	case absLat < 75.42056257:
		return 15
	case absLat < 76.39684391:
		return 14
	case absLat < 77.36789461:
		return 13
	case absLat < 78.33374083:
		return 12
	case absLat < 79.29428225:
		return 11
	case absLat < 80.24923213:
		return 10
	case absLat < 81.19801349:
		return 9
	case absLat < 82.13956981:
		return 8
	case absLat < 83.07199445:
		return 7
	case absLat < 83.99173563:
		return 6
	case absLat < 84.89166191:
		return 5
	case absLat < 85.75541621:
		return 4
	case absLat < 86.53536998:
		return 3
	case absLat < 87.00000000:
		return 2
	default:
		return 1
	}
}
