package entity

import "strconv"

// Attribute values travel as strings in modification frames; both ends know
// the attribute's real type.

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func formatVector(v Vector3) string {
	return formatFloat(float32(v.X)) + "," + formatFloat(float32(v.Y)) + "," + formatFloat(float32(v.Z))
}
