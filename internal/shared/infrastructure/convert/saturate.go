// Package convert narrows configuration ints to the widths library settings
// expect. Out-of-range values saturate instead of wrapping.
package convert

import "math"

func Int32(v int) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

func Uint32(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(min(uint64(v), math.MaxUint32))
}
