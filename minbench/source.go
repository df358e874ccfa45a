package minbench

import (
	"math"
	"time"
)

// GenerateSource returns n pseudo-random words from a multiply-with-carry
// generator. A zero seed is replaced by the current Unix time.
func GenerateSource(n int, seed uint32) []uint32 {
	if seed == 0 {
		seed = uint32(time.Now().Unix())
	}
	a, b := seed, seed
	src := make([]uint32, n)
	for i := range src {
		b = a*(b&65535) + b>>16
		src[i] = b
	}
	return src
}

// ReferenceMin is the serial minimum of src. It returns math.MaxUint32 for
// an empty slice.
func ReferenceMin(src []uint32) uint32 {
	m := uint32(math.MaxUint32)
	for _, v := range src {
		if v < m {
			m = v
		}
	}
	return m
}
