package cart

import (
	"math"
	"strconv"
	"strings"
)

// MinQuantity is what invalid quantity input collapses to.
const MinQuantity = 1

// ParseQuantity turns a form field into a valid quantity. Anything that is
// not a finite number >= 1 becomes MinQuantity; fractions are truncated.
func ParseQuantity(raw string) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return MinQuantity
	}
	n = math.Trunc(n)
	if n < MinQuantity {
		return MinQuantity
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// CoerceQuantity applies the minimum to an already numeric quantity.
func CoerceQuantity(n int) int {
	if n < MinQuantity {
		return MinQuantity
	}
	return n
}
