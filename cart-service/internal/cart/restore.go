package cart

import (
	"errors"
	"strings"
)

var ErrUnknownSize = errors.New("unknown size")

// SizePolicy decides which sizes a cart may hold and returns the canonical
// spelling to store. Every size entering a Store goes through one.
type SizePolicy func(size string) (string, bool)

// AnySize accepts every non-blank size, trimmed and upper-cased.
func AnySize(size string) (string, bool) {
	size = strings.ToUpper(strings.TrimSpace(size))
	return size, size != ""
}

// KnownSizes accepts only the listed sizes, compared case-insensitively,
// and canonicalizes to upper case. With no sizes it behaves like AnySize.
func KnownSizes(sizes ...string) SizePolicy {
	if len(sizes) == 0 {
		return AnySize
	}
	known := make(map[string]struct{}, len(sizes))
	for _, s := range sizes {
		known[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return func(size string) (string, bool) {
		canonical := strings.ToUpper(strings.TrimSpace(size))
		if _, ok := known[canonical]; !ok {
			return "", false
		}
		return canonical, true
	}
}

// Restore rebuilds a Store from persisted state without trusting it:
// non-positive quantities, empty product ids and sizes rejected by policy
// are dropped. Sizes that canonicalize to the same key are merged.
func Restore(items map[string]map[string]int, policy SizePolicy) *Store {
	if policy == nil {
		policy = AnySize
	}
	s := NewStore()
	for productID, sizes := range items {
		if productID == "" {
			continue
		}
		for size, q := range sizes {
			if q <= 0 {
				continue
			}
			canonical, ok := policy(size)
			if !ok {
				continue
			}
			s.SetQuantity(productID, canonical, s.Quantity(productID, canonical)+q)
		}
	}
	s.version = 0
	return s
}
