// Package fracindex generates lexicographically ordered fractional-index
// keys. KeyBetween deterministically produces a string sorting strictly
// between two neighbors, so inserting or reordering an entry never requires
// rewriting the keys of its siblings.
package fracindex

import (
	"errors"
	"fmt"
	"strings"
)

// digits is the key alphabet in ASCII order. Generated keys never end in
// the minimum digit, which guarantees a key-before always exists for any
// key this package has produced.
const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var mid = string(digits[len(digits)/2])

var ErrInvalidBounds = errors.New("fracindex: invalid bounds")

// KeyBetween returns a key k with a < k < b. An empty a means no lower
// bound and an empty b means no upper bound; with both empty it returns the
// midpoint of the key space.
func KeyBetween(a, b string) (string, error) {
	if a != "" {
		if err := checkKey(a); err != nil {
			return "", err
		}
	}
	if b != "" {
		if err := checkKey(b); err != nil {
			return "", err
		}
	}
	switch {
	case a == "" && b == "":
		return mid, nil
	case a == "":
		return keyBefore(b)
	case b == "":
		return keyAfter(a), nil
	case a >= b:
		return "", fmt.Errorf("%w: %q is not below %q", ErrInvalidBounds, a, b)
	}
	return between(a, b)
}

func checkKey(k string) error {
	for i := 0; i < len(k); i++ {
		if strings.IndexByte(digits, k[i]) < 0 {
			return fmt.Errorf("%w: %q contains byte %q", ErrInvalidBounds, k, k[i])
		}
	}
	if k[len(k)-1] == digits[0] {
		return fmt.Errorf("%w: %q ends in the minimum digit", ErrInvalidBounds, k)
	}
	return nil
}

// keyAfter returns a short key greater than a: the first non-maximal digit
// is bumped and the rest truncated, or the midpoint digit is appended when
// every digit is maximal.
func keyAfter(a string) string {
	for i := 0; i < len(a); i++ {
		d := strings.IndexByte(digits, a[i])
		if d < len(digits)-1 {
			return a[:i] + string(digits[d+1])
		}
	}
	return a + mid
}

// keyBefore returns a key less than b that does not end in the minimum
// digit (so further keys below it remain constructible).
func keyBefore(b string) (string, error) {
	for i := 0; i < len(b); i++ {
		d := strings.IndexByte(digits, b[i])
		if d > 1 {
			return b[:i] + string(digits[d-1]), nil
		}
		if d == 1 {
			return b[:i] + string(digits[0]) + mid, nil
		}
	}
	// All minimum digits. Keys like this are never generated here.
	return "", fmt.Errorf("%w: no key below %q", ErrInvalidBounds, b)
}

// between returns the midpoint of two non-empty keys with a < b.
func between(a, b string) (string, error) {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	prefix := a[:i]

	if i == len(a) {
		// a is a strict prefix of b; any non-empty key below b's
		// remainder fits.
		s, err := keyBefore(b[i:])
		if err != nil {
			return "", err
		}
		return prefix + s, nil
	}

	// a < b rules out b being a strict prefix of a, so both have a digit
	// at i and a's sorts lower.
	da := strings.IndexByte(digits, a[i])
	db := strings.IndexByte(digits, b[i])
	if db-da > 1 {
		return prefix + string(digits[(da+db)/2]), nil
	}
	// Adjacent digits: keep a's digit and climb above a's remainder.
	return prefix + string(digits[da]) + keyAfter(a[i+1:]), nil
}
