package http

import (
	"errors"
	"math"
)

var errInvalidLength = errors.New("invalid content length")

// parseContentLength accepts only a non-empty run of ASCII digits that fits
// in an int64. Signs, whitespace and lists are rejected.
func parseContentLength(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errInvalidLength
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, errInvalidLength
		}
		d := int64(c - '0')
		if n > (math.MaxInt64-d)/10 {
			return 0, errInvalidLength
		}
		n = n*10 + d
	}
	return n, nil
}

// appendInt writes n in decimal without allocation.
func appendInt(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, '0')
	}

	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = '0' + byte(n%10)
		n /= 10
	}

	return append(dst, buf[i:]...)
}

// trimOWS strips optional whitespace (SP and HTAB) from both ends.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}
