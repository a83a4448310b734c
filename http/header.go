package http

import "strings"

// Header is a single name/value field.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered list of fields. Names compare case-insensitively.
//
// Request headers hold at most one entry per name: when a name repeats on
// the wire the last value wins and keeps the position of the first
// occurrence.
type Headers []Header

// Get returns the value stored for name.
func (h Headers) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup returns the value stored for name and whether it was present.
func (h Headers) Lookup(name string) (string, bool) {
	if i := h.index(name); i >= 0 {
		return h[i].Value, true
	}
	return "", false
}

// Has reports whether name is present.
func (h Headers) Has(name string) bool {
	return h.index(name) >= 0
}

// Set replaces the value of name in place, or appends it.
func (h *Headers) Set(name, value string) {
	if i := h.index(name); i >= 0 {
		(*h)[i].Value = value
		return
	}
	*h = append(*h, Header{Name: name, Value: value})
}

// Add appends a field even when name is already present. Useful for
// response fields like Set-Cookie that may repeat.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Del removes every field named name.
func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Names returns the field names in order.
func (h Headers) Names() []string {
	names := make([]string, len(h))
	for i, f := range h {
		names[i] = f.Name
	}
	return names
}

func (h Headers) index(name string) int {
	for i := range h {
		if strings.EqualFold(h[i].Name, name) {
			return i
		}
	}
	return -1
}

// headerCarrier exposes Headers to OpenTelemetry propagators.
type headerCarrier struct {
	h *Headers
}

func (c headerCarrier) Get(key string) string {
	return c.h.Get(key)
}

func (c headerCarrier) Set(key, value string) {
	c.h.Set(key, value)
}

func (c headerCarrier) Keys() []string {
	return c.h.Names()
}

// tokenTable marks bytes allowed in a field name (RFC 9110 tchar).
var tokenTable = func() (t [256]bool) {
	for c := '0'; c <= '9'; c++ {
		t[c] = true
	}
	for c := 'a'; c <= 'z'; c++ {
		t[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		t[c] = true
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		t[c] = true
	}
	return t
}()

func validToken[T string | []byte](s T) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !tokenTable[s[i]] {
			return false
		}
	}
	return true
}

// validFieldValue rejects CR, LF, NUL and other controls except HTAB.
func validFieldValue(s []byte) bool {
	for _, c := range s {
		if (c < 0x20 && c != '\t') || c == 0x7f {
			return false
		}
	}
	return true
}

// sanitizeHeaderValue strips bytes that would break response framing.
func sanitizeHeaderValue(v string) string {
	clean := true
	for i := 0; i < len(v); i++ {
		if c := v[i]; (c < 0x20 && c != '\t') || c == 0x7f {
			clean = false
			break
		}
	}
	if clean {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
