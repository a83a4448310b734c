package http

import (
	"slices"
	"testing"
)

func TestHeaders(t *testing.T) {
	var h Headers
	h.Set("Content-Type", "text/plain")
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	h.Set("content-type", "application/json")

	if got := h.Get("CONTENT-TYPE"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
	if !slices.Equal(h.Names(), []string{"Content-Type", "Set-Cookie", "Set-Cookie"}) {
		t.Fatalf("names = %v", h.Names())
	}

	h.Del("set-cookie")
	if h.Has("Set-Cookie") || len(h) != 1 {
		t.Fatalf("after Del: %v", h)
	}
	if _, ok := h.Lookup("missing"); ok {
		t.Fatal("Lookup found a missing header")
	}
}

func TestHeaderCarrier(t *testing.T) {
	h := Headers{{"Traceparent", "00-abc-def-01"}}
	c := headerCarrier{h: &h}

	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("Get = %q", got)
	}
	c.Set("baggage", "k=v")
	if !slices.Equal(c.Keys(), []string{"Traceparent", "baggage"}) {
		t.Fatalf("keys = %v", c.Keys())
	}
}

func TestValidToken(t *testing.T) {
	for _, s := range []string{"GET", "X-Request-Id", "a!#$%&'*+-.^_`|~z"} {
		if !validToken(s) {
			t.Errorf("%q rejected", s)
		}
	}
	for _, s := range []string{"", "a b", "a:b", "a\tb", "é"} {
		if validToken(s) {
			t.Errorf("%q accepted", s)
		}
	}
}

func TestSanitizeHeaderValue(t *testing.T) {
	tests := map[string]string{
		"plain":          "plain",
		"tab\tinside":    "tab\tinside",
		"crlf\r\nX: y":   "crlfX: y",
		"nul\x00del\x7f": "nuldel",
	}
	for in, want := range tests {
		if got := sanitizeHeaderValue(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseContentLength(t *testing.T) {
	good := map[string]int64{"0": 0, "42": 42, "007": 7, "9223372036854775807": 1<<63 - 1}
	for in, want := range good {
		n, err := parseContentLength([]byte(in))
		if err != nil || n != want {
			t.Errorf("%q = %d, %v", in, n, err)
		}
	}
	for _, in := range []string{"", "+1", "-1", "1 ", "0x10", "9223372036854775808"} {
		if _, err := parseContentLength([]byte(in)); err == nil {
			t.Errorf("%q accepted", in)
		}
	}
}

func TestMethodRoundTrip(t *testing.T) {
	for m := Method(1); int(m) < methodCount; m++ {
		got, ok := ParseMethod(m.String())
		if !ok || got != m {
			t.Errorf("ParseMethod(%q) = %v, %v", m.String(), got, ok)
		}
	}
	if _, ok := ParseMethod("get"); ok {
		t.Error("lowercase method accepted")
	}
	if Method(0).String() != "UNKNOWN" {
		t.Errorf("zero method = %q", Method(0).String())
	}
}

func TestStatus(t *testing.T) {
	if StatusNotFound.String() != "404 Not Found" {
		t.Errorf("String = %q", StatusNotFound.String())
	}
	if Status(299).Reason() != "" || Status(299).String() != "299" {
		t.Errorf("unregistered status = %q", Status(299).String())
	}
	for _, s := range []Status{StatusContinue, StatusSwitchingProtocols, StatusNoContent, StatusNotModified} {
		if s.bodyAllowed() {
			t.Errorf("%d allows a body", s)
		}
	}
	if !StatusOK.bodyAllowed() || !StatusNotFound.bodyAllowed() {
		t.Error("200/404 disallow a body")
	}
}
