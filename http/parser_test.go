package http

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func parseAll(t *testing.T, p *Parser, raw string) ([]*Request, error) {
	t.Helper()
	br := bufio.NewReader(strings.NewReader(raw))
	var reqs []*Request
	for {
		req, err := p.Parse(br)
		if err == io.EOF {
			return reqs, nil
		}
		if err != nil {
			return reqs, err
		}
		reqs = append(reqs, req)
	}
}

func TestParseRequest(t *testing.T) {
	raw := "POST /users/42?verbose=1 HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		`{"name":"a"}` + "\n"

	br := bufio.NewReader(strings.NewReader(raw))
	req, err := NewParser(0, 0).Parse(br)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if req.Method != MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.Path != "/users/42" {
		t.Errorf("path = %q, want query stripped", req.Path)
	}
	if req.Proto != "HTTP/1.1" {
		t.Errorf("proto = %q", req.Proto)
	}
	if got := req.Header("host"); got != "example.com" {
		t.Errorf("host = %q", got)
	}
	if got := string(req.Body); got != "{\"name\":\"a\"}\n" {
		t.Errorf("body = %q", got)
	}
	if _, err := br.Peek(1); err != io.EOF {
		t.Errorf("parser left bytes behind: %v", err)
	}
}

func TestParseBackToBack(t *testing.T) {
	raw := "POST /a HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello" +
		"GET /b HTTP/1.1\r\n\r\n" +
		"PUT /c HTTP/1.1\r\nContent-Length: 3\r\n\r\nxyz"

	reqs, err := parseAll(t, NewParser(0, 0), raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("parsed %d requests, want 3", len(reqs))
	}

	want := []struct {
		method Method
		path   string
		body   string
	}{
		{MethodPost, "/a", "hello"},
		{MethodGet, "/b", ""},
		{MethodPut, "/c", "xyz"},
	}
	for i, w := range want {
		if reqs[i].Method != w.method || reqs[i].Path != w.path || string(reqs[i].Body) != w.body {
			t.Errorf("request %d = %s %s %q, want %s %s %q",
				i, reqs[i].Method, reqs[i].Path, reqs[i].Body, w.method, w.path, w.body)
		}
	}
}

func TestParseSkipsLeadingEmptyLines(t *testing.T) {
	reqs, err := parseAll(t, NewParser(0, 0), "\r\n\r\nGET / HTTP/1.0\r\n\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Proto != "HTTP/1.0" {
		t.Fatalf("got %+v", reqs)
	}
}

func TestParseDuplicateHeaderLastWins(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-A: 1\r\nX-B: b\r\nx-a: 2\r\n\r\n"
	reqs, err := parseAll(t, NewParser(0, 0), raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	h := reqs[0].Headers
	if len(h) != 2 {
		t.Fatalf("headers = %v, want 2 entries", h)
	}
	if h[0].Name != "X-A" || h[0].Value != "2" {
		t.Errorf("first header = %+v, want X-A: 2", h[0])
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"chunked", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n", ErrUnsupportedFraming},
		{"transfer encoding identity", "POST / HTTP/1.1\r\nTransfer-Encoding: identity\r\nContent-Length: 1\r\n\r\nx", ErrUnsupportedFraming},
		{"unknown method", "BREW / HTTP/1.1\r\n\r\n", ErrMalformed},
		{"lowercase method", "get / HTTP/1.1\r\n\r\n", ErrMalformed},
		{"absolute target", "GET http://x/ HTTP/1.1\r\n\r\n", ErrMalformed},
		{"http2", "GET / HTTP/2.0\r\n\r\n", ErrMalformed},
		{"missing proto", "GET /\r\n\r\n", ErrMalformed},
		{"double space", "GET  / HTTP/1.1\r\n\r\n", ErrMalformed},
		{"bare LF", "GET / HTTP/1.1\n\n", ErrMalformed},
		{"bare CR", "GET / HTTP/1.1\r\nX: a\rb\r\n\r\n", ErrMalformed},
		{"no colon", "GET / HTTP/1.1\r\nHost\r\n\r\n", ErrMalformed},
		{"space before colon", "GET / HTTP/1.1\r\nHost : x\r\n\r\n", ErrMalformed},
		{"obs fold", "GET / HTTP/1.1\r\nX: a\r\n b\r\n\r\n", ErrMalformed},
		{"negative length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", ErrMalformed},
		{"length list", "POST / HTTP/1.1\r\nContent-Length: 1, 1\r\n\r\nx", ErrMalformed},
		{"length overflow", "POST / HTTP/1.1\r\nContent-Length: 99999999999999999999\r\n\r\n", ErrMalformed},
		{"duplicate length", "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 1\r\n\r\nx", ErrMalformed},
		{"short body", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc", ErrPeerClosed},
		{"truncated head", "GET / HTTP/1.1\r\nHost: x\r\n", ErrPeerClosed},
		{"too many empty lines", "\r\n\r\n\r\n\r\n\r\nGET / HTTP/1.1\r\n\r\n", ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(0, 0).Parse(bufio.NewReader(strings.NewReader(tt.raw)))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseLimits(t *testing.T) {
	p := NewParser(32, 2)

	_, err := p.Parse(bufio.NewReader(strings.NewReader("GET /" + strings.Repeat("a", 40) + " HTTP/1.1\r\n\r\n")))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != LineOrHeaderTooLarge || !pe.RequestLine {
		t.Fatalf("long request line: err = %v", err)
	}

	_, err = p.Parse(bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nX: " + strings.Repeat("v", 40) + "\r\n\r\n")))
	if !errors.As(err, &pe) || pe.Kind != LineOrHeaderTooLarge || pe.RequestLine {
		t.Fatalf("long header: err = %v", err)
	}

	_, err = p.Parse(bufio.NewReader(strings.NewReader("GET / HTTP/1.1\r\nA: 1\r\nB: 2\r\nC: 3\r\n\r\n")))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("too many headers: err = %v", err)
	}

	// A line of exactly the limit is accepted.
	line := "GET /" + strings.Repeat("a", 32-len("GET / HTTP/1.1")) + " HTTP/1.1"
	if len(line) != 32 {
		t.Fatalf("test line is %d bytes", len(line))
	}
	if _, err := p.Parse(bufio.NewReader(strings.NewReader(line + "\r\n\r\n"))); err != nil {
		t.Fatalf("line at limit: %v", err)
	}
}

func TestParseLineSpanningBuffer(t *testing.T) {
	// bufio's minimum buffer is 16 bytes, so the header below arrives in
	// several ReadSlice chunks.
	raw := "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("z", 100) + "\r\n\r\n"
	req, err := NewParser(0, 0).Parse(bufio.NewReaderSize(strings.NewReader(raw), 16))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := req.Header("X-Long"); got != strings.Repeat("z", 100) {
		t.Fatalf("X-Long = %q", got)
	}
}

func TestParseCleanEOF(t *testing.T) {
	_, err := NewParser(0, 0).Parse(bufio.NewReader(strings.NewReader("")))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestParseHeaderValueTrimmed(t *testing.T) {
	reqs, err := parseAll(t, NewParser(0, 0), "GET / HTTP/1.1\r\nX-Pad: \t value \t\r\n\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := reqs[0].Header("x-pad"); got != "value" {
		t.Fatalf("X-Pad = %q", got)
	}
}

func TestRequestKeepAlive(t *testing.T) {
	tests := []struct {
		proto, conn string
		want        bool
	}{
		{"HTTP/1.1", "", true},
		{"HTTP/1.1", "close", false},
		{"HTTP/1.1", "Upgrade, Close", false},
		{"HTTP/1.0", "", false},
		{"HTTP/1.0", "Keep-Alive", true},
	}
	for _, tt := range tests {
		req := &Request{Proto: tt.proto}
		if tt.conn != "" {
			req.Headers.Set(HeaderConnection, tt.conn)
		}
		if got := req.KeepAlive(); got != tt.want {
			t.Errorf("%s Connection=%q: KeepAlive = %v, want %v", tt.proto, tt.conn, got, tt.want)
		}
	}
}

func BenchmarkParse(b *testing.B) {
	raw := "GET /users/42?x=1 HTTP/1.1\r\nHost: localhost\r\nUser-Agent: bench\r\nAccept: */*\r\n\r\n"
	r := strings.NewReader(raw)
	br := bufio.NewReader(r)
	p := NewParser(0, 0)

	for b.Loop() {
		r.Reset(raw)
		br.Reset(r)
		if _, err := p.Parse(br); err != nil {
			b.Fatal(err)
		}
	}
}
