package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	// maxLeadingEmptyLines bounds the stray CRLFs tolerated before a
	// request line (RFC 9112, 2.2).
	maxLeadingEmptyLines = 4
	// initialBodyBuffer caps the up-front allocation for a body so a large
	// declared Content-Length only costs memory as bytes actually arrive.
	initialBodyBuffer = 64 * 1024
)

// Parser reads requests off a buffered stream. A Parser holds scratch
// space and must not be shared between connections.
type Parser struct {
	MaxLineLength int
	MaxHeaders    int

	line []byte
}

func NewParser(maxLineLength, maxHeaders int) *Parser {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	if maxHeaders <= 0 {
		maxHeaders = DefaultMaxHeaders
	}
	return &Parser{
		MaxLineLength: maxLineLength,
		MaxHeaders:    maxHeaders,
		line:          make([]byte, 0, 256),
	}
}

// Parse reads exactly one request, body included, and leaves br positioned
// at the first byte after it. It returns io.EOF when the stream ends before
// any byte of a new request arrived, a *ParseError when the bytes do not form
// an acceptable request, and an *IoError when the underlying read fails.
func (p *Parser) Parse(br *bufio.Reader) (*Request, error) {
	req := &Request{}

	line, err := p.readRequestLine(br)
	if err != nil {
		return nil, err
	}
	if err := p.parseRequestLine(req, line); err != nil {
		return nil, err
	}

	length, err := p.readHeaders(br, req)
	if err != nil {
		return nil, err
	}

	if length > 0 {
		body, err := readBody(br, length)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}

	return req, nil
}

func (p *Parser) readRequestLine(br *bufio.Reader) ([]byte, error) {
	for skipped := 0; ; skipped++ {
		line, err := p.readLine(br, true)
		if err != nil {
			return nil, err
		}
		if len(line) > 0 {
			return line, nil
		}
		if skipped == maxLeadingEmptyLines {
			return nil, malformed("too many empty lines before request line")
		}
	}
}

func (p *Parser) parseRequestLine(req *Request, line []byte) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return malformed("request line %q", truncate(line))
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return malformed("request line %q", truncate(line))
	}
	method, target, proto := line[:sp1], rest[:sp2], rest[sp2+1:]

	if !validToken(method) {
		return malformed("invalid method token")
	}
	m, ok := ParseMethod(string(method))
	if !ok {
		return malformed("unknown method %q", truncate(method))
	}
	req.Method = m

	if len(target) == 0 || target[0] != '/' {
		return malformed("request target must be in origin form")
	}
	for _, c := range target {
		if c <= ' ' || c == 0x7f {
			return malformed("invalid byte in request target")
		}
	}
	// The query component never takes part in routing.
	path, _, _ := bytes.Cut(target, []byte{'?'})
	req.Path = string(path)

	switch string(proto) {
	case protocolHttp11:
		req.Proto = protocolHttp11
	case protocolHttp10:
		req.Proto = protocolHttp10
	default:
		return malformed("unsupported protocol %q", truncate(proto))
	}
	return nil
}

// readHeaders fills req.Headers and returns the declared body length.
func (p *Parser) readHeaders(br *bufio.Reader, req *Request) (int64, error) {
	var (
		length     int64
		haveLength bool
		chunked    bool
	)

	for count := 0; ; count++ {
		line, err := p.readLine(br, false)
		if err != nil {
			return 0, err
		}
		if len(line) == 0 {
			break
		}
		if count == p.MaxHeaders {
			return 0, &ParseError{Kind: LineOrHeaderTooLarge, Reason: "too many header fields"}
		}
		if line[0] == ' ' || line[0] == '\t' {
			return 0, malformed("obsolete line folding")
		}

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return 0, malformed("header line without separator")
		}
		name, value := line[:colon], trimOWS(line[colon+1:])
		// Also rejects whitespace between the name and the colon.
		if !validToken(name) {
			return 0, malformed("invalid header name %q", truncate(name))
		}
		if !validFieldValue(value) {
			return 0, malformed("invalid byte in header %q", name)
		}

		switch {
		case bytes.EqualFold(name, []byte(HeaderContentLength)):
			if haveLength {
				return 0, malformed("duplicate Content-Length")
			}
			n, err := parseContentLength(value)
			if err != nil {
				return 0, &ParseError{Kind: Malformed, Reason: "Content-Length " + string(truncate(value)), Err: err}
			}
			length, haveLength = n, true
		case bytes.EqualFold(name, []byte(HeaderTransferEncoding)):
			chunked = true
		}

		req.Headers.Set(string(name), string(value))
	}

	if chunked {
		return 0, &ParseError{Kind: UnsupportedFraming, Reason: "Transfer-Encoding is not supported"}
	}
	return length, nil
}

// readLine returns one CRLF terminated line without the terminator. The
// slice is only valid until the next call.
func (p *Parser) readLine(br *bufio.Reader, requestLine bool) ([]byte, error) {
	p.line = p.line[:0]
	limit := p.MaxLineLength + 2

	for {
		chunk, err := br.ReadSlice('\n')
		if len(p.line)+len(chunk) > limit {
			reason := "header line exceeds limit"
			if requestLine {
				reason = "request line exceeds limit"
			}
			return nil, &ParseError{Kind: LineOrHeaderTooLarge, Reason: reason, RequestLine: requestLine}
		}
		p.line = append(p.line, chunk...)

		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if requestLine && len(p.line) == 0 {
				return nil, io.EOF
			}
			return nil, &ParseError{Kind: PeerClosed, Reason: "stream ended inside request head"}
		}
		return nil, &IoError{Op: ConnectionReset, Err: err}
	}

	n := len(p.line)
	if n < 2 || p.line[n-2] != '\r' {
		return nil, malformed("line not terminated by CRLF")
	}
	line := p.line[:n-2]
	if bytes.IndexByte(line, '\r') >= 0 {
		return nil, malformed("bare CR in line")
	}
	return line, nil
}

func readBody(br *bufio.Reader, n int64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(min(n, initialBodyBuffer)))

	if _, err := io.CopyN(&buf, br, n); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &ParseError{Kind: PeerClosed, Reason: "stream ended before declared body was received"}
		}
		return nil, &IoError{Op: ConnectionReset, Err: err}
	}
	return buf.Bytes(), nil
}

func truncate(b []byte) []byte {
	const limit = 64
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
