package http

import (
	"bufio"
	"errors"
	"strings"
)

var ErrInvalidStatus = errors.New("http: invalid response status")

var (
	crlf          = []byte("\r\n")
	statusPrefix  = []byte("HTTP/1.1 ")
	closeHeader   = []byte("Connection: close\r\n")
	lengthPrefix  = []byte("Content-Length: ")
	typePrefix    = []byte("Content-Type: ")
	headerNameSep = []byte(": ")
)

// frame carries the per-exchange decisions the serializer needs.
type frame struct {
	// head omits the body bytes while keeping its length.
	head bool
	// close announces that the connection ends after this response.
	close bool
}

// Write serializes res for a connection that stays open.
func (res *Response) Write(bw *bufio.Writer) error {
	return res.write(bw, frame{})
}

// write emits the status line, the core headers (Content-Type, then
// Content-Length from the real body length, then Connection: close when
// closing), the caller's headers in declaration order, a blank line and the
// body. Caller supplied Content-Length, Transfer-Encoding and Connection
// fields are never written.
func (res *Response) write(bw *bufio.Writer, f frame) error {
	status := res.Status
	if status == 0 {
		status = StatusOK
	}
	if status < 200 || status > 599 {
		return ErrInvalidStatus
	}

	var scratch [24]byte
	bw.Write(statusPrefix)
	bw.Write(appendInt(scratch[:0], int(status)))
	bw.WriteByte(' ')
	bw.WriteString(status.Reason())
	bw.Write(crlf)

	ct := string(res.ContentType)
	if ct == "" {
		ct = res.Headers.Get(HeaderContentType)
	}
	if ct != "" {
		bw.Write(typePrefix)
		bw.WriteString(sanitizeHeaderValue(ct))
		bw.Write(crlf)
	}

	body := res.Body
	if status.bodyAllowed() {
		bw.Write(lengthPrefix)
		bw.Write(appendInt(scratch[:0], len(body)))
		bw.Write(crlf)
	} else {
		body = nil
	}

	if f.close {
		bw.Write(closeHeader)
	}

	for _, h := range res.Headers {
		if reservedHeader(h.Name) || !validToken(h.Name) {
			continue
		}
		bw.WriteString(h.Name)
		bw.Write(headerNameSep)
		bw.WriteString(sanitizeHeaderValue(h.Value))
		bw.Write(crlf)
	}

	if _, err := bw.Write(crlf); err != nil {
		return err
	}
	if !f.head && len(body) > 0 {
		if _, err := bw.Write(body); err != nil {
			return err
		}
	}
	return nil
}

func reservedHeader(name string) bool {
	return strings.EqualFold(name, HeaderContentLength) ||
		strings.EqualFold(name, HeaderContentType) ||
		strings.EqualFold(name, HeaderTransferEncoding) ||
		strings.EqualFold(name, HeaderConnection)
}
