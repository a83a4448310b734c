package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := Chain(func(req *Request) Responder {
		seen, _ = RequestIDFrom(req.Context())
		return Text("ok")
	}, RequestIDMiddleware())

	t.Run("generated", func(t *testing.T) {
		res := h(&Request{}).Respond()
		id := res.Headers.Get(HeaderRequestID)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, seen)
	})

	t.Run("propagated", func(t *testing.T) {
		req := &Request{Headers: Headers{{HeaderRequestID, "abc-123"}}}
		res := h(req).Respond()
		assert.Equal(t, "abc-123", res.Headers.Get(HeaderRequestID))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("replaced when unsafe", func(t *testing.T) {
		for _, bad := range []string{"has space", strings.Repeat("x", 200)} {
			req := &Request{Headers: Headers{{HeaderRequestID, bad}}}
			res := h(req).Respond()
			assert.NotEqual(t, bad, res.Headers.Get(HeaderRequestID))
		}
	})

	t.Run("nil passes through", func(t *testing.T) {
		nilHandler := Chain(func(*Request) Responder { return nil }, RequestIDMiddleware())
		assert.Nil(t, nilHandler(&Request{}))
	})
}

func TestAccessLogMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(func(req *Request) Responder {
		return Text("created").WithStatus(StatusCreated)
	}, RequestIDMiddleware(), AccessLogMiddleware(logger))

	req := &Request{Method: MethodPost, Path: "/users", Pattern: "/users"}
	res := h(req).Respond()
	require.Equal(t, StatusCreated, res.Status)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, "POST", line["method"])
	assert.Equal(t, "/users", line["route"])
	assert.Equal(t, float64(201), line["status"])
	assert.Equal(t, float64(len("created")), line["bytes"])
	assert.Equal(t, res.Headers.Get(HeaderRequestID), line["request_id"])
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(req *Request) Responder {
				order = append(order, name)
				return next(req)
			}
		}
	}

	Chain(func(*Request) Responder { return StatusOK }, tag("a"), tag("b"), tag("c"))(&Request{})
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestConnInfoFromContext(t *testing.T) {
	req := &Request{}
	_, ok := ConnInfoFrom(req.Context())
	assert.False(t, ok)

	req.ctx = withConnInfo(req.Context(), ConnInfo{RemoteAddr: "10.0.0.1:5000", Requests: 2})
	info, ok := ConnInfoFrom(req.Context())
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:5000", info.RemoteAddr)
	assert.Equal(t, 2, info.Requests)
}
