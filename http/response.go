package http

// ContentType designates the Content-Type header of a response.
type ContentType string

const (
	ContentTypeNone        ContentType = ""
	ContentTypeText        ContentType = "text/plain; charset=utf-8"
	ContentTypeHTML        ContentType = "text/html; charset=utf-8"
	ContentTypeJSON        ContentType = "application/json"
	ContentTypeOctetStream ContentType = "application/octet-stream"
)

// Response is a complete, length-framed response. Content-Length is always
// computed from Body when serialized.
type Response struct {
	Status      Status
	Headers     Headers
	ContentType ContentType
	Body        []byte
}

// Respond makes Response usable as a handler result.
func (res Response) Respond() Response {
	return res
}

// Text is 200 OK with a text/plain body.
func Text(body string) Response {
	return Response{Status: StatusOK, ContentType: ContentTypeText, Body: []byte(body)}
}

// JSON is 200 OK with an application/json body. The caller serializes.
func JSON(body []byte) Response {
	return Response{Status: StatusOK, ContentType: ContentTypeJSON, Body: body}
}

// HTML is 200 OK with a text/html body.
func HTML(body string) Response {
	return Response{Status: StatusOK, ContentType: ContentTypeHTML, Body: []byte(body)}
}

// Bytes is 200 OK with an application/octet-stream body.
func Bytes(body []byte) Response {
	return Response{Status: StatusOK, ContentType: ContentTypeOctetStream, Body: body}
}

// Empty is a response without content.
func Empty(status Status) Response {
	return Response{Status: status}
}

func (res Response) WithStatus(status Status) Response {
	res.Status = status
	return res
}

// WithHeader appends a header. Headers are written in the order added.
func (res Response) WithHeader(name, value string) Response {
	res.Headers = append(res.Headers[:len(res.Headers):len(res.Headers)], Header{Name: name, Value: value})
	return res
}

func (res Response) WithContentType(ct ContentType) Response {
	res.ContentType = ct
	return res
}

func (res Response) WithBody(ct ContentType, body []byte) Response {
	res.ContentType = ct
	res.Body = body
	return res
}

func (res Response) WithText(body string) Response {
	return res.WithBody(ContentTypeText, []byte(body))
}

func (res Response) WithJSON(body []byte) Response {
	return res.WithBody(ContentTypeJSON, body)
}

func (res Response) WithHTML(body string) Response {
	return res.WithBody(ContentTypeHTML, []byte(body))
}

// errorResponse is what the engine answers for protocol and routing errors.
func errorResponse(status Status) Response {
	return Text(status.Reason()).WithStatus(status)
}
