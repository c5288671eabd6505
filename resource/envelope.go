package resource

// ClientResponse is the success envelope of every client-scoped endpoint. The
// piggybacked Client is the authoritative post-request snapshot; a nil Client
// means the backend reset it.
type ClientResponse[T any] struct {
	Response T       `json:"response"`
	Client   *Client `json:"client"`
}

// ClientOrEmpty returns the piggybacked client, or an empty Client when the
// response carried none.
func (r *ClientResponse[T]) ClientOrEmpty() *Client {
	if r == nil || r.Client == nil {
		return &Client{}
	}
	return r.Client
}

// ErrorResponse is the error envelope of non-2xx responses.
type ErrorResponse struct {
	Errors  []Error `json:"errors"`
	TraceID string  `json:"clerk_trace_id,omitempty"`
}

// Error is one structured error reported by the backend.
type Error struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	LongMessage string         `json:"long_message,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

func (e Error) clone() Error {
	if e.Meta == nil {
		return e
	}
	meta := make(map[string]any, len(e.Meta))
	for k, v := range e.Meta {
		meta[k] = v
	}
	e.Meta = meta
	return e
}

// TokenResponse is the body of the session tokens endpoint.
type TokenResponse struct {
	Object string `json:"object,omitempty"`
	JWT    string `json:"jwt"`
}
