package model

import (
	"net/http"
	"time"
)

// Request is the transport-agnostic request passed to a webclient backend.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the raw result of executing a Request.
type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}
