package constant

// HTTP headers.
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderContentType = "Content-Type"
	HeaderTraceparent = "traceparent"
)
