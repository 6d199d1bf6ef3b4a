package testutil

import (
	"net/http"

	"sitegen/pkg/requestcontext"
)

// WithRequestID sets the request ID the way the requestid middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
