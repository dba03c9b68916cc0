package testutil

import (
	"net/http"

	"grc/pkg/requestcontext"
)

// WithPersonID marks the request as made by the given person, as the session
// middleware would.
func WithPersonID(req *http.Request, personID int64) *http.Request {
	return req.WithContext(requestcontext.WithPersonID(req.Context(), personID))
}
