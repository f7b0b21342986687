package port

import (
	"context"
	"net/http"
)

// RequestAuthenticator is the port for request signature validation.
// It returns the authenticated caller identity.
type RequestAuthenticator interface {
	Authenticate(ctx context.Context, r *http.Request, body []byte) (string, error)
}
