// Package reqctx carries the caller's identity and correlation data through
// the composite as an explicit argument.
package reqctx

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	HeaderRequestID     = "X-Request-Id"
	HeaderGroup         = "X-group"
	HeaderAuthorization = "Authorization"
)

const anonymous = "anonymous"

// RequestContext is created once per inbound request and handed to every
// composite and facade call. It is never stored past the request.
type RequestContext struct {
	CorrelationID string
	Username      string
	Forward       http.Header
}

// New builds a context without an inbound request, e.g. for tests and
// background jobs.
func New(correlationID, username string) RequestContext {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if username == "" {
		username = anonymous
	}
	return RequestContext{CorrelationID: correlationID, Username: username, Forward: http.Header{}}
}

// FromRequest collects the correlation id, the caller and the headers that
// are forwarded to downstream services.
func FromRequest(r *http.Request) RequestContext {
	correlationID := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
	if correlationID == "" {
		correlationID = strings.TrimSpace(r.Header.Get(HeaderRequestID))
	}

	rc := New(correlationID, "")
	for _, h := range []string{HeaderGroup, HeaderAuthorization} {
		for _, v := range r.Header.Values(h) {
			rc.Forward.Add(h, v)
		}
	}
	if name := usernameFromToken(r.Header.Get(HeaderAuthorization)); name != "" {
		rc.Username = name
	}
	return rc
}

// Headers returns the headers to attach to a downstream call.
func (rc RequestContext) Headers() http.Header {
	h := rc.Forward.Clone()
	if h == nil {
		h = http.Header{}
	}
	if rc.CorrelationID != "" {
		h.Set(HeaderCorrelationID, rc.CorrelationID)
	}
	return h
}

// usernameFromToken reads the caller name from a bearer token. The token is
// not verified here; the edge has already done that.
func usernameFromToken(authorization string) string {
	raw, ok := strings.CutPrefix(strings.TrimSpace(authorization), "Bearer ")
	if !ok || raw == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(raw), claims); err != nil {
		return ""
	}
	for _, key := range []string{"preferred_username", "user_name", "username"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	sub, _ := claims.GetSubject()
	return sub
}
