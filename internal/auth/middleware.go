package auth

import (
	"net/http"
	"strings"
)

// FromRequest extracts and validates the presenter token from either the
// Authorization header or a token query parameter (WebSocket clients
// cannot set headers).
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	token := ""
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, ErrInvalidToken
		}
		token = parts[1]
	} else {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	return m.Validate(token)
}
