// Package api implements the HTTP surface of the shipment portal.
package api

import (
	"net/http"

	"shipportal/internal/auth"
)

// authedHandler is a handler that runs on behalf of a logged-in customer.
type authedHandler func(w http.ResponseWriter, r *http.Request, p auth.Principal)

// requireAuth resolves the bearer token to a principal. Browsers cannot set
// headers on a WebSocket upgrade, so access_token is accepted as a query
// parameter as well.
func (s *Server) requireAuth(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := auth.BearerToken(r)
		if tok == "" {
			tok = r.URL.Query().Get("access_token")
		}
		p, err := s.Auth.Resolve(r.Context(), tok)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
			s.writeError(w, r, err)
			return
		}
		h(w, r.WithContext(auth.WithPrincipal(r.Context(), p)), p)
	}
}
