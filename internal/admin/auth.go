package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// basicAuth guards the admin surface with the credentials from the
// current config snapshot. When no admin username is configured the
// surface is open (the operator has bound it to a trusted interface).
// The stored password may be a bcrypt hash; anything starting with the
// bcrypt prefix is verified as one, otherwise a constant-time compare
// of the plain text applies.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.store.Get()
		if cfg.AdminUsername == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !credentialsMatch(user, pass, cfg.AdminUsername, cfg.AdminPassword) {
			w.Header().Set("WWW-Authenticate", `Basic realm="neartrip admin"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func credentialsMatch(user, pass, wantUser, wantPass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1

	var passOK bool
	if strings.HasPrefix(wantPass, "$2a$") || strings.HasPrefix(wantPass, "$2b$") || strings.HasPrefix(wantPass, "$2y$") {
		passOK = bcrypt.CompareHashAndPassword([]byte(wantPass), []byte(pass)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
	}
	return userOK && passOK
}
