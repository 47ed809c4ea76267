package middleware

import (
	"net/http"
	"strings"
)

// AuthCookie is set by the login handler once the password matched.
const AuthCookie = "authenticated"

// publicPrefixes are reachable without logging in.
var publicPrefixes = []string{"/static/", "/css/", "/js/", "/camera"}

func isPublic(path string) bool {
	if path == "/login" || path == "/Login.html" || path == "/auth/login" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// wantsJSON reports whether the client is an API caller rather than a browser page load.
func wantsJSON(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		r.Header.Get("Content-Type") == "application/json" ||
		strings.HasPrefix(r.URL.Path, "/api/")
}

// AuthMiddleware checks that the user is logged in (cookie authenticated=true).
// API calls get 401, page loads are redirected to the login page.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || cookie.Value != "true" {
			if wantsJSON(r) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
