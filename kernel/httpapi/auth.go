package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/michaelquigley/pfxlog"
	"golang.org/x/crypto/bcrypt"
)

const basicAuthRealm = `Basic realm="VPN Admin"`

// BasicAuth guards the operations with a single admin account whose password is stored
// as a bcrypt hash. A zero BasicAuth lets every request through.
type BasicAuth struct {
	user string
	hash []byte
}

func NewBasicAuth(user, passwordHash string) *BasicAuth {
	if user == "" || passwordHash == "" {
		return &BasicAuth{}
	}
	return &BasicAuth{user: user, hash: []byte(passwordHash)}
}

func (a *BasicAuth) Enabled() bool {
	return a.user != ""
}

func (a *BasicAuth) Check(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	user, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOk := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passwordOk := bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	return userOk && passwordOk
}

// Middleware rejects unauthenticated requests with 401. CORS preflight is exempt since
// browsers never attach credentials to it.
func (a *BasicAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || a.Check(r) {
			next.ServeHTTP(w, r)
			return
		}
		pfxlog.Logger().WithField("path", r.URL.Path).Warn("rejected unauthenticated request")
		w.Header().Set("WWW-Authenticate", basicAuthRealm)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("Authentication required"))
	})
}
