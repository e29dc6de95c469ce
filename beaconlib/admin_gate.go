package beaconlib

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AdminCookieName       = "adminAuth"
	DefaultAdminCookieTTL = 8 * time.Hour

	adminPasswordParam = "password"
	adminTokenSubject  = "admin"
)

var errAdminUnauthorized = errors.New("admin password is required")

var adminLoginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Admin Login</title>
    <style>
      body { background: #0d0d0d; color: #eee; font-family: sans-serif;
             display: flex; align-items: center; justify-content: center; height: 100vh; }
      form { background: #1a1a1a; padding: 32px; border-radius: 8px; text-align: center; }
      input { display: block; margin: 12px 0; padding: 10px 16px; width: 240px;
              background: #111; border: 1px solid #333; color: #fff; border-radius: 4px; }
      button { padding: 10px 24px; background: #00e5ff; color: #000;
               border: none; border-radius: 4px; cursor: pointer; font-weight: bold; }
      .error { color: #ff5c5c; }
    </style>
  </head>
  <body>
    <form method="GET" action="{{ .Action }}">
      <h2>Admin Login</h2>
      {{ if .Failed }}<p class="error">Incorrect password</p>{{ end }}
      <input type="password" name="password" placeholder="Enter admin password" required>
      <button type="submit">Login</button>
    </form>
  </body>
</html>
`))

// adminGate protects admin routes with a shared secret. A secret is
// passed once as a query parameter, then a signed cookie is used.
type adminGate struct {
	password   []byte
	signingKey []byte
	ttl        time.Duration
	secure     bool
	logger     Logger
}

// Interactive is for pages which are opened by humans. It responds with
// a login form.
func (a *adminGate) Interactive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.authenticate(w, req) {
			next.ServeHTTP(w, req)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusUnauthorized)

		adminLoginTemplate.Execute(w, struct { // nolint: errcheck
			Action string
			Failed bool
		}{
			Action: req.URL.Path,
			Failed: req.URL.Query().Get(adminPasswordParam) != "",
		})
	})
}

// API is for machine endpoints. It responds with JSON error.
func (a *adminGate) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.authenticate(w, req) {
			next.ServeHTTP(w, req)

			return
		}

		sendJSON(w, http.StatusUnauthorized,
			newAPIError(http.StatusUnauthorized, "Unauthorized", errAdminUnauthorized))
	})
}

func (a *adminGate) authenticate(w http.ResponseWriter, req *http.Request) bool {
	if len(a.password) == 0 {
		return false
	}

	if cookie, err := req.Cookie(AdminCookieName); err == nil && a.verify(cookie.Value) == nil {
		return true
	}

	password := req.URL.Query().Get(adminPasswordParam)
	if password == "" || subtle.ConstantTimeCompare([]byte(password), a.password) != 1 {
		return false
	}

	if err := a.setCookie(w); err != nil {
		a.logger.HTTPError(req, err)
	}

	return true
}

func (a *adminGate) setCookie(w http.ResponseWriter) error {
	expiresAt := time.Now().Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject:   adminTokenSubject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	value, err := token.SignedString(a.signingKey)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AdminCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(a.ttl / time.Second),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func (a *adminGate) verify(value string) error {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
		return a.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(adminTokenSubject))

	return err
}

func newAdminGate(password string, ttl time.Duration, secure bool, logger Logger) *adminGate {
	if ttl <= 0 {
		ttl = DefaultAdminCookieTTL
	}

	key := sha256.Sum256([]byte("beacon admin cookie\x00" + password))

	return &adminGate{
		password:   []byte(password),
		signingKey: key[:],
		ttl:        ttl,
		secure:     secure,
		logger:     logger,
	}
}
