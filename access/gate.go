package access

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CookieName holds the signed operator session.
	CookieName = "operator_session"

	operatorRole = "operator"
)

var ErrWrongSecret = errors.New("wrong operator secret")

// Gate is the operator check: one shared secret, and a signed cookie
// marking the browser that presented it.
type Gate struct {
	hash []byte
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

// NewGate hashes secret and signs sessions with sessionKey.
func NewGate(secret, sessionKey string, ttl time.Duration) (*Gate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Gate{
		hash: hash,
		auth: jwtauth.New("HS256", []byte(sessionKey), nil),
		ttl:  ttl,
	}, nil
}

// Authenticate compares secret and, on a match, sets the session cookie.
func (g *Gate) Authenticate(w http.ResponseWriter, secret string) error {
	if bcrypt.CompareHashAndPassword(g.hash, []byte(secret)) != nil {
		return ErrWrongSecret
	}

	claims := map[string]any{"role": operatorRole}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, g.ttl)
	_, token, err := g.auth.Encode(claims)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     CookieName,
		Value:    token,
		MaxAge:   int(g.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Check reports whether r carries a valid, unexpired operator session.
func (g *Gate) Check(r *http.Request) bool {
	token, err := jwtauth.VerifyRequest(g.auth, r, tokenFromCookie)
	return err == nil && isOperator(token)
}

// Clear drops the session cookie.
func (g *Gate) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware lets operator requests through and answers 401 otherwise.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	verify := jwtauth.Verify(g.auth, tokenFromCookie)
	return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || !isOperator(token) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func tokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func isOperator(token jwt.Token) bool {
	if token == nil {
		return false
	}
	role, ok := token.Get("role")
	return ok && role == operatorRole
}
