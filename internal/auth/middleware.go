package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

// AccessTokenParam is accepted in place of the Authorization header so
// browsers can open the auth event websocket.
const AccessTokenParam = "access_token"

// maxTokenBytes caps what the middleware will hand to the JWT parser.
const maxTokenBytes = 8 << 10

// expiryWarning is how close to expiry a token must be before responses
// carry the X-Token-Expires-* headers.
const expiryWarning = time.Hour

// ErrorResponse is the JSON body of every auth rejection.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SessionChecker reports whether a session id is still live.
type SessionChecker interface {
	SessionActive(ctx context.Context, sessionID string) (bool, error)
}

// WithClaims stores the authenticated principal on ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClaimsFromContext returns the principal set by AuthMiddleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// UserIDFromContext is shorthand for ClaimsFromContext(ctx).UserID.
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return ""
}

// SendErrorResponse writes an ErrorResponse with the given status.
func SendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// rejection is a 401/403/500 the middleware answers with instead of calling
// the next handler.
type rejection struct {
	status  int
	code    string
	message string
}

func (rj *rejection) send(w http.ResponseWriter) {
	SendErrorResponse(w, rj.message, rj.code, rj.status)
}

func unauthorized(code, message string) *rejection {
	return &rejection{status: http.StatusUnauthorized, code: code, message: message}
}

func bearerToken(r *http.Request) (string, *rejection) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if q := r.URL.Query().Get(AccessTokenParam); q != "" {
			return q, nil
		}
		return "", unauthorized("MISSING_AUTH_HEADER", "Authorization header required")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", unauthorized("INVALID_AUTH_FORMAT", "Invalid authorization header format. Expected: Bearer <token>")
	}
	if token == "" {
		return "", unauthorized("MISSING_TOKEN", "Token is required")
	}
	if len(token) > maxTokenBytes || strings.Count(token, ".") != 2 {
		return "", unauthorized("INVALID_TOKEN_FORMAT", "Invalid token format")
	}
	return token, nil
}

// tokenRejection maps a parse failure onto a client-facing code.
func tokenRejection(err error) *rejection {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthorized("TOKEN_EXPIRED", "Token has expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return unauthorized("INVALID_SIGNATURE", "Token signature is invalid")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return unauthorized("MALFORMED_TOKEN", "Token is malformed")
	default:
		return unauthorized("INVALID_TOKEN", "Invalid or expired token")
	}
}

func authenticate(r *http.Request, jm *JWTManager, sessions SessionChecker) (*Claims, *rejection) {
	token, rj := bearerToken(r)
	if rj != nil {
		return nil, rj
	}
	claims, err := jm.ValidateToken(token)
	if err != nil {
		return nil, tokenRejection(err)
	}
	if claims.UserID == "" || claims.Role == "" {
		return nil, unauthorized("INVALID_CLAIMS", "Token carries no user or role")
	}
	if sessions == nil {
		return claims, nil
	}
	active, err := sessions.SessionActive(r.Context(), claims.ID)
	if err != nil {
		return nil, &rejection{status: http.StatusInternalServerError, code: "SESSION_LOOKUP_FAILED", message: "Session lookup failed"}
	}
	if !active {
		return nil, unauthorized("SESSION_REVOKED", "Session has been revoked")
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid bearer token and puts the
// token's claims on the request context. With a non-nil sessions checker,
// tokens whose session was revoked are rejected too.
func AuthMiddleware(jm *JWTManager, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, rj := authenticate(r, jm, sessions)
			if rj != nil {
				rj.send(w)
				return
			}
			if claims.IsExpiringSoon(expiryWarning) {
				exp := claims.ExpiresAt.Time
				w.Header().Set("X-Token-Expires-At", exp.UTC().Format(time.RFC3339))
				w.Header().Set("X-Token-Expires-In", time.Until(exp).Round(time.Second).String())
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MustRole lets the request through only when the caller holds one of roles.
func MustRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			switch {
			case claims == nil:
				SendErrorResponse(w, "Authentication required", "AUTHENTICATION_REQUIRED", http.StatusUnauthorized)
			case !claims.HasRole(roles...):
				SendErrorResponse(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
