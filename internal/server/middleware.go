// RS256 JWT bearer-token authentication for the status API.
//
// Requests to protected routes must carry an Authorization header:
//
//	Authorization: Bearer <compact-JWT>
//
// The middleware extracts the token, accepts only the RS256 algorithm,
// verifies the RSA-PKCS1v15 signature against the configured public key,
// checks expiry (and issuer/audience when configured), and injects the
// verified [Claims] into the request context. On any failure it responds
// with HTTP 401 and a JSON error body without calling the next handler.
package server

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// contextKey is an unexported type for context keys in this package.
type contextKey int

const claimsKey contextKey = 0

// Claims holds the verified JWT payload claims injected into the request
// context by [JWTMiddleware]. Handlers retrieve them with
// [ClaimsFromContext].
type Claims struct {
	Issuer  string `json:"iss,omitempty"`
	Subject string `json:"sub,omitempty"`
	// Audience may be serialised as a single string or an array per RFC
	// 7519; both forms are normalised to a slice.
	Audience  Audience `json:"aud,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"`
	IssuedAt  int64    `json:"iat,omitempty"`
}

// Audience is a JWT "aud" value in either its string or array form.
type Audience []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Audience) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = Audience{s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("jwt: cannot unmarshal audience: %w", err)
	}
	*a = Audience(arr)
	return nil
}

// JWTConfig holds the configuration for [JWTMiddleware].
type JWTConfig struct {
	// PublicKey is the RSA public key used to verify RS256 signatures.
	// Required.
	PublicKey *rsa.PublicKey

	// Issuer, if non-empty, is compared against the "iss" claim.
	Issuer string

	// Audience, if non-empty, must appear in the "aud" claim.
	Audience string

	// Logger records per-request authentication failures. Nil uses
	// slog.Default().
	Logger *slog.Logger
}

// ClaimsFromContext retrieves the verified [Claims] injected by
// [JWTMiddleware]. It returns (nil, false) when no claims are present.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// ParseRSAPublicKey decodes a PEM block and parses an RSA public key. It
// accepts both PKCS#1 ("RSA PUBLIC KEY") and PKIX ("PUBLIC KEY") encodings.
func ParseRSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("jwt: no PEM block found in public key data")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwt: PKCS#1 parse error: %w", err)
		}
		return key, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwt: PKIX parse error: %w", err)
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("jwt: public key is not an RSA key")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("jwt: unsupported PEM type %q", block.Type)
	}
}

// JWTMiddleware returns a chi-compatible middleware enforcing RS256 JWT
// bearer-token authentication with cfg.
func JWTMiddleware(cfg JWTConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidate(r, cfg)
			if err != nil {
				logger.Warn("jwt: authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("error", err.Error()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// jwtHeader is the JOSE header decoded from the first JWT segment.
type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// extractAndValidate parses the Authorization header and runs the full
// verification pipeline on the bearer token.
func extractAndValidate(r *http.Request, cfg JWTConfig) (*Claims, error) {
	raw := r.Header.Get("Authorization")
	if !strings.HasPrefix(raw, "Bearer ") {
		return nil, errors.New("missing or malformed Authorization header")
	}
	token := strings.TrimPrefix(raw, "Bearer ")
	if token == "" {
		return nil, errors.New("empty bearer token")
	}
	return verifyRS256(token, cfg)
}

// verifyRS256 splits the compact serialisation, validates the JOSE header
// (RS256 only), verifies the RSA-PKCS1v15 signature over the signing input,
// and validates the payload claims.
func verifyRS256(token string, cfg JWTConfig) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("malformed JWT: expected 3 dot-separated segments")
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed JWT header encoding: %w", err)
	}
	var header jwtHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("malformed JWT header JSON: %w", err)
	}
	if header.Alg != "RS256" {
		return nil, fmt.Errorf("unsupported algorithm %q: only RS256 is accepted", header.Alg)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed JWT payload encoding: %w", err)
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("malformed JWT signature encoding: %w", err)
	}

	// The signing input is the ASCII bytes of headerB64.payloadB64.
	signingInput := parts[0] + "." + parts[1]
	digest := sha256.Sum256([]byte(signingInput))
	if err := rsa.VerifyPKCS1v15(cfg.PublicKey, crypto.SHA256, digest[:], sigBytes); err != nil {
		return nil, fmt.Errorf("invalid JWT signature: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return nil, fmt.Errorf("malformed JWT payload JSON: %w", err)
	}

	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return nil, errors.New("JWT has expired")
	}
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("JWT issuer %q does not match expected %q", claims.Issuer, cfg.Issuer)
	}
	if cfg.Audience != "" {
		found := false
		for _, a := range claims.Audience {
			if a == cfg.Audience {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("JWT audience does not include %q", cfg.Audience)
		}
	}

	return &claims, nil
}

// writeJSONError writes an HTTP error response with a JSON body. The
// Content-Type header is set before the status code so it is included even
// when ResponseWriter buffers are flushed early.
func writeJSONError(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := fmt.Sprintf(`{"error":%q}`, detail)
	_, _ = w.Write([]byte(body))
}
