package middleware

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	apperrors "github.com/resaletix/resaletix-backend/errors"
	"github.com/resaletix/resaletix-backend/logger"
)

const clockSkew = 30 * time.Second

var errMissingSubject = errors.New("missing subject claim in token")

// Identity is what a valid Supabase access token tells us about the caller.
type Identity struct {
	UserID string
	Email  string
}

// JWTVerifier validates HS256 tokens signed with the Supabase JWT secret.
// Supabase dashboards hand the secret out both raw and base64 encoded, so
// every plausible decoding is tried as a key.
type JWTVerifier struct {
	keys [][]byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is empty")
	}
	v := &JWTVerifier{keys: [][]byte{[]byte(secret)}}
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) > 0 {
		v.keys = append(v.keys, decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(secret); err == nil && len(decoded) > 0 {
		v.keys = append(v.keys, decoded)
	}
	return v, nil
}

func (v *JWTVerifier) Verify(token string) (Identity, error) {
	var firstErr error
	for _, key := range v.keys {
		parsed, err := jwt.Parse([]byte(token),
			jwt.WithKey(jwa.HS256, key),
			jwt.WithValidate(true),
			jwt.WithAcceptableSkew(clockSkew),
		)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if parsed.Subject() == "" {
			return Identity{}, errMissingSubject
		}
		email, _ := parsed.PrivateClaims()["email"].(string)
		return Identity{UserID: parsed.Subject(), Email: email}, nil
	}
	return Identity{}, firstErr
}

// AuthMiddleware requires a valid bearer token and stores the caller's id and
// email on the context.
func AuthMiddleware(v *JWTVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			_ = c.Error(apperrors.Unauthorized("missing_auth", "Authorization required"))
			c.Abort()
			return
		}

		id, err := v.Verify(token)
		if err != nil {
			logger.GetLogger().Warnw("Invalid JWT token",
				"error", err,
				"token", logger.MaskJWT(token),
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			if errors.Is(err, jwt.ErrTokenExpired()) {
				_ = c.Error(apperrors.Unauthorized("token_expired", "Your session has expired"))
			} else {
				_ = c.Error(apperrors.Unauthorized("invalid_token", "Invalid authentication token"))
			}
			c.Abort()
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalAuthMiddleware(v *JWTVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if id, err := v.Verify(token); err == nil {
				setIdentity(c, id)
			}
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, id Identity) {
	c.Set(string(UserIDKey), id.UserID)
	c.Set(string(UserEmailKey), id.Email)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
