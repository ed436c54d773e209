package httpkit

import (
	"errors"
	"net/http"
	"strings"

	"marketplace_backend/platform/config"
	"marketplace_backend/platform/phone"

	"github.com/golang-jwt/jwt/v5"
)

const errInvalidToken = "invalid token"

// JWTActorResolver verifies HMAC access tokens issued by the identity provider.
// The subject becomes the actor id; the role comes from "role" or the first
// known entry of "roles". A verified "email" claim is carried along for
// guest draft linking.
type JWTActorResolver struct {
	cfg config.JWTConfig
}

// NewJWTActorResolver creates a resolver bound to the access secret.
func NewJWTActorResolver(cfg config.JWTConfig) *JWTActorResolver {
	return &JWTActorResolver{cfg: cfg}
}

// Resolve implements ActorResolver.
// Supports the Authorization header (Bearer) or a token query param for SSE.
func (r *JWTActorResolver) Resolve(req *http.Request) (Actor, bool) {
	rawToken, ok := extractBearerToken(req.Header.Get("Authorization"))
	if !ok {
		rawToken = req.URL.Query().Get("token")
		if rawToken == "" {
			return Actor{}, false
		}
	}

	claims, err := r.parseAccessClaims(rawToken)
	if err != nil {
		return Actor{}, false
	}

	subject, _ := claims["sub"].(string)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Actor{}, false
	}

	role := extractRole(claims)
	if !role.Valid() {
		return Actor{}, false
	}
	email, _ := claims["email"].(string)
	phoneNumber, _ := claims["phone_number"].(string)
	return Actor{
		ID:    subject,
		Role:  role,
		Email: strings.ToLower(strings.TrimSpace(email)),
		Phone: phone.NormalizeE164(phoneNumber),
	}, true
}

func (r *JWTActorResolver) parseAccessClaims(rawToken string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(r.cfg.GetJWTAccessSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.New(errInvalidToken)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New(errInvalidToken)
	}

	if tokenType, present := claims["type"].(string); present && tokenType != "access" {
		return nil, errors.New(errInvalidToken)
	}

	return claims, nil
}

func extractRole(claims jwt.MapClaims) Role {
	if role, ok := claims["role"].(string); ok {
		return Role(strings.ToLower(role))
	}
	for _, candidate := range extractRoles(claims["roles"]) {
		if role := Role(strings.ToLower(candidate)); role.Valid() {
			return role
		}
	}
	return ""
}

func extractRoles(value interface{}) []string {
	roles := make([]string, 0)
	if value == nil {
		return roles
	}

	switch typed := value.(type) {
	case []string:
		return append(roles, typed...)
	case []interface{}:
		for _, item := range typed {
			if text, ok := item.(string); ok {
				roles = append(roles, text)
			}
		}
	}

	return roles
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}
