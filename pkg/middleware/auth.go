package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bookflow/internal/constants"
	"bookflow/pkg/errors"
	"bookflow/pkg/metrics"
)

type AuthConfig struct {
	Secret string
	Issuer string
}

// ParseToken validates an HMAC-signed bearer token and returns its claims.
func ParseToken(header string, cfg AuthConfig) (jwt.MapClaims, error) {
	if header == "" {
		return nil, fmt.Errorf("missing token")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// subject prefers the user_id claim over sub.
func subject(claims jwt.MapClaims) string {
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	if sub, err := claims.GetSubject(); err == nil {
		return sub
	}
	return ""
}

// JWTAuth rejects requests without a valid bearer token and stores the caller
// under the user_id context key.
func JWTAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ParseToken(c.GetHeader("Authorization"), cfg)
		if err != nil {
			metrics.AuthRequestsTotal.WithLabelValues("rejected").Inc()
			c.AbortWithStatusJSON(errors.ErrUnauthorized.Status, errors.ToErrorResponse(errors.ErrUnauthorized.WithMessage(err.Error())))
			return
		}

		userID := subject(claims)
		if userID == "" {
			metrics.AuthRequestsTotal.WithLabelValues("rejected").Inc()
			c.AbortWithStatusJSON(errors.ErrUnauthorized.Status, errors.ToErrorResponse(errors.ErrUnauthorized.WithMessage("token has no subject")))
			return
		}

		metrics.AuthRequestsTotal.WithLabelValues("accepted").Inc()
		c.Set(constants.ContextKeyUserID, userID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyUserID, userID))
		c.Next()
	}
}
