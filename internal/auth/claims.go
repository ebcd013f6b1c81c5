package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents relevant claims from Microsoft Entra ID JWT tokens
type TokenClaims struct {
	AppDisplayName string   `json:"app_displayname"` // Application display name from Entra ID
	Roles          []string `json:"roles"`           // Assigned application roles (e.g., Mail.Read)
	jwt.RegisteredClaims
}

// ParseTokenClaims extracts the application name and assigned roles from a
// JWT access token. The signature is not verified: the token was just issued
// to us by the authority and is only parsed here for display.
func ParseTokenClaims(tokenString string) (string, string, error) {
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &TokenClaims{})
	if err != nil {
		return "", "", fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return "", "", fmt.Errorf("failed to extract claims from token")
	}

	appName := claims.AppDisplayName
	if appName == "" {
		appName = "(not available)"
	}

	rolesStr := "(none)"
	if len(claims.Roles) > 0 {
		rolesStr = strings.Join(claims.Roles, ", ")
	}

	return appName, rolesStr, nil
}
