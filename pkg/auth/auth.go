// Package auth provides bcrypt access-key hashing and JWT generation/parsing.
// Leaf package with no domain dependencies. Used by the token handler and the
// API auth middleware.
package auth

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// BCryptCost is the work factor for bcrypt.
const BCryptCost = 12

// DefaultTokenExpiry is the default JWT expiration in hours if not set via env.
const DefaultTokenExpiry = 24

const (
	envJWTSecret = "JWT_SECRET"
	envJWTExpiry = "JWT_EXPIRY"
)

// getJWTSecret reads JWT_SECRET from environment. Panics if not set so the
// service cannot start half-configured.
func getJWTSecret() []byte {
	secret := os.Getenv(envJWTSecret)
	if secret == "" {
		panic(envJWTSecret + " environment variable not set — cannot initialize auth")
	}
	return []byte(secret)
}

// parseTokenExpiry parses an expiry string (hours) into a Duration.
// Returns DefaultTokenExpiry on empty or invalid input.
func parseTokenExpiry(expiryStr string) time.Duration {
	if expiryStr == "" {
		return time.Duration(DefaultTokenExpiry) * time.Hour
	}

	hours, err := strconv.Atoi(expiryStr)
	if err != nil {
		return time.Duration(DefaultTokenExpiry) * time.Hour
	}

	return time.Duration(hours) * time.Hour
}

// getTokenExpiry reads JWT_EXPIRY from environment in hours.
func getTokenExpiry() time.Duration {
	return parseTokenExpiry(os.Getenv(envJWTExpiry))
}

// HashAccessKey hashes a plaintext access key using bcrypt.
// The resulting hash is what operators put in ACCESS_KEY_HASH.
func HashAccessKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BCryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash access key: %w", err)
	}
	return string(hash), nil
}

// VerifyAccessKey verifies a plaintext access key against a bcrypt hash.
// Returns false (not error) for invalid hashes to avoid leaking hash format
// information in responses.
func VerifyAccessKey(hash, key string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}

// Claims represents the JWT claims for the ask API.
type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for the given client.
// Uses JWT_SECRET from env and JWT_EXPIRY (default 24 hours).
func GenerateToken(clientID string) (string, error) {
	now := time.Now()
	expiresAt := now.Add(getTokenExpiry())

	claims := &Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(getJWTSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// ParseToken validates and parses a JWT, extracting claims.
// Returns an error if the token is invalid, expired, or malformed.
func ParseToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method is HMAC-SHA256 (prevent algorithm substitution attacks)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return getJWTSecret(), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}

	return claims, nil
}
