package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionIssuer = "matchline"
	chatIssuer    = "matchline-chat"
)

// Claims is the payload of an app session token. The middleware reads it
// back on every request to learn who is calling.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed HS256 session token for a user.
func GenerateToken(userID uuid.UUID, email, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    sessionIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a session token and extracts the claims.
// It checks the signature, the expiry, the issuer and that the signing
// method is HMAC.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, secret, sessionIssuer, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateChatToken mints a chat provider token. The subject is the chat
// user id; the provider refuses a connection whose identity differs.
func GenerateChatToken(chatUserID, secret string, ttl time.Duration) (string, error) {
	if chatUserID == "" {
		return "", errors.New("chat user id is required")
	}
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   chatUserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    chatIssuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign chat token: %w", err)
	}
	return signed, nil
}

// ParseChatToken validates a chat token and returns its subject.
func ParseChatToken(tokenString, secret string) (string, error) {
	var claims jwt.RegisteredClaims
	if err := parse(tokenString, secret, chatIssuer, &claims); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("chat token has no subject")
	}
	return claims.Subject, nil
}

func parse(tokenString, secret, issuer string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			// Reject "none" and asymmetric algorithms before the signature check.
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid token claims")
	}
	return nil
}
