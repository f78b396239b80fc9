// internal/auth/tokens.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any reconnect token that fails verification.
var ErrInvalidToken = errors.New("invalid reconnect token")

// seatClaims binds a token to one seat: a player in a room.
type seatClaims struct {
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies the reconnect tokens handed to players when they join.
type Tokens struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 means tokens never expire
	now        func() time.Time
}

// NewTokens generates a fresh ed25519 key pair. Tokens from a previous process stop verifying.
func NewTokens(ttl time.Duration) (*Tokens, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Tokens{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// NewTokensFromFiles reads a raw ed25519 key pair from disk.
func NewTokensFromFiles(privatePath, publicPath string, ttl time.Duration) (*Tokens, error) {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("key files do not hold a raw ed25519 key pair")
	}
	return &Tokens{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// ParseTTL reads TOKEN_EXPIRE_TIME style values: "never", "0" and "" disable expiry.
func ParseTTL(s string) (time.Duration, error) {
	switch s {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("token expire time cannot be negative")
	}
	return d, nil
}

// Issue signs a token for playerID's seat in roomID.
func (t *Tokens) Issue(roomID, playerID string) (string, error) {
	now := t.now()
	claims := seatClaims{
		Room: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(t.privateKey)
}

// Verify checks a token and returns the seat it was issued for.
func (t *Tokens) Verify(tokenString string) (roomID, playerID string, err error) {
	var claims seatClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.publicKey, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" || claims.Room == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Room, claims.Subject, nil
}
