package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ynodev/empowerpwd-api/internal/config"
)

// AccountClaims is the payload of the bearer token issued once a
// registration succeeds, so the fresh account can sign in immediately.
type AccountClaims struct {
	AccountID string `json:"account_id"`
	Flow      string `json:"flow"`
	jwt.RegisteredClaims
}

// HandoffClaims is the payload of a read-once cross-navigation token. The
// token only proves possession of a handoff slot id; the answers themselves
// stay server-side until the slot is consumed.
type HandoffClaims struct {
	HandoffID string `json:"handoff_id"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 JWTs.
type Provider struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	accountExpiry time.Duration
	handoffExpiry time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey:    privKey,
		publicKey:     pubKey,
		accountExpiry: cfg.JWTExpiry,
		handoffExpiry: cfg.HandoffExpiry,
	}, nil
}

// SignAccount issues the post-registration bearer token.
func (p *Provider) SignAccount(accountID, flow string) (string, error) {
	claims := AccountClaims{
		AccountID: accountID,
		Flow:      flow,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.accountExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

// SignHandoff issues a short-lived token naming a handoff slot.
func (p *Provider) SignHandoff(handoffID string) (string, error) {
	claims := HandoffClaims{
		HandoffID: handoffID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.handoffExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
}

// VerifyHandoff validates a handoff token and returns the slot id it names.
func (p *Provider) VerifyHandoff(token string) (string, error) {
	var claims HandoffClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.publicKey, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.HandoffID == "" {
		return "", errors.New("invalid handoff token")
	}
	return claims.HandoffID, nil
}
