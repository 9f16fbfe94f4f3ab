package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sos-bknd/internal/models"
)

var ErrSigningDisabled = errors.New("jwt manager has no private key")

// Claims is the access token body. Subject carries the user id.
type Claims struct {
	Role         string `json:"role"`
	Name         string `json:"name"`
	TokenVersion int    `json:"ver"`
	jwt.RegisteredClaims
}

// JWTManager verifies RS256 access tokens and, when given a private key,
// issues them.
type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewJWTManager loads PEM keys from disk. privatePath may be empty for a
// verify-only manager.
func NewJWTManager(privatePath, publicPath, issuer string) (*JWTManager, error) {
	var privKey *rsa.PrivateKey
	if privatePath != "" {
		privPem, err := os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		privKey, err = jwt.ParseRSAPrivateKeyFromPEM(privPem)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
	}

	pubPem, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return NewJWTManagerFromKeys(privKey, pubKey, issuer), nil
}

func NewJWTManagerFromKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, issuer string) *JWTManager {
	if publicKey == nil && privateKey != nil {
		publicKey = &privateKey.PublicKey
	}
	return &JWTManager{privateKey: privateKey, publicKey: publicKey, issuer: issuer}
}

// Issue signs an access token for user valid for ttl.
func (m *JWTManager) Issue(user *models.User, ttl time.Duration) (string, time.Time, error) {
	if m.privateKey == nil {
		return "", time.Time{}, ErrSigningDisabled
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := Claims{
		Role:         user.Role,
		Name:         user.Name,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenStr, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenStr, exp, nil
}

// Verify checks the RS256 signature, expiry and issuer and returns the caller.
func (m *JWTManager) Verify(tokenStr string) (models.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithLeeway(5*time.Second), jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return models.Identity{}, err
	}
	if !token.Valid {
		return models.Identity{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid subject: %w", err)
	}
	return models.Identity{
		UserID:       userID,
		Role:         claims.Role,
		Name:         claims.Name,
		TokenVersion: claims.TokenVersion,
	}, nil
}
