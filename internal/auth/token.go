package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HS256 secret NewIssuer accepts.
const MinSecretLength = 32

// IssuerConfig configures token signing.
type IssuerConfig struct {
	Secret   []byte
	Issuer   string
	TTL      time.Duration
	Leeway   time.Duration
	Audience string
}

// Claims are the JWT claims of an access token.
type Claims struct {
	Email   string `json:"email"`
	IsStaff bool   `json:"is_staff"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	cfg IssuerConfig
	now func() time.Time
}

// NewIssuer validates cfg and returns an issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// Issue signs a token for user.
func (i *Issuer) Issue(user *User) (string, error) {
	now := i.now()
	claims := Claims{
		Email:   user.Email,
		IsStaff: user.IsStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
	}
	if i.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and checks its signature, issuer and lifetime.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithTimeFunc(i.now),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}
	if i.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(i.cfg.Audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return i.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Viewer maps verified claims onto the request viewer.
func (c *Claims) Viewer() (Viewer, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Viewer{}, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return Viewer{UserID: id, Email: c.Email, IsStaff: c.IsStaff}, nil
}
