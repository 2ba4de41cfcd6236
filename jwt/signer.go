package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm selects how a Signer signs tokens.
type Algorithm string

const (
	HS256 Algorithm = "HS256"
	RS256 Algorithm = "RS256"
)

// SignerConfig configures a Signer.
type SignerConfig struct {
	Algorithm Algorithm
	// Secret is the HMAC key for HS256, at least 32 bytes.
	Secret []byte
	// RSAKeyPEM is a PKCS#1 or PKCS#8 private key for RS256.
	RSAKeyPEM []byte
	TTL       time.Duration
	Issuer    string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Claims are carried by minted access tokens. Generation counts rotations within a
// session so a server can reject an access token that a refresh has replaced.
type Claims struct {
	Session    string `json:"sid,omitempty"`
	Generation uint64 `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints and verifies access tokens on behalf of a token endpoint. Clients of an
// Engine never need one.
type Signer struct {
	cfg    SignerConfig
	method jwt.SigningMethod
	sign   any
	verify any
}

// NewSigner validates cfg and loads its key.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("jwt: TTL must be > 0")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Signer{cfg: cfg}
	switch cfg.Algorithm {
	case HS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("jwt: HS256 secret must be at least 32 bytes")
		}
		s.method = jwt.SigningMethodHS256
		s.sign, s.verify = cfg.Secret, cfg.Secret
	case RS256:
		key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.RSAKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwt: RS256 key: %w", err)
		}
		s.method = jwt.SigningMethodRS256
		s.sign, s.verify = key, publicKey(key)
	default:
		return nil, fmt.Errorf("jwt: unsupported algorithm %q", cfg.Algorithm)
	}
	return s, nil
}

func publicKey(k *rsa.PrivateKey) *rsa.PublicKey { return &k.PublicKey }

// Mint signs an access token for subject in session at generation.
func (s *Signer) Mint(subject, session string, generation uint64) (string, error) {
	now := s.cfg.Now()
	claims := Claims{
		Session:    session,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.sign)
}

// Verify checks the signature, expiry and issuer of token.
func (s *Signer) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.verify, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
