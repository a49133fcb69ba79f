package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidKey   = errors.New("invalid key")
	ErrNoIdentity   = errors.New("token carries no identity")
)

// Claims are the sign-in token claims
type Claims struct {
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"name,omitempty"`
	gojwt.RegisteredClaims
}

// Identity returns user_id, or sub when user_id is absent
func (c *Claims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// Verifier checks RS256 tokens against one public key and issuer
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	parser    *gojwt.Parser
}

// NewVerifier loads a PEM public key from path
func NewVerifier(publicKeyPath, issuer string) (*Verifier, error) {
	pub, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}
	return NewVerifierFromKey(pub, issuer), nil
}

// NewVerifierFromKey creates a verifier for an in-memory key
func NewVerifierFromKey(pub *rsa.PublicKey, issuer string) *Verifier {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodRS256.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, gojwt.WithIssuer(issuer))
	}
	return &Verifier{publicKey: pub, issuer: issuer, parser: gojwt.NewParser(opts...)}
}

// Verify validates token and returns its claims
func (v *Verifier) Verify(token string) (*Claims, error) {
	if v.publicKey == nil {
		return nil, ErrInvalidKey
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return v.publicKey, nil
	})
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Identity() == "" {
		return nil, ErrNoIdentity
	}
	return claims, nil
}

// Signer mints sign-in tokens
type Signer struct {
	privateKey *rsa.PrivateKey
	issuer     string
	ttl        time.Duration
}

// NewSigner loads a PEM private key from path
func NewSigner(privateKeyPath, issuer string, ttl time.Duration) (*Signer, error) {
	key, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	return NewSignerFromKey(key, issuer, ttl), nil
}

// NewSignerFromKey creates a signer for an in-memory key
func NewSignerFromKey(key *rsa.PrivateKey, issuer string, ttl time.Duration) *Signer {
	return &Signer{privateKey: key, issuer: issuer, ttl: ttl}
}

// Sign issues a token for uid
func (s *Signer) Sign(uid string) (string, error) {
	return s.SignClaims(Claims{UserID: uid})
}

// SignClaims fills the registered claims and signs
func (s *Signer) SignClaims(claims Claims) (string, error) {
	if s.privateKey == nil {
		return "", ErrInvalidKey
	}
	if claims.Identity() == "" {
		return "", ErrNoIdentity
	}

	now := time.Now()
	claims.Issuer = s.issuer
	if claims.Subject == "" {
		claims.Subject = claims.UserID
	}
	claims.IssuedAt = gojwt.NewNumericDate(now)
	claims.NotBefore = gojwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = gojwt.NewNumericDate(now.Add(s.ttl))
	}

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return token, nil
}

// GenerateKeyPair generates a new RSA key pair and saves to files
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	if err := os.WriteFile(privateKeyPath, privateKeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyBytes,
	})
	if err := os.WriteFile(publicKeyPath, publicKeyPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	return nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := gojwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := gojwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}
