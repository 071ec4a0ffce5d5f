package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL is how long an access token remains valid.
	// WebSocket clients reconnect with a fresh token after expiry.
	DefaultAccessTokenTTL = time.Hour

	// rsaKeyBits is the RSA key size used for JWT signing.
	rsaKeyBits = 2048

	privateKeyFile = "jwt_private.pem"
	publicKeyFile  = "jwt_public.pem"
)

// Claims is the payload of an access token.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the UUID of the authenticated user. It mirrors Subject.
	UserID string `json:"uid"`

	// Email is included so clients can show the logged-in identity without
	// fetching the profile.
	Email string `json:"email"`
}

// JWTManager signs and verifies RS256 access tokens.
type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	ttl        time.Duration
}

// NewJWTManagerGenerated creates a JWTManager with a freshly generated RSA key
// pair. The keys are ephemeral: all tokens are invalidated on restart. Tests
// and single-shot tools use this.
func NewJWTManagerGenerated(issuer string) (*JWTManager, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("auth: generating signing key: %w", err)
	}
	return newJWTManager(key, issuer), nil
}

// NewJWTManagerFromDir loads the signing key stored in dir, generating and
// persisting a new pair on first start so tokens survive restarts. The public
// half is written next to it for services that only verify tokens.
func NewJWTManagerFromDir(dir, issuer string) (*JWTManager, error) {
	keyPath := filepath.Join(dir, privateKeyFile)

	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		key, err := decodePrivateKey(data)
		if err != nil {
			return nil, err
		}
		return newJWTManager(key, issuer), nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("auth: reading %s: %w", keyPath, err)
	}

	m, err := NewJWTManagerGenerated(issuer)
	if err != nil {
		return nil, err
	}
	if err := m.persist(dir); err != nil {
		return nil, err
	}
	return m, nil
}

func newJWTManager(key *rsa.PrivateKey, issuer string) *JWTManager {
	return &JWTManager{
		privateKey: key,
		publicKey:  &key.PublicKey,
		issuer:     issuer,
		ttl:        DefaultAccessTokenTTL,
	}
}

// SetTTL overrides the lifetime of tokens issued after the call.
func (m *JWTManager) SetTTL(ttl time.Duration) {
	m.ttl = ttl
}

func (m *JWTManager) persist(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("auth: creating key directory: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(m.privateKey)
	if err != nil {
		return fmt.Errorf("auth: encoding private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), keyPEM, 0o600); err != nil {
		return fmt.Errorf("auth: writing private key: %w", err)
	}

	pubPEM, err := m.PublicKeyPEM()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pubPEM, 0o644); err != nil {
		return fmt.Errorf("auth: writing public key: %w", err)
	}
	return nil
}

// decodePrivateKey accepts PKCS#1 ("RSA PRIVATE KEY") and PKCS#8
// ("PRIVATE KEY") blocks.
func decodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("auth: private key file holds no PEM block")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: decoding PKCS#1 key: %w", err)
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("auth: decoding PKCS#8 key: %w", err)
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("auth: PKCS#8 key is %T, want RSA", parsed)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("auth: unexpected PEM block %q", block.Type)
	}
}

// GenerateAccessToken creates a signed RS256 JWT for the given user using
// the manager's TTL.
func (m *JWTManager) GenerateAccessToken(userID, email string) (string, time.Time, error) {
	return m.generate(userID, email, m.ttl)
}

func (m *JWTManager) generate(userID, email string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing access token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature, issuer and expiry. Failures map to
// ErrTokenMissing for an empty string, ErrTokenExpired for a well-signed but
// expired token, ErrTokenInvalid for everything else.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(t *jwt.Token) (any, error) {
			return m.publicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// PublicKeyPEM returns the verification key as a PKIX PEM block.
func (m *JWTManager) PublicKeyPEM() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(m.publicKey)
	if err != nil {
		return nil, fmt.Errorf("auth: encoding public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
