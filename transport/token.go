package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig configures minted bearer tokens.
type TokenConfig struct {
	// Issuer is the iss claim.
	Issuer string `json:"issuer"`

	// Audience is the aud claim.
	Audience string `json:"audience"`

	// Subject is the sub claim.
	Subject string `json:"subject"`

	// TTL is the token lifetime.
	// Default: 5m
	TTL time.Duration `json:"ttl"`

	// HeaderName is the header carrying the token.
	// Default: "Authorization"
	HeaderName string `json:"headerName"`

	// TokenPrefix precedes the token in the header.
	// Default: "Bearer "
	TokenPrefix string `json:"tokenPrefix"`

	// Clock overrides time.Now.
	Clock func() time.Time `json:"-"`
}

// TokenSigner mints HS256 tokens and reuses each one until it is close to
// expiry.
type TokenSigner struct {
	config TokenConfig
	key    []byte

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSigner creates a signer, applying defaults.
func NewTokenSigner(config TokenConfig, key []byte) (*TokenSigner, error) {
	if len(key) == 0 {
		return nil, ErrEmptySigningKey
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &TokenSigner{config: config, key: append([]byte(nil), key...)}, nil
}

// Token returns a valid signed token. A cached token is reused until the
// last tenth of its lifetime.
func (s *TokenSigner) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Clock()
	if s.token != "" && now.Before(s.expires.Add(-s.config.TTL/10)) {
		return s.token, nil
	}

	claims := jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   s.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", err
	}
	s.token, s.expires = signed, now.Add(s.config.TTL)
	return signed, nil
}

// Apply sets the token header on req.
func (s *TokenSigner) Apply(req *http.Request) error {
	token, err := s.Token()
	if err != nil {
		return err
	}
	req.Header.Set(s.config.HeaderName, s.config.TokenPrefix+token)
	return nil
}
