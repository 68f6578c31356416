package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"

	// DefaultClaim — claim с id пользователя, который кладёт сервис логина.
	DefaultClaim = "userId"
)

// Verifier проверяет bearer-токены, выпущенные внешним сервисом логина.
// Сам чат токены не выпускает.
type Verifier struct {
	alg       string
	secret    []byte
	public    *rsa.PublicKey
	issuer    string
	claim     string
	clockSkew time.Duration
	now       func() time.Time
}

type VerifierConfig struct {
	Alg           string
	Secret        string
	PublicKeyPath string
	Issuer        string
	Claim         string
	ClockSkew     time.Duration
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{
		alg:       strings.ToUpper(cfg.Alg),
		issuer:    cfg.Issuer,
		claim:     cfg.Claim,
		clockSkew: cfg.ClockSkew,
		now:       time.Now,
	}
	if v.alg == "" {
		v.alg = AlgHS256
	}
	if v.claim == "" {
		v.claim = DefaultClaim
	}

	switch v.alg {
	case AlgHS256:
		if cfg.Secret == "" {
			return nil, errors.New("security: HS256 requires a secret")
		}
		v.secret = []byte(cfg.Secret)
	case AlgRS256:
		pub, err := LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("security: load public key: %w", err)
		}
		v.public = pub
	default:
		return nil, fmt.Errorf("security: unsupported alg %q", cfg.Alg)
	}

	return v, nil
}

// NewHS256Verifier — короткий путь для секрета из JWT_SECRET.
func NewHS256Verifier(secret string) (*Verifier, error) {
	return NewVerifier(VerifierConfig{Alg: AlgHS256, Secret: secret})
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != v.alg {
		return nil, ErrInvalidToken
	}
	if v.alg == AlgRS256 {
		return v.public, nil
	}
	return v.secret, nil
}

// Verify возвращает id пользователя из токена. Любая ошибка разбора,
// подписи или сроков сводится к ErrInvalidToken.
func (v *Verifier) Verify(tokenStr string) (domain.UserID, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	parser := &jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, v.keyFunc)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	now := v.now()
	if exp, ok := numericClaim(claims, "exp"); ok && now.After(time.Unix(exp, 0).Add(v.clockSkew)) {
		return "", ErrInvalidToken
	}
	if nbf, ok := numericClaim(claims, "nbf"); ok && now.Before(time.Unix(nbf, 0).Add(-v.clockSkew)) {
		return "", ErrInvalidToken
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", ErrInvalidToken
	}

	id := stringClaim(claims, v.claim)
	if id == "" {
		id = stringClaim(claims, "sub")
	}
	if id == "" {
		return "", ErrInvalidToken
	}
	return domain.UserID(id), nil
}

// BearerToken вытаскивает токен из заголовка Authorization.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func stringClaim(c jwt.MapClaims, name string) string {
	switch v := c[name].(type) {
	case string:
		return v
	case float64:
		// числовые id из старых токенов
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

func numericClaim(c jwt.MapClaims, name string) (int64, bool) {
	switch v := c[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}

// SignHS256 подписывает токен с claim userId. Нужен локальным
// окружениям и тестам, в проде токены выпускает сервис логина.
func SignHS256(secret string, userID domain.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		DefaultClaim: string(userID),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
