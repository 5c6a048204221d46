package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"docstitch/internal/core/apperror"
	"docstitch/internal/core/id"
)

// FormTokenHeader carries the token on submission; the form field is the
// fallback for plain HTML clients.
const (
	FormTokenHeader = "X-Form-Token"
	FormTokenField  = "form_token"
)

// FormTokenService issues and validates single-use form tokens. A stitch
// submission closes documents and allocates codes, so an accidental double
// submit must be rejected, not replayed.
type FormTokenService struct {
	secret []byte
	ttl    time.Duration

	mu   sync.Mutex
	used map[string]time.Time
}

// NewFormTokenService creates the token service. Tokens expire after ttl.
func NewFormTokenService(secret []byte, ttl time.Duration) *FormTokenService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &FormTokenService{
		secret: secret,
		ttl:    ttl,
		used:   make(map[string]time.Time),
	}
}

// Issue returns a fresh signed token.
func (s *FormTokenService) Issue() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        id.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks the token's signature and expiry, and burns it so the same
// token cannot authorize a second submission.
func (s *FormTokenService) Validate(tokenString string) error {
	if tokenString == "" {
		return apperror.NewValidation("missing form token")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return apperror.NewValidation("invalid form token").WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()

	if _, burned := s.used[claims.ID]; burned {
		return apperror.NewConflict("form already submitted")
	}
	s.used[claims.ID] = claims.ExpiresAt.Time
	return nil
}

// prune drops burned tokens past their expiry. Called under mu.
func (s *FormTokenService) prune() {
	now := time.Now()
	for jti, exp := range s.used {
		if exp.Before(now) {
			delete(s.used, jti)
		}
	}
}

// RequireFormToken rejects mutating requests without a valid, unused token.
func RequireFormToken(svc *FormTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			c.Next()
			return
		}

		token := c.GetHeader(FormTokenHeader)
		if token == "" {
			token = c.PostForm(FormTokenField)
		}

		if err := svc.Validate(token); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
