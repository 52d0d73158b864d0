package handlers

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/flatdb/internal/errors"
	"github.com/maruel/flatdb/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// TokenLifetime is how long an issued write token stays valid.
const TokenLifetime = 24 * time.Hour

// AdminSubject is the subject of every issued token.
const AdminSubject = "admin"

var errNoAdminPassword = stderrors.New("admin_password_hash is not configured")

// AuthHandler handles authentication requests.
type AuthHandler struct {
	passwordHash []byte
	jwtSecret    []byte
	now          func() time.Time
}

// NewAuthHandler creates a new auth handler. An empty passwordHash refuses
// every token request.
func NewAuthHandler(passwordHash string, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{
		passwordHash: []byte(passwordHash),
		jwtSecret:    jwtSecret,
		now:          time.Now,
	}
}

// Token exchanges the admin password for a signed write token.
func (h *AuthHandler) Token(ctx context.Context, req *models.TokenRequest) (*models.TokenResponse, error) {
	if len(h.passwordHash) == 0 {
		return nil, errors.Unauthorized().Wrap(errNoAdminPassword)
	}
	if err := bcrypt.CompareHashAndPassword(h.passwordHash, []byte(req.Password)); err != nil {
		return nil, errors.NewAPIError(401, errors.ErrUnauthorized, "Invalid credentials")
	}
	token, exp, err := h.generateToken()
	if err != nil {
		return nil, errors.InternalWithError("Failed to generate token", err)
	}
	return &models.TokenResponse{Token: token, ExpiresAt: exp.Unix()}, nil
}

func (h *AuthHandler) generateToken() (string, time.Time, error) {
	now := h.now()
	exp := now.Add(TokenLifetime)
	claims := jwt.MapClaims{
		"sub": AdminSubject,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(h.jwtSecret)
	return s, exp, err
}

// HashPassword returns the bcrypt hash stored as admin_password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
