package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const resetTokenTTL = time.Hour

// ResetMailer dispatches password-reset mail. Delivery is asynchronous; the
// implementation queues a job rather than speaking SMTP inline.
type ResetMailer interface {
	EnqueueResetMail(email, name, resetURL string) error
}

// AuthService handles registration, login and the password-reset flow.
type AuthService struct {
	userRepo      repositories.UserRepository
	mailer        ResetMailer
	jwtSecret     []byte
	tokenValidity time.Duration
	validate      *validator.Validate
}

// NewAuthService creates a new AuthService. mailer may be nil; forgot-password
// then persists the token without sending mail.
func NewAuthService(userRepo repositories.UserRepository, mailer ResetMailer, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		mailer:        mailer,
		jwtSecret:     []byte(jwtSecret),
		tokenValidity: 24 * time.Hour,
		validate:      validator.New(),
	}
}

// Register creates a new account with a bcrypt-hashed password.
func (s *AuthService) Register(user *models.User, password string) error {
	if err := s.validate.Struct(user); err != nil {
		return asValidationError(err)
	}
	if len(password) < 6 {
		return apperrors.NewValidationError(map[string]string{"password": "password must be at least 6 characters"})
	}
	if existing, err := s.userRepo.GetByEmail(user.Email); err == nil && existing != nil {
		return apperrors.ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)
	return s.userRepo.Create(user)
}

// Login verifies credentials and returns a signed JWT.
func (s *AuthService) Login(email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		// Do not reveal whether the address exists.
		return "", apperrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", apperrors.ErrUnauthorized
	}
	return s.issueToken(user)
}

// ValidateToken parses and validates a JWT, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// ForgotPassword issues a reset token for the account with the given email,
// persists it with a one-hour expiry and mails a reset link built against
// host. Unknown addresses halt the flow with NotFound.
func (s *AuthService) ForgotPassword(email, host string) error {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return apperrors.ErrNotFound
	}

	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	user.ResetPasswordToken = hex.EncodeToString(raw)
	expires := time.Now().Add(resetTokenTTL)
	user.ResetPasswordExpires = &expires

	if err := s.userRepo.Update(user); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("http://%s/account/reset/%s", host, user.ResetPasswordToken)
	if s.mailer == nil {
		log.Warn().Str("email", user.Email).Msg("no mailer configured; reset mail not sent")
		return nil
	}
	if err := s.mailer.EnqueueResetMail(user.Email, user.Name, resetURL); err != nil {
		return fmt.Errorf("failed to enqueue reset mail: %w", err)
	}
	return nil
}

// ValidateResetToken returns the user holding token if it has not expired.
func (s *AuthService) ValidateResetToken(token string) (*models.User, error) {
	user, err := s.userRepo.GetByResetToken(token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, err
	}
	if user.ResetPasswordExpires == nil || !time.Now().Before(*user.ResetPasswordExpires) {
		return nil, apperrors.ErrTokenExpired
	}
	return user, nil
}

// UpdatePassword re-validates the token, requires both submitted passwords
// to match, sets the new credential, clears the reset fields and returns a
// fresh JWT so the user is logged in immediately.
func (s *AuthService) UpdatePassword(token, password, confirm string) (*models.User, string, error) {
	if password != confirm {
		return nil, "", apperrors.NewValidationError(map[string]string{"confirm-password": "passwords do not match"})
	}
	// The token could expire between the form render and this submit, so
	// look it up again.
	user, err := s.ValidateResetToken(token)
	if err != nil {
		return nil, "", err
	}
	if len(password) < 6 {
		return nil, "", apperrors.NewValidationError(map[string]string{"password": "password must be at least 6 characters"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)
	user.ResetPasswordToken = ""
	user.ResetPasswordExpires = nil
	if err := s.userRepo.Update(user); err != nil {
		return nil, "", err
	}

	jwtToken, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	user.Password = ""
	return user, jwtToken, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.tokenValidity).Unix(),
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
