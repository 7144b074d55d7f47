package services_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

type fakeMailer struct {
	to   []string
	urls []string
}

func (f *fakeMailer) EnqueueResetMail(email, _ string, resetURL string) error {
	f.to = append(f.to, email)
	f.urls = append(f.urls, resetURL)
	return nil
}

func newAuthService() (*services.AuthService, *repositories.MockUserRepository, *fakeMailer) {
	userRepo := repositories.NewMockUserRepository()
	mailer := &fakeMailer{}
	return services.NewAuthService(userRepo, mailer, "test_jwt_secret"), userRepo, mailer
}

func registerUser(t *testing.T, service *services.AuthService, email string) *models.User {
	t.Helper()
	user := &models.User{Name: "Test User", Email: email}
	require.NoError(t, service.Register(user, "password123"))
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	service, _, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	token, err := service.Login("user@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims["email"])
	assert.NotEmpty(t, claims["user_id"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	service, _, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	err := service.Register(&models.User{Name: "Other", Email: "user@example.com"}, "password456")
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestLogin_BadCredentials(t *testing.T) {
	service, _, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	_, err := service.Login("user@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = service.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestValidateToken_Garbage(t *testing.T) {
	service, _, _ := newAuthService()
	_, err := service.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestForgotPassword(t *testing.T) {
	service, userRepo, mailer := newAuthService()
	registerUser(t, service, "user@example.com")

	require.NoError(t, service.ForgotPassword("user@example.com", "example.com"))

	stored, err := userRepo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}$`), stored.ResetPasswordToken)
	require.NotNil(t, stored.ResetPasswordExpires)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetPasswordExpires, time.Minute)

	require.Len(t, mailer.urls, 1)
	assert.Equal(t, "user@example.com", mailer.to[0])
	assert.Contains(t, mailer.urls[0], "http://example.com/account/reset/"+stored.ResetPasswordToken)
}

func TestForgotPassword_UnknownEmailHalts(t *testing.T) {
	service, _, mailer := newAuthService()
	registerUser(t, service, "user@example.com")

	err := service.ForgotPassword("nobody@example.com", "example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	// The flow stops: nothing is persisted and no mail goes out.
	assert.Empty(t, mailer.urls)
}

func setResetToken(t *testing.T, userRepo *repositories.MockUserRepository, email, token string, expires time.Time) {
	t.Helper()
	user, err := userRepo.GetByEmail(email)
	require.NoError(t, err)
	user.ResetPasswordToken = token
	user.ResetPasswordExpires = &expires
	require.NoError(t, userRepo.Update(user))
}

func TestValidateResetToken_ExpiryBoundary(t *testing.T) {
	service, userRepo, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	const token = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	// One second before expiry: accepted.
	setResetToken(t, userRepo, "user@example.com", token, time.Now().Add(time.Second))
	user, err := service.ValidateResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)

	// One second past expiry: rejected.
	setResetToken(t, userRepo, "user@example.com", token, time.Now().Add(-time.Second))
	_, err = service.ValidateResetToken(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestValidateResetToken_UnknownToken(t *testing.T) {
	service, _, _ := newAuthService()
	_, err := service.ValidateResetToken("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestUpdatePassword(t *testing.T) {
	service, userRepo, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	const token = "cccccccccccccccccccccccccccccccccccccccc"
	setResetToken(t, userRepo, "user@example.com", token, time.Now().Add(30*time.Minute))

	user, jwtToken, err := service.UpdatePassword(token, "newpassword", "newpassword")
	require.NoError(t, err)
	require.NotEmpty(t, jwtToken)
	assert.Equal(t, "user@example.com", user.Email)

	// The token fields are cleared, and the token no longer validates.
	stored, err := userRepo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.Empty(t, stored.ResetPasswordToken)
	assert.Nil(t, stored.ResetPasswordExpires)
	_, err = service.ValidateResetToken(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	// The new credential works; the user is effectively logged in already.
	_, err = service.Login("user@example.com", "newpassword")
	require.NoError(t, err)
	claims, err := service.ValidateToken(jwtToken)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims["email"])
}

func TestUpdatePassword_Mismatch(t *testing.T) {
	service, userRepo, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	const token = "dddddddddddddddddddddddddddddddddddddddd"
	setResetToken(t, userRepo, "user@example.com", token, time.Now().Add(30*time.Minute))

	_, _, err := service.UpdatePassword(token, "one-password", "another-password")
	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "confirm-password")

	// Nothing changed; the token still works.
	_, err = service.ValidateResetToken(token)
	assert.NoError(t, err)
}

func TestUpdatePassword_StaleToken(t *testing.T) {
	service, userRepo, _ := newAuthService()
	registerUser(t, service, "user@example.com")

	const token = "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	setResetToken(t, userRepo, "user@example.com", token, time.Now().Add(-time.Minute))

	_, _, err := service.UpdatePassword(token, "newpassword", "newpassword")
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}
