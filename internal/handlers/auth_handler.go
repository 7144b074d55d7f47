package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"storefront/internal/models"
	"storefront/internal/services"
)

// AuthHandler handles HTTP requests for registration, sessions and the
// password-reset flow.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/register", h.HandleRegister)
	router.Post("/login", h.HandleLogin)
	router.Post("/logout", h.HandleLogout)
	router.Post("/account/forgot", h.HandleForgot)
	router.Get("/account/reset/:token", h.HandleReset)
	router.Post("/account/reset/:token", h.HandleUpdatePassword)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// HandleRegister handles new account registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Debug().Err(err).Msg("error parsing register request body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	user := &models.User{Name: req.Name, Email: req.Email}
	if err := h.authService.Register(user, req.Password); err != nil {
		return respondError(c, err)
	}

	user.Password = ""
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// HandleLogin verifies credentials and issues a JWT token. Failures redirect
// back to the login page with an error indicator.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Debug().Err(err).Msg("error parsing login request body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	token, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		return c.Redirect("/login?error=failed", fiber.StatusSeeOther)
	}
	return c.JSON(fiber.Map{
		"message": "You are now logged in!",
		"token":   token,
	})
}

// HandleLogout ends the session. Tokens are stateless, so the client drops
// its copy; the response redirects home like the original flow.
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	return c.Redirect("/", fiber.StatusSeeOther)
}

// ForgotRequest represents the request body for forgot-password.
type ForgotRequest struct {
	Email string `json:"email" form:"email"`
}

// HandleForgot issues a reset token and mails a reset link. Unknown
// addresses report an error and stop; nothing is persisted or sent.
func (h *AuthHandler) HandleForgot(c *fiber.Ctx) error {
	var req ForgotRequest
	if err := c.BodyParser(&req); err != nil {
		log.Debug().Err(err).Msg("error parsing forgot request body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if err := h.authService.ForgotPassword(req.Email, c.Hostname()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "You have been emailed a password reset link!",
	})
}

// HandleReset validates a reset token ahead of the password form. Invalid or
// expired tokens redirect to the login page.
func (h *AuthHandler) HandleReset(c *fiber.Ctx) error {
	if _, err := h.authService.ValidateResetToken(c.Params("token")); err != nil {
		return c.Redirect("/login?error=reset-expired", fiber.StatusSeeOther)
	}
	return c.JSON(fiber.Map{
		"message": "Reset your password",
		"token":   c.Params("token"),
	})
}

// UpdatePasswordRequest represents the request body for the password update.
type UpdatePasswordRequest struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm-password" form:"confirm-password"`
}

// HandleUpdatePassword sets the new credential when both passwords match and
// the token is still valid, then logs the user in. A mismatch redirects back
// to the form; a stale token redirects to the login page.
func (h *AuthHandler) HandleUpdatePassword(c *fiber.Ctx) error {
	var req UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		log.Debug().Err(err).Msg("error parsing password update body")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
		})
	}

	if req.Password != req.ConfirmPassword {
		back := c.Get(fiber.HeaderReferer)
		if back == "" {
			back = "/login"
		}
		return c.Redirect(back+"?error=password-mismatch", fiber.StatusSeeOther)
	}

	user, token, err := h.authService.UpdatePassword(c.Params("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Your password has been reset! You are now logged in!",
		"token":   token,
		"user":    user,
	})
}
