package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xaenox/taskmaster/internal/auth"
	"github.com/xaenox/taskmaster/internal/storage"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (h *handlers) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Name, email, and password are required")
	}

	user, token, err := h.deps.Auth.Register(c.UserContext(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Company:  req.Company,
		Role:     req.Role,
	})
	if errors.Is(err, auth.ErrEmailTaken) {
		return respondError(c, fiber.StatusBadRequest, "Email already registered")
	}
	if err != nil {
		h.logger.Error("Registration failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Registration failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":  user,
		"token": token,
	})
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Email and password are required")
	}

	user, token, err := h.deps.Auth.Login(c.UserContext(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return respondError(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		h.logger.Error("Login failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Login failed")
	}

	return c.JSON(fiber.Map{
		"user":  user,
		"token": token,
	})
}

func (h *handlers) verifyEmail(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Code == "" {
		return respondError(c, fiber.StatusBadRequest, "Code is required")
	}

	err := h.deps.Auth.VerifyEmail(c.UserContext(), req.Code)
	if errors.Is(err, storage.ErrTokenInvalid) {
		return respondError(c, fiber.StatusBadRequest, "Invalid or expired code")
	}
	if err != nil {
		h.logger.Error("Email verification failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Verification failed")
	}

	return c.JSON(fiber.Map{"message": "Email verified"})
}

func (h *handlers) resendVerification(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" {
		return respondError(c, fiber.StatusBadRequest, "Email is required")
	}

	if err := h.deps.Auth.ResendVerification(c.UserContext(), req.Email); err != nil {
		h.logger.Error("Verification resend failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Verification resend failed")
	}

	// Deliberately identical whether or not the email exists.
	return c.JSON(fiber.Map{"message": "If that email is registered and unverified, a new code has been sent"})
}

func (h *handlers) forgotPassword(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" {
		return respondError(c, fiber.StatusBadRequest, "Email is required")
	}

	if err := h.deps.Auth.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		h.logger.Error("Password reset request failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Password reset request failed")
	}

	// Deliberately identical whether or not the email exists.
	return c.JSON(fiber.Map{"message": "If that email is registered, a reset code has been sent"})
}

func (h *handlers) resetPassword(c *fiber.Ctx) error {
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Code == "" || req.Password == "" {
		return respondError(c, fiber.StatusBadRequest, "Code and password are required")
	}

	err := h.deps.Auth.ResetPassword(c.UserContext(), req.Code, req.Password)
	if errors.Is(err, storage.ErrTokenInvalid) {
		return respondError(c, fiber.StatusBadRequest, "Invalid or expired code")
	}
	if err != nil {
		h.logger.Error("Password reset failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Password reset failed")
	}

	return c.JSON(fiber.Map{"message": "Password updated"})
}

func (h *handlers) getUser(c *fiber.Ctx) error {
	user, err := h.deps.Store.GetUser(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return respondError(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		h.logger.Error("Failed to fetch user", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to fetch user")
	}

	return c.JSON(user)
}
