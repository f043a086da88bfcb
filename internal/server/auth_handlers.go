package server

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"parley/internal/middleware"
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GuestLogin handles POST /api/auth/guest-login
// @Summary Guest login
// @Description Provision a throwaway guest account and return a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{display_name=string} false "Optional display name"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} object{error=string}
// @Router /auth/guest-login [post]
func (s *Server) GuestLogin(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		DisplayName string `json:"display_name"`
	}
	// Body is optional for guest login
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	user, err := s.authService.GuestLogin(ctx, req.DisplayName)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Register handles POST /api/auth/register
// @Summary Register account
// @Description Register a credentialed account; registration doubles as the first login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,display_name=string,role=string} true "Registration request"
// @Success 201 {object} object{token=string,user=models.User}
// @Failure 400 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Username, email, and password are required"))
	}

	user, err := s.authService.Register(ctx, service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        models.Role(req.Role),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,password=string} true "Login credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 400 {object} object{error=string}
// @Failure 401 {object} object{error=string}
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.authService.Login(ctx, req.Username, req.Password)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Coming back online cancels pending grace deletions on rooms the user
	// created.
	if err := s.roomService.MarkCreatorActive(ctx, user.ID); err != nil {
		log.Printf("failed to reactivate rooms for user %d: %v", user.ID, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the presented token, go offline, and trigger ephemeral cleanup
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} object{error=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	// Re-parse the presented token for its JTI and expiry so the deny-list
	// entry lives exactly as long as the token would have.
	var jti string
	var expiry time.Time
	if tokenString := middleware.BearerToken(c); tokenString != "" {
		if claims, err := middleware.ParseToken(tokenString, s.config.JWTSecret); err == nil {
			jti = middleware.JTI(claims)
			expiry = middleware.Expiry(claims)
		}
	}

	if err := s.authService.Logout(ctx, userID, jti, expiry); err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Ephemeral cleanup. Failures here are logged, not surfaced: the user is
	// already logged out.
	if err := s.conversationService.OnUserLogout(ctx, userID); err != nil {
		log.Printf("failed to clear conversations for user %d on logout: %v", userID, err)
	}
	if err := s.roomService.MarkCreatorLoggedOut(ctx, userID); err != nil {
		log.Printf("failed to schedule room grace for user %d on logout: %v", userID, err)
	}

	s.disconnectUser(userID, "logged_out")

	return c.JSON(fiber.Map{
		"message": "Logged out",
	})
}

// generateToken creates a JWT token for the given user ID and username
func (s *Server) generateToken(userID uint, username string) (string, error) {
	// Validate secret exists
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10), // Subject (user ID as string)
		"username": username,                               // Username (cached in token)
		"iss":      middleware.TokenIssuer,                 // Issuer
		"aud":      middleware.TokenAudience,               // Audience
		"exp":      now.Add(time.Hour * 24 * 7).Unix(),     // Expiration (7 days)
		"iat":      now.Unix(),                             // Issued at
		"nbf":      now.Unix(),                             // Not before
		"jti":      s.generateJTI(),                        // JWT ID (unique identifier)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func (s *Server) generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
