package server

import (
	"time"

	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

// BanUser handles POST /api/admin/users/:id/ban
// @Summary Ban a user
// @Description Ban a user for a duration or permanently; moderators cannot ban their peers
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body object{reason=string,duration_minutes=int,is_permanent=bool} true "Ban terms"
// @Success 201 {object} models.Ban
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /admin/users/{id}/ban [post]
func (s *Server) BanUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	moderatorID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason          string `json:"reason"`
		DurationMinutes int    `json:"duration_minutes"`
		IsPermanent     bool   `json:"is_permanent"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	ban, err := s.moderationService.Ban(ctx, service.BanInput{
		ModeratorID: moderatorID,
		TargetID:    targetID,
		Reason:      req.Reason,
		Duration:    time.Duration(req.DurationMinutes) * time.Minute,
		IsPermanent: req.IsPermanent,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ban)
}

// UnbanUser handles POST /api/admin/users/:id/unban
// @Summary Unban a user
// @Description Lift a user's active ban and restore their prior role
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /admin/users/{id}/unban [post]
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	moderatorID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderationService.Unban(ctx, moderatorID, targetID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(user)
}

// PromoteUser handles POST /api/admin/users/:id/promote
// @Summary Promote to moderator
// @Description Promote a registered user to moderator; admin only
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /admin/users/{id}/promote [post]
func (s *Server) PromoteUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	adminID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderationService.Promote(ctx, adminID, targetID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(user)
}

// DemoteUser handles POST /api/admin/users/:id/demote
// @Summary Demote a moderator
// @Description Demote a moderator back to a regular role; admin only
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 403 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /admin/users/{id}/demote [post]
func (s *Server) DemoteUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	adminID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderationService.Demote(ctx, adminID, targetID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(user)
}

// GetBans handles GET /api/admin/bans
// @Summary List active bans
// @Description List currently active bans, newest first
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max bans to return"
// @Param offset query int false "Bans to skip"
// @Success 200 {array} models.Ban
// @Failure 403 {object} object{error=string}
// @Router /admin/bans [get]
func (s *Server) GetBans(c *fiber.Ctx) error {
	ctx := c.UserContext()
	actorID := c.Locals("userID").(uint)

	page := parsePagination(c, 50)

	bans, err := s.moderationService.ListBans(ctx, actorID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(bans)
}

// GetUsers handles GET /api/admin/users
// @Summary List users
// @Description List accounts for moderation, newest first
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max users to return"
// @Param offset query int false "Users to skip"
// @Success 200 {array} models.User
// @Failure 403 {object} object{error=string}
// @Router /admin/users [get]
func (s *Server) GetUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	actorID := c.Locals("userID").(uint)

	page := parsePagination(c, 50)

	users, err := s.moderationService.ListUsers(ctx, actorID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(users)
}

// GetUserDetail handles GET /api/admin/users/:id
// @Summary Get user detail
// @Description Moderation view of an account: ban state, history, owned rooms
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} service.UserDetail
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /admin/users/{id} [get]
func (s *Server) GetUserDetail(c *fiber.Ctx) error {
	ctx := c.UserContext()
	actorID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.moderationService.GetUserDetail(ctx, actorID, targetID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(detail)
}
