package server

import (
	"parley/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ReactToMessage handles POST /api/chat/messages/:messageId/reactions
// @Summary React to a direct message
// @Description Set an emoji reaction; reacting again replaces the previous emoji
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param messageId path int true "Message ID"
// @Param request body object{emoji=string} true "Reaction"
// @Success 201 {object} service.ReactionView
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /chat/messages/{messageId}/reactions [post]
func (s *Server) ReactToMessage(c *fiber.Ctx) error {
	return s.react(c, models.MessageKindDirect)
}

// RemoveMessageReaction handles DELETE /api/chat/messages/:messageId/reactions
// @Summary Remove a direct message reaction
// @Description Remove the caller's reaction from a message
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param messageId path int true "Message ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /chat/messages/{messageId}/reactions [delete]
func (s *Server) RemoveMessageReaction(c *fiber.Ctx) error {
	return s.unreact(c, models.MessageKindDirect)
}

// ReactToProjectMessage handles POST /api/projects/messages/:messageId/reactions
// @Summary React to a project message
// @Description Set an emoji reaction on a room message; secret messages accept reactions only from their two parties
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param messageId path int true "Message ID"
// @Param request body object{emoji=string} true "Reaction"
// @Success 201 {object} service.ReactionView
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /projects/messages/{messageId}/reactions [post]
func (s *Server) ReactToProjectMessage(c *fiber.Ctx) error {
	return s.react(c, models.MessageKindRoom)
}

// RemoveProjectMessageReaction handles DELETE /api/projects/messages/:messageId/reactions
// @Summary Remove a project message reaction
// @Description Remove the caller's reaction from a room message
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param messageId path int true "Message ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /projects/messages/{messageId}/reactions [delete]
func (s *Server) RemoveProjectMessageReaction(c *fiber.Ctx) error {
	return s.unreact(c, models.MessageKindRoom)
}

func (s *Server) react(c *fiber.Ctx, kind models.MessageKind) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "messageId")
	if err != nil {
		return nil
	}

	var req struct {
		Emoji string `json:"emoji"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	reaction, err := s.reactionService.React(ctx, kind, messageID, userID, req.Emoji)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(reaction)
}

func (s *Server) unreact(c *fiber.Ctx, kind models.MessageKind) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "messageId")
	if err != nil {
		return nil
	}

	if err := s.reactionService.Unreact(ctx, kind, messageID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Reaction removed",
	})
}
