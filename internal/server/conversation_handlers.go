package server

import (
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

// OpenConversation handles POST /api/chat/sessions
// @Summary Open a conversation
// @Description Open (or reuse) the direct conversation with another user
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{peer_id=uint} true "Peer user ID"
// @Success 201 {object} models.Conversation
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /chat/sessions [post]
func (s *Server) OpenConversation(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		PeerID uint `json:"peer_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.PeerID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("peer_id is required"))
	}

	conversation, err := s.conversationService.Open(ctx, userID, req.PeerID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(conversation)
}

// GetConversations handles GET /api/chat/sessions
// @Summary List conversations
// @Description List the user's active (non-expired, visible) conversations
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Conversation
// @Router /chat/sessions [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	conversations, err := s.conversationService.ListActive(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(conversations)
}

// GetConversationMessages handles GET /api/chat/messages/:sessionId
// @Summary Get conversation messages
// @Description Get messages visible to the requester, oldest first
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param sessionId path int true "Conversation ID"
// @Param limit query int false "Max messages to return"
// @Param offset query int false "Messages to skip"
// @Success 200 {array} service.MessageView
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /chat/messages/{sessionId} [get]
func (s *Server) GetConversationMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "sessionId")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 50)

	messages, err := s.conversationService.FetchVisibleMessages(ctx, convID, userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(messages)
}

// SendConversationMessage handles POST /api/chat/messages/:sessionId
// @Summary Send a direct message
// @Description Send a message in a conversation; the peer gets one realtime push
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path int true "Conversation ID"
// @Param request body object{content=string,type=string,caption=string,media_id=uint,reply_to_id=uint} true "Message"
// @Success 201 {object} service.MessageView
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /chat/messages/{sessionId} [post]
func (s *Server) SendConversationMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "sessionId")
	if err != nil {
		return nil
	}

	var req struct {
		Content   string `json:"content"`
		Type      string `json:"type"`
		Caption   string `json:"caption"`
		MediaID   *uint  `json:"media_id"`
		ReplyToID *uint  `json:"reply_to_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.conversationService.Send(ctx, service.SendDirectMessageInput{
		SenderID:       userID,
		ConversationID: convID,
		Content:        req.Content,
		Type:           models.MessageType(req.Type),
		Caption:        req.Caption,
		MediaID:        req.MediaID,
		ReplyToID:      req.ReplyToID,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// MarkConversationRead handles PUT /api/chat/messages/read/:sessionId
// @Summary Mark conversation read
// @Description Mark all peer messages in the conversation as read
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param sessionId path int true "Conversation ID"
// @Success 200 {object} object{updated=int}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /chat/messages/read/{sessionId} [put]
func (s *Server) MarkConversationRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "sessionId")
	if err != nil {
		return nil
	}

	updated, err := s.conversationService.MarkRead(ctx, convID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"updated": updated,
	})
}
