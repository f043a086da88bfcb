package server

import (
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateProject handles POST /api/projects
// @Summary Create a project room
// @Description Create a project room with a fresh invite code
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,description=string,is_permanent=bool} true "Project details"
// @Success 201 {object} models.Room
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Router /projects [post]
func (s *Server) CreateProject(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPermanent bool   `json:"is_permanent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomService.Create(ctx, service.CreateRoomInput{
		CreatorID:   userID,
		Name:        req.Name,
		Description: req.Description,
		IsPermanent: req.IsPermanent,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetMyProjects handles GET /api/projects
// @Summary List my projects
// @Description List project rooms the user belongs to
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Room
// @Router /projects [get]
func (s *Server) GetMyProjects(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	rooms, err := s.roomService.ListForUser(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(rooms)
}

// GetProject handles GET /api/projects/:id
// @Summary Get a project room
// @Description Get a project room the user belongs to
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} models.Room
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /projects/{id} [get]
func (s *Server) GetProject(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	room, err := s.roomService.GetForMember(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(room)
}

// GetProjectMessages handles GET /api/projects/:id/messages
// @Summary Get project messages
// @Description Get room messages visible to the requester, oldest first
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param limit query int false "Max messages to return"
// @Param offset query int false "Messages to skip"
// @Success 200 {array} service.RoomMessageView
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /projects/{id}/messages [get]
func (s *Server) GetProjectMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 50)

	messages, err := s.roomService.FetchMessages(ctx, roomID, userID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(messages)
}

// SendProjectMessage handles POST /api/projects/:id/messages
// @Summary Send a project message
// @Description Post a message to the room; recipient_id makes it a secret message
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Param request body object{content=string,type=string,caption=string,media_id=uint,reply_to_id=uint,recipient_id=uint} true "Message"
// @Success 201 {object} service.RoomMessageView
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /projects/{id}/messages [post]
func (s *Server) SendProjectMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content     string `json:"content"`
		Type        string `json:"type"`
		Caption     string `json:"caption"`
		MediaID     *uint  `json:"media_id"`
		ReplyToID   *uint  `json:"reply_to_id"`
		RecipientID *uint  `json:"recipient_id"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.roomService.SendMessage(ctx, service.SendRoomMessageInput{
		SenderID:    userID,
		RoomID:      roomID,
		Content:     req.Content,
		Type:        models.MessageType(req.Type),
		Caption:     req.Caption,
		MediaID:     req.MediaID,
		ReplyToID:   req.ReplyToID,
		RecipientID: req.RecipientID,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message)
}

// GetProjectMembers handles GET /api/projects/:id/members
// @Summary List project members
// @Description List the room's members; members only
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {array} models.RoomMembership
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /projects/{id}/members [get]
func (s *Server) GetProjectMembers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.roomService.ListMembers(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(members)
}

// LeaveProject handles DELETE /api/projects/:id/members/me
// @Summary Leave a project
// @Description Leave the room; the creator cannot leave their own room
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /projects/{id}/members/me [delete]
func (s *Server) LeaveProject(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.roomService.Leave(ctx, roomID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Left project",
	})
}

// CompleteProject handles PUT /api/projects/:id/complete
// @Summary Complete a project
// @Description Mark the room completed; creator or moderator only
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} models.Room
// @Failure 403 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /projects/{id}/complete [put]
func (s *Server) CompleteProject(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	room, err := s.roomService.Complete(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(room)
}

// ArchiveProject handles PUT /api/projects/:id/archive
// @Summary Archive a project
// @Description Retire the room; creator or moderator only
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path int true "Project ID"
// @Success 200 {object} models.Room
// @Failure 403 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /projects/{id}/archive [put]
func (s *Server) ArchiveProject(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	roomID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	room, err := s.roomService.Archive(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(room)
}

// PreviewRoom handles GET /join/:inviteCode
// @Summary Preview an invite
// @Description Public pre-join view of the room behind an invite code
// @Tags projects
// @Produce json
// @Param inviteCode path string true "Invite code"
// @Success 200 {object} service.RoomPreview
// @Failure 404 {object} object{error=string}
// @Router /join/{inviteCode} [get]
func (s *Server) PreviewRoom(c *fiber.Ctx) error {
	ctx := c.UserContext()

	preview, err := s.roomService.Preview(ctx, c.Params("inviteCode"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(preview)
}

// JoinRoom handles POST /join/:inviteCode
// @Summary Join via invite
// @Description Join the room behind an invite code. Unauthenticated callers get a guest account and token in the response.
// @Tags projects
// @Accept json
// @Produce json
// @Param inviteCode path string true "Invite code"
// @Param request body object{display_name=string} false "Display name for guest provisioning"
// @Success 200 {object} object{room=models.Room,token=string,user=models.User}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Failure 422 {object} object{error=string}
// @Router /join/{inviteCode} [post]
func (s *Server) JoinRoom(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		DisplayName string `json:"display_name"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	// An invite works without an account: provision a guest on the spot.
	userID, authed := s.optionalUserID(c)
	var guest *models.User
	var token string
	if !authed {
		user, err := s.authService.GuestLogin(ctx, req.DisplayName)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		token, err = s.generateToken(user.ID, user.Username)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
		guest = user
		userID = user.ID
	}

	room, err := s.roomService.Join(ctx, c.Params("inviteCode"), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	resp := fiber.Map{"room": room}
	if guest != nil {
		resp["token"] = token
		resp["user"] = guest
	}
	return c.JSON(resp)
}
