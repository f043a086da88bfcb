package server

import (
	"parley/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFriends handles GET /api/friends
// @Summary List friends
// @Description List the user's accepted friends
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /friends [get]
func (s *Server) GetFriends(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	friends, err := s.friendService.ListFriends(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(friends)
}

// SendFriendRequest handles POST /api/friends/requests
// @Summary Send friend request
// @Description Send a friend request to another registered user
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{addressee_id=uint} true "Target user"
// @Success 201 {object} models.Friendship
// @Failure 400 {object} object{error=string}
// @Failure 403 {object} object{error=string}
// @Failure 409 {object} object{error=string}
// @Router /friends/requests [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		AddresseeID uint `json:"addressee_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.AddresseeID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("addressee_id is required"))
	}

	friendship, err := s.friendService.SendRequest(ctx, userID, req.AddresseeID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(friendship)
}

// GetPendingRequests handles GET /api/friends/requests
// @Summary List pending requests
// @Description List friend requests awaiting the user's answer
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Friendship
// @Router /friends/requests [get]
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.ListPending(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(requests)
}

// GetSentRequests handles GET /api/friends/requests/sent
// @Summary List sent requests
// @Description List the user's outgoing pending friend requests
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Friendship
// @Router /friends/requests/sent [get]
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	requests, err := s.friendService.ListSent(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(requests)
}

// AcceptFriendRequest handles PUT /api/friends/requests/:requestId/accept
// @Summary Accept friend request
// @Description Accept a pending request; addressee only
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 200 {object} models.Friendship
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /friends/requests/{requestId}/accept [put]
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	friendship, err := s.friendService.Accept(ctx, requestID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(friendship)
}

// RejectFriendRequest handles PUT /api/friends/requests/:requestId/reject
// @Summary Reject friend request
// @Description Decline a pending request; addressee only
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 200 {object} models.Friendship
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /friends/requests/{requestId}/reject [put]
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	friendship, err := s.friendService.Reject(ctx, requestID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(friendship)
}

// BlockUser handles POST /api/friends/block
// @Summary Block a user
// @Description Block a user, destroying whatever relationship existed
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{user_id=uint} true "Target user"
// @Success 200 {object} models.Friendship
// @Failure 400 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /friends/block [post]
func (s *Server) BlockUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}

	friendship, err := s.friendService.Block(ctx, userID, req.UserID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(friendship)
}

// UnblockUser handles DELETE /api/friends/block/:userId
// @Summary Unblock a user
// @Description Remove a block the caller placed; no relationship is restored
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} object{error=string}
// @Failure 404 {object} object{error=string}
// @Router /friends/block/{userId} [delete]
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.friendService.Unblock(ctx, userID, targetID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "User unblocked",
	})
}

// Unfriend handles DELETE /api/friends/:userId
// @Summary Remove a friend
// @Description Remove an accepted friendship from either side
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} object{error=string}
// @Router /friends/{userId} [delete]
func (s *Server) Unfriend(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	friendID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.friendService.Unfriend(ctx, userID, friendID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Friend removed",
	})
}
