package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parley/internal/config"
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGetMyProfile(t *testing.T) {
	app := fiber.New()
	mockUserRepo := new(MockUserRepository)
	s := &Server{
		userRepo:    mockUserRepo,
		userService: service.NewUserService(mockUserRepo),
	}

	// Middleware to set userID in Locals
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Get("/users/me", s.GetMyProfile)

	mockUserRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.User{ID: 1, Username: "me"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var user models.User
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "me", user.Username)
}

func TestUpdateMyProfile(t *testing.T) {
	app := fiber.New()
	mockUserRepo := new(MockUserRepository)
	s := &Server{
		userRepo:    mockUserRepo,
		userService: service.NewUserService(mockUserRepo),
	}

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Put("/users/me", s.UpdateMyProfile)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{"display_name": "Night Owl"},
			mockSetup: func() {
				mockUserRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.User{ID: 1, Username: "me"}, nil)
				mockUserRepo.On("Update", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.DisplayName == "Night Owl"
				})).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Display name too long",
			body:           map[string]string{"display_name": strings.Repeat("x", 65)},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestDeleteMyAccount(t *testing.T) {
	app := fiber.New()
	mockUserRepo := new(MockUserRepository)
	mockBanRepo := new(MockBanRepository)
	mockConvRepo := new(MockConversationRepository)
	mockRoomRepo := new(MockRoomRepository)

	s := &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		userRepo:    mockUserRepo,
		authService: service.NewAuthService(nil, mockUserRepo, mockBanRepo, nil),
		conversationService: service.NewConversationService(
			nil, mockConvRepo, nil, nil, mockUserRepo, nil, nil, nil, nil, nil),
		roomService: service.NewRoomService(nil, mockRoomRepo, nil, mockUserRepo, nil, nil, nil, nil, nil),
	}

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Delete("/users/me", s.DeleteMyAccount)

	// Account deletion purges the user's conversations and created rooms
	// before the user row goes.
	mockConvRepo.On("ListForUser", mock.Anything, uint(1)).Return([]models.Conversation{{ID: 7, UserAID: 1, UserBID: 2}}, nil)
	mockConvRepo.On("DeleteCascade", mock.Anything, uint(7)).Return([]uint{}, nil)
	mockRoomRepo.On("ListActiveCreatedBy", mock.Anything, uint(1)).Return([]models.Room{{ID: 3, CreatorID: 1}}, nil)
	mockRoomRepo.On("DeleteCascade", mock.Anything, uint(3)).Return([]uint{}, nil)
	mockUserRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.User{ID: 1, Username: "me"}, nil)
	mockUserRepo.On("Delete", mock.Anything, uint(1)).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/users/me", nil)
	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	mockConvRepo.AssertCalled(t, "DeleteCascade", mock.Anything, uint(7))
	mockRoomRepo.AssertCalled(t, "DeleteCascade", mock.Anything, uint(3))
	mockUserRepo.AssertCalled(t, "Delete", mock.Anything, uint(1))
}
