package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockConversationRepository is a mock of the ConversationRepository interface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetByPair(ctx context.Context, userX, userY uint) (*models.Conversation, error) {
	args := m.Called(ctx, userX, userY)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListActiveForUser(ctx context.Context, userID uint, now time.Time) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, now)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Conversation, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Update(ctx context.Context, conversation *models.Conversation) error {
	args := m.Called(ctx, conversation)
	return args.Error(0)
}

func (m *MockConversationRepository) SetLoggedOut(ctx context.Context, conversationID uint, sideA bool) error {
	args := m.Called(ctx, conversationID, sideA)
	return args.Error(0)
}

func (m *MockConversationRepository) ResetLoggedOut(ctx context.Context, conversationID uint, sideA bool) error {
	args := m.Called(ctx, conversationID, sideA)
	return args.Error(0)
}

func (m *MockConversationRepository) DeleteCascade(ctx context.Context, conversationID uint) ([]uint, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).([]uint), args.Error(1)
}

// MockMessageRepository is a mock of the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *models.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) ListVisible(ctx context.Context, conversationID uint, sideA bool, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, sideA, limit, offset)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) ListUnreadFromPeer(ctx context.Context, conversationID, readerID uint) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, readerID)
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, messageID uint, at time.Time) error {
	args := m.Called(ctx, messageID, at)
	return args.Error(0)
}

func (m *MockMessageRepository) HideForSide(ctx context.Context, conversationID uint, sideA bool) error {
	args := m.Called(ctx, conversationID, sideA)
	return args.Error(0)
}

// conversationTestServer wires a conversation service over the given mocks.
func conversationTestServer(convRepo *MockConversationRepository, messageRepo *MockMessageRepository,
	reactionRepo *MockReactionRepository, userRepo *MockUserRepository,
	isBlocked func(ctx context.Context, userX, userY uint) (bool, error)) *Server {
	return &Server{
		conversationService: service.NewConversationService(
			nil, convRepo, messageRepo, reactionRepo, userRepo, nil, nil, nil, nil, isBlocked),
	}
}

func TestOpenConversation(t *testing.T) {
	app := fiber.New()
	mockConvRepo := new(MockConversationRepository)
	mockUserRepo := new(MockUserRepository)

	isBlocked := func(_ context.Context, _, peerID uint) (bool, error) {
		return peerID == 66, nil
	}
	s := conversationTestServer(mockConvRepo, nil, nil, mockUserRepo, isBlocked)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Post("/sessions", s.OpenConversation)

	tests := []struct {
		name           string
		body           map[string]uint
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]uint{"peer_id": 2},
			mockSetup: func() {
				mockUserRepo.On("GetByID", mock.Anything, uint(2)).Return(&models.User{ID: 2}, nil)
				mockConvRepo.On("GetByPair", mock.Anything, uint(1), uint(2)).Return(nil, nil)
				mockConvRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing peer",
			body:           map[string]uint{},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Self conversation",
			body:           map[string]uint{"peer_id": 1},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Peer not found",
			body: map[string]uint{"peer_id": 99},
			mockSetup: func() {
				mockUserRepo.On("GetByID", mock.Anything, uint(99)).Return(nil, models.NewNotFoundError("User", 99))
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Blocked peer",
			body: map[string]uint{"peer_id": 66},
			mockSetup: func() {
				mockUserRepo.On("GetByID", mock.Anything, uint(66)).Return(&models.User{ID: 66}, nil)
			},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestOpenConversation_ReusesActive(t *testing.T) {
	app := fiber.New()
	mockConvRepo := new(MockConversationRepository)
	mockUserRepo := new(MockUserRepository)
	s := conversationTestServer(mockConvRepo, nil, nil, mockUserRepo, nil)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Post("/sessions", s.OpenConversation)

	existing := &models.Conversation{
		ID:        5,
		UserAID:   1,
		UserBID:   2,
		IsActive:  true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	mockUserRepo.On("GetByID", mock.Anything, uint(2)).Return(&models.User{ID: 2}, nil)
	mockConvRepo.On("GetByPair", mock.Anything, uint(1), uint(2)).Return(existing, nil)

	body, _ := json.Marshal(map[string]uint{"peer_id": 2})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var conversation models.Conversation
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&conversation))
	assert.Equal(t, uint(5), conversation.ID)
	mockConvRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetConversations(t *testing.T) {
	app := fiber.New()
	mockConvRepo := new(MockConversationRepository)
	s := conversationTestServer(mockConvRepo, nil, nil, nil, nil)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Get("/sessions", s.GetConversations)

	mockConvRepo.On("ListActiveForUser", mock.Anything, uint(1), mock.Anything).Return([]models.Conversation{
		{ID: 5, UserAID: 1, UserBID: 2},
		{ID: 6, UserAID: 1, UserBID: 3},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var conversations []models.Conversation
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&conversations))
	assert.Len(t, conversations, 2)
}

func TestGetConversationMessages(t *testing.T) {
	app := fiber.New()
	mockConvRepo := new(MockConversationRepository)
	mockMessageRepo := new(MockMessageRepository)
	mockReactionRepo := new(MockReactionRepository)
	s := conversationTestServer(mockConvRepo, mockMessageRepo, mockReactionRepo, nil, nil)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Get("/messages/:sessionId", s.GetConversationMessages)

	tests := []struct {
		name           string
		sessionIDParam string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name:           "Success",
			sessionIDParam: "5",
			mockSetup: func() {
				mockConvRepo.On("GetByID", mock.Anything, uint(5)).Return(&models.Conversation{
					ID: 5, UserAID: 1, UserBID: 2,
				}, nil)
				mockMessageRepo.On("ListVisible", mock.Anything, uint(5), true, 50, 0).Return([]models.Message{
					{ID: 10, ConversationID: 5, SenderID: 2, Content: "hey"},
				}, nil)
				mockReactionRepo.On("ListForMessages", mock.Anything, models.MessageKindDirect, []uint{10}).
					Return([]models.Reaction{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Not a participant",
			sessionIDParam: "6",
			mockSetup: func() {
				mockConvRepo.On("GetByID", mock.Anything, uint(6)).Return(&models.Conversation{
					ID: 6, UserAID: 3, UserBID: 4,
				}, nil)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Invalid ID",
			sessionIDParam: "abc",
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			req := httptest.NewRequest(http.MethodGet, "/messages/"+tt.sessionIDParam, nil)
			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestSendConversationMessage(t *testing.T) {
	app := fiber.New()
	mockConvRepo := new(MockConversationRepository)
	mockMessageRepo := new(MockMessageRepository)
	s := conversationTestServer(mockConvRepo, mockMessageRepo, nil, nil, nil)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Post("/messages/:sessionId", s.SendConversationMessage)

	tests := []struct {
		name           string
		sessionIDParam string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name:           "Empty content",
			sessionIDParam: "5",
			body:           map[string]string{"content": ""},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "System type rejected",
			sessionIDParam: "5",
			body:           map[string]string{"content": "hi", "type": "system"},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Not a participant",
			sessionIDParam: "6",
			body:           map[string]string{"content": "hi"},
			mockSetup: func() {
				mockConvRepo.On("GetByID", mock.Anything, uint(6)).Return(&models.Conversation{
					ID: 6, UserAID: 3, UserBID: 4,
				}, nil)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Expired conversation",
			sessionIDParam: "7",
			body:           map[string]string{"content": "hi"},
			mockSetup: func() {
				mockConvRepo.On("GetByID", mock.Anything, uint(7)).Return(&models.Conversation{
					ID: 7, UserAID: 1, UserBID: 2, IsActive: true,
					ExpiresAt: time.Now().Add(-time.Hour),
				}, nil)
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/messages/"+tt.sessionIDParam, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestMarkConversationRead(t *testing.T) {
	app := fiber.New()
	mockConvRepo := new(MockConversationRepository)
	mockMessageRepo := new(MockMessageRepository)
	s := conversationTestServer(mockConvRepo, mockMessageRepo, nil, nil, nil)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return c.Next()
	})
	app.Put("/messages/read/:sessionId", s.MarkConversationRead)

	mockConvRepo.On("GetByID", mock.Anything, uint(5)).Return(&models.Conversation{
		ID: 5, UserAID: 1, UserBID: 2,
	}, nil)
	mockMessageRepo.On("ListUnreadFromPeer", mock.Anything, uint(5), uint(1)).Return([]models.Message{
		{ID: 10, ConversationID: 5, SenderID: 2},
		{ID: 11, ConversationID: 5, SenderID: 2},
	}, nil)
	mockMessageRepo.On("MarkRead", mock.Anything, uint(10), mock.Anything).Return(nil)
	mockMessageRepo.On("MarkRead", mock.Anything, uint(11), mock.Anything).Return(nil)

	req := httptest.NewRequest(http.MethodPut, "/messages/read/5", nil)
	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]int
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 2, result["updated"])
}
