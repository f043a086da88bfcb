package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parley/internal/config"
	"parley/internal/models"
	"parley/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

// MockBanRepository is a mock of the BanRepository interface
type MockBanRepository struct {
	mock.Mock
}

func (m *MockBanRepository) Create(ctx context.Context, ban *models.Ban) error {
	args := m.Called(ctx, ban)
	return args.Error(0)
}

func (m *MockBanRepository) GetByID(ctx context.Context, id uint) (*models.Ban, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ban), args.Error(1)
}

func (m *MockBanRepository) GetActiveBan(ctx context.Context, userID uint) (*models.Ban, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ban), args.Error(1)
}

func (m *MockBanRepository) Lift(ctx context.Context, banID uint, at time.Time) error {
	args := m.Called(ctx, banID, at)
	return args.Error(0)
}

func (m *MockBanRepository) ListActive(ctx context.Context, limit, offset int) ([]models.Ban, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Ban), args.Error(1)
}

func (m *MockBanRepository) ListForUser(ctx context.Context, userID uint) ([]models.Ban, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Ban), args.Error(1)
}

// testPasswordHash mints a stored hash the login path accepts.
func testPasswordHash(t *testing.T, password string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(digest[:])), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func TestGuestLogin(t *testing.T) {
	app := fiber.New()
	mockUserRepo := new(MockUserRepository)
	mockBanRepo := new(MockBanRepository)

	s := &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		userRepo:    mockUserRepo,
		authService: service.NewAuthService(nil, mockUserRepo, mockBanRepo, nil),
	}

	app.Post("/guest-login", s.GuestLogin)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success without body",
			body: nil,
			mockSetup: func() {
				mockUserRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Success with display name",
			body:           map[string]string{"display_name": "Shadow"},
			mockSetup:      func() {},
			expectedStatus: http.StatusCreated,
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
			var req *http.Request
			if tt.body == nil {
				req = httptest.NewRequest(http.MethodPost, "/guest-login", nil)
			} else {
				body, _ := json.Marshal(tt.body)
				req = httptest.NewRequest(http.MethodPost, "/guest-login", bytes.NewReader(body))
				req.Header.Set("Content-Type", "application/json")
			}

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var result struct {
					Token string      `json:"token"`
					User  models.User `json:"user"`
				}
				assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
				assert.NotEmpty(t, result.Token)
				assert.True(t, strings.HasPrefix(result.User.Username, "guest-"))
				assert.Equal(t, models.UserKindGuest, result.User.Kind)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	app := fiber.New()
	mockUserRepo := new(MockUserRepository)
	mockBanRepo := new(MockBanRepository)

	s := &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		userRepo:    mockUserRepo,
		authService: service.NewAuthService(nil, mockUserRepo, mockBanRepo, nil),
	}

	app.Post("/register", s.Register)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "newuser",
				"email":    "new@example.com",
				"password": "Str0ng!Passw0rd",
			},
			mockSetup: func() {
				mockUserRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Username == "newuser"
				})).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Missing fields",
			body: map[string]string{
				"username": "newuser",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Weak password",
			body: map[string]string{
				"username": "newuser",
				"email":    "new@example.com",
				"password": "short",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Unregistrable role",
			body: map[string]string{
				"username": "newuser",
				"email":    "new@example.com",
				"password": "Str0ng!Passw0rd",
				"role":     "admin",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Duplicate username",
			body: map[string]string{
				"username": "dupuser",
				"email":    "dup@example.com",
				"password": "Str0ng!Passw0rd",
			},
			mockSetup: func() {
				mockUserRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Username == "dupuser"
				})).Return(models.NewConflictError("Username or email already taken"))
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestLogin(t *testing.T) {
	app := fiber.New()
	mockUserRepo := new(MockUserRepository)
	mockBanRepo := new(MockBanRepository)
	mockRoomRepo := new(MockRoomRepository)

	s := &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		userRepo:    mockUserRepo,
		authService: service.NewAuthService(nil, mockUserRepo, mockBanRepo, nil),
		roomService: service.NewRoomService(nil, mockRoomRepo, nil, mockUserRepo, nil, nil, nil, nil, nil),
	}

	app.Post("/login", s.Login)

	hash := testPasswordHash(t, "Str0ng!Passw0rd")

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func()
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "frank",
				"password": "Str0ng!Passw0rd",
			},
			mockSetup: func() {
				mockUserRepo.On("GetByUsername", mock.Anything, "frank").Return(&models.User{
					ID:           1,
					Username:     "frank",
					Kind:         models.UserKindRegistered,
					Role:         models.RoleClient,
					PasswordHash: hash,
				}, nil)
				mockUserRepo.On("UpdateFields", mock.Anything, uint(1), mock.Anything).Return(nil)
				mockRoomRepo.On("ListActiveCreatedBy", mock.Anything, uint(1)).Return([]models.Room{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Wrong password",
			body: map[string]string{
				"username": "frank",
				"password": "not-the-password",
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Unknown user",
			body: map[string]string{
				"username": "ghost",
				"password": "Str0ng!Passw0rd",
			},
			mockSetup: func() {
				mockUserRepo.On("GetByUsername", mock.Anything, "ghost").Return(nil, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Guest accounts have no password login",
			body: map[string]string{
				"username": "guest-a1b2c3",
				"password": "Str0ng!Passw0rd",
			},
			mockSetup: func() {
				mockUserRepo.On("GetByUsername", mock.Anything, "guest-a1b2c3").Return(&models.User{
					ID:       2,
					Username: "guest-a1b2c3",
					Kind:     models.UserKindGuest,
					Role:     models.RoleGuest,
				}, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, _ := app.Test(req)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var result struct {
					Token string      `json:"token"`
					User  models.User `json:"user"`
				}
				assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
				assert.NotEmpty(t, result.Token)
				assert.True(t, result.User.IsOnline)
			}
		})
	}
}

func TestLogout(t *testing.T) {
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
	app.Post("/logout", s.Logout)

	mockUserRepo.On("UpdateFields", mock.Anything, uint(1), mock.MatchedBy(func(fields map[string]any) bool {
		online, ok := fields["is_online"].(bool)
		return ok && !online
	})).Return(nil)
	mockConvRepo.On("ListForUser", mock.Anything, uint(1)).Return([]models.Conversation{}, nil)
	mockRoomRepo.On("ListActiveCreatedBy", mock.Anything, uint(1)).Return([]models.Room{}, nil)

	token, err := s.generateToken(1, "frank")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, _ := app.Test(req)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Logged out", result["message"])
	mockUserRepo.AssertCalled(t, "UpdateFields", mock.Anything, uint(1), mock.Anything)
}
