package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"parley/internal/cache"
	"parley/internal/config"
	"parley/internal/database"
	"parley/internal/server"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testPassword satisfies the password policy for every account the suite
// registers.
const testPassword = "Ephemeral!Pass42"

type authUser struct {
	ID       uint
	Username string
	Token    string
}

// parleyTestApp is one fully wired server instance over throwaway
// infrastructure: an in-memory sqlite database and a per-test miniredis, so
// the suite needs nothing running on the host. The raw DB handle is exposed
// for fixture surgery (backdating expiries, promoting admins).
type parleyTestApp struct {
	App *fiber.App
	Srv *server.Server
	DB  *gorm.DB
}

func newParleyTestApp(t *testing.T) *parleyTestApp {
	t.Helper()

	// Per-route rate limiting keys off APP_ENV, not the config struct.
	if err := os.Setenv("APP_ENV", "test"); err != nil {
		t.Fatalf("set APP_ENV: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// A second pooled connection would open its own empty :memory: database.
	sqlDB.SetMaxOpenConns(1)

	if err := database.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache.InitRedis(mr.Addr())
	t.Cleanup(func() {
		mr.Close()
		cache.InitRedis("127.0.0.1:0")
	})

	cfg := &config.Config{
		JWTSecret:        "parley-integration-secret",
		Port:             "0",
		Env:              "test",
		MediaMode:        "local",
		MediaUploadDir:   t.TempDir(),
		MediaMaxUploadMB: 8,
		SweepIntervalMin: 5,
	}

	srv, err := server.NewServerWithDeps(cfg, db, cache.GetClient())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return &parleyTestApp{App: app, Srv: srv, DB: db}
}

func (ts *parleyTestApp) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ts.App.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

// registerParleyUser creates a registered account through the public API and
// returns its identity and token.
func registerParleyUser(t *testing.T, ts *parleyTestApp, prefix string) authUser {
	t.Helper()

	username := "u" + uuid.NewString()[:10]
	payload := map[string]string{
		"username":     username,
		"email":        fmt.Sprintf("%s_%s@example.com", prefix, uuid.NewString()[:8]),
		"password":     testPassword,
		"display_name": prefix,
	}

	resp := ts.do(t, jsonReq(t, http.MethodPost, "/api/auth/register", payload))
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register expected 201 got %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
		User  struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if body.Token == "" || body.User.ID == 0 {
		t.Fatalf("invalid register response: %+v", body)
	}
	return authUser{ID: body.User.ID, Username: body.User.Username, Token: body.Token}
}

// guestParleyUser provisions a throwaway guest identity through the public
// API.
func guestParleyUser(t *testing.T, ts *parleyTestApp, displayName string) authUser {
	t.Helper()

	resp := ts.do(t, jsonReq(t, http.MethodPost, "/api/auth/guest-login",
		map[string]string{"display_name": displayName}))
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("guest login expected 201 got %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
		User  struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode guest login response: %v", err)
	}
	if body.Token == "" || body.User.ID == 0 {
		t.Fatalf("invalid guest login response: %+v", body)
	}
	return authUser{ID: body.User.ID, Username: body.User.Username, Token: body.Token}
}

// makeParleyAdmin flips the user's role behind the API's back. The user row
// is cached on first authenticated request, so the cache entry has to go too.
func makeParleyAdmin(t *testing.T, ts *parleyTestApp, userID uint) {
	t.Helper()
	if err := ts.DB.Exec(`UPDATE users SET role = 'admin' WHERE id = ?`, userID).Error; err != nil {
		t.Fatalf("promote user to admin: %v", err)
	}
	cache.InvalidateUser(context.Background(), userID)
}

func jsonReq(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	if payload == nil {
		return httptest.NewRequest(method, path, nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func authReq(t *testing.T, method, path, token string, payload any) *http.Request {
	t.Helper()
	req := jsonReq(t, method, path, payload)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
