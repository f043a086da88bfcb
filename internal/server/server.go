// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "parley/docs" // swagger docs
	"parley/internal/cache"
	"parley/internal/clock"
	"parley/internal/config"
	"parley/internal/database"
	"parley/internal/featureflags"
	"parley/internal/media"
	"parley/internal/middleware"
	"parley/internal/models"
	"parley/internal/notifications"
	"parley/internal/repository"
	"parley/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// flagRedisFanout routes realtime pushes through the Redis notifier instead
// of the local hub, for multi-instance deployments.
const flagRedisFanout = "redis_fanout"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	clock          clock.Clock

	authService         *service.AuthService
	userService         *service.UserService
	friendService       *service.FriendService
	conversationService *service.ConversationService
	roomService         *service.RoomService
	reactionService     *service.ReactionService
	moderationService   *service.ModerationService
	mediaService        *service.MediaService
	sweeper             *service.Sweeper
}

// NewServer creates a new server instance, establishing the database and
// Redis connections from config.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	banRepo := repository.NewBanRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	mediaRepo := repository.NewMediaRepository(db)

	prom := middleware.InitMetrics("parley-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		hub:            notifications.NewHub(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		clock:          clock.System(),
	}
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
	}

	var processor media.Processor
	switch cfg.MediaMode {
	case "remote":
		processor = media.NewRemoteProcessor(cfg.MediaRemoteURL,
			time.Duration(cfg.MediaTimeoutSeconds)*time.Second)
	default:
		processor = media.NewLocalProcessor(cfg.MediaUploadDir, cfg.MediaMaxUploadMB)
	}

	server.authService = service.NewAuthService(db, userRepo, banRepo, server.clock)
	server.userService = service.NewUserService(userRepo)
	server.friendService = service.NewFriendService(friendRepo, userRepo)
	server.mediaService = service.NewMediaService(mediaRepo, userRepo, processor)
	server.conversationService = service.NewConversationService(
		db, convRepo, messageRepo, reactionRepo, userRepo, mediaRepo, server.clock,
		server.pushEvent, server.mediaService.CleanupAssets, server.friendService.IsBlocked)
	server.roomService = service.NewRoomService(
		db, roomRepo, reactionRepo, userRepo, mediaRepo, server.clock,
		server.pushEvent, server.isCreatorOnline, server.mediaService.CleanupAssets)
	server.reactionService = service.NewReactionService(
		convRepo, messageRepo, roomRepo, reactionRepo, userRepo, server.pushEvent)
	server.moderationService = service.NewModerationService(
		db, userRepo, banRepo, roomRepo, server.clock, server.disconnectUser)
	server.sweeper = service.NewSweeper(server.conversationService, server.roomService)

	return server, nil
}

// pushEvent delivers a realtime event to the user's live connection. With the
// redis_fanout flag on, delivery goes through the Redis notifier so whichever
// instance holds the user's connection picks it up off the subscription;
// otherwise it goes straight to the local hub.
func (s *Server) pushEvent(userID uint, event notifications.Event) bool {
	if s.notifier != nil && s.featureFlags.Enabled(flagRedisFanout, userID) {
		if err := s.notifier.PublishEvent(context.Background(), userID, event); err == nil {
			return s.hub.IsConnected(userID)
		}
		log.Printf("notifier publish failed for user %d, delivering locally", userID)
	}
	if s.hub == nil {
		return false
	}
	return s.hub.Send(userID, event)
}

// isCreatorOnline reports whether the user is logged in. The IsOnline column
// is toggled by login/logout, so a room creator stays online across brief
// WebSocket drops.
func (s *Server) isCreatorOnline(creatorID uint) bool {
	user, err := s.userRepo.GetByID(context.Background(), creatorID)
	if err != nil {
		return false
	}
	return user.IsOnline
}

// disconnectUser force-closes the user's live connection, if any.
func (s *Server) disconnectUser(userID uint, reason string) bool {
	if s.hub == nil {
		return false
	}
	return s.hub.DisconnectUser(userID, reason)
}

// Sweeper exposes the retention sweeper for out-of-process runs.
func (s *Server) Sweeper() *service.Sweeper {
	return s.sweeper
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// OpenTelemetry spans per request
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit
	// (e.g. limiter) so browser clients still receive CORS headers on error
	// responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	// Backwards-compatible legacy route: map /health to readiness (keeps existing scripts working)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Parley Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/guest-login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "guest_login"), s.GuestLogin)
	auth.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Shareable invite links live at the root so they stay short.
	app.Get("/join/:inviteCode", s.PreviewRoom)
	app.Post("/join/:inviteCode", middleware.RateLimit(
		s.redis, 20, time.Minute, "room_join"), s.JoinRoom)

	// Public media serving; refs are unguessable content hashes.
	api.Get("/media/:ref", s.ServeMedia)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// WebSocket endpoint; authenticates via single-use ticket
	app.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Delete("/me", s.DeleteMyAccount)

	// Friend routes
	friends := protected.Group("/friends")
	friends.Get("/", s.GetFriends)
	// Specific /requests routes before generic /:userId
	friends.Post("/requests", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "friend_request"), s.SendFriendRequest)
	friends.Get("/requests", s.GetPendingRequests)
	friends.Get("/requests/sent", s.GetSentRequests)
	friends.Put("/requests/:requestId/accept", s.AcceptFriendRequest)
	friends.Put("/requests/:requestId/reject", s.RejectFriendRequest)
	friends.Post("/block", s.BlockUser)
	friends.Delete("/block/:userId", s.UnblockUser)
	// Generic /:userId route must be last
	friends.Delete("/:userId", s.Unfriend)

	// Direct chat routes
	chat := protected.Group("/chat")
	chat.Post("/sessions", s.OpenConversation)
	chat.Get("/sessions", s.GetConversations)
	// Reaction routes before the generic /messages/:sessionId pair
	chat.Post("/messages/:messageId/reactions", s.ReactToMessage)
	chat.Delete("/messages/:messageId/reactions", s.RemoveMessageReaction)
	chat.Put("/messages/read/:sessionId", s.MarkConversationRead)
	chat.Get("/messages/:sessionId", s.GetConversationMessages)
	chat.Post("/messages/:sessionId", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_chat"), s.SendConversationMessage)

	// Project (room) routes
	projects := protected.Group("/projects")
	projects.Post("/", middleware.RateLimit(
		s.redis, 5, 5*time.Minute, "create_project"), s.CreateProject)
	projects.Get("/", s.GetMyProjects)
	// Reaction routes before generic /:id routes
	projects.Post("/messages/:messageId/reactions", s.ReactToProjectMessage)
	projects.Delete("/messages/:messageId/reactions", s.RemoveProjectMessageReaction)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	projects.Get("/:id/messages", s.GetProjectMessages)
	projects.Post("/:id/messages", middleware.RateLimit(
		s.redis, 30, time.Minute, "project_chat"), s.SendProjectMessage)
	projects.Get("/:id/members", s.GetProjectMembers)
	projects.Delete("/:id/members/me", s.LeaveProject)
	projects.Put("/:id/complete", s.CompleteProject)
	projects.Put("/:id/archive", s.ArchiveProject)
	// Generic /:id route must be last
	projects.Get("/:id", s.GetProject)

	// Media routes
	mediaRoutes := protected.Group("/media")
	mediaRoutes.Post("/upload", middleware.RateLimit(
		s.redis, 10, time.Minute, "media_upload"), s.UploadMedia)
	mediaRoutes.Delete("/:id", s.DeleteMedia)

	// Moderation routes
	admin := protected.Group("/admin", s.ModeratorRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/bans", s.GetBans)
	admin.Get("/users", s.GetUsers)
	admin.Post("/users/:id/ban", s.BanUser)
	admin.Post("/users/:id/unban", s.UnbanUser)
	admin.Post("/users/:id/promote", s.AdminRequired(), s.PromoteUser)
	admin.Post("/users/:id/demote", s.AdminRequired(), s.DemoteUser)
	admin.Get("/users/:id", s.GetUserDetail)
}

// HealthCheck is a legacy/simple alias for ReadinessCheck
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return s.ReadinessCheck(c)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is considered required for full readiness in this app
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "parley",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AuthRequired returns the authentication middleware. It accepts a single-use
// WebSocket ticket or a Bearer token, then loads the user and enforces ban
// state, so an expired ban is lifted by the next authenticated request.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := c.Path() == "/ws"

		// 1. Try WebSocket ticket first (short-lived, single-use)
		if ticket := c.Query("ticket"); ticket != "" {
			if userID, ok := cache.RedeemWSTicket(c.UserContext(), ticket); ok {
				return s.finishAuth(c, userID)
			}
			// A spent or unknown ticket is fatal on the WS path; other paths
			// may still carry a bearer token.
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT (Bearer token or query param)
		tokenString := middleware.BearerToken(c)

		// Reject token in query param for the WS route (must use ticket)
		if tokenString == "" && !isWSPath {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(tokenString, s.config.JWTSecret)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		userID, err := middleware.UserIDFromClaims(claims)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		// Check JTI for revocation
		if jti := middleware.JTI(claims); jti != "" && cache.IsTokenDenied(c.UserContext(), jti) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		return s.finishAuth(c, userID)
	}
}

// finishAuth loads the authenticated user, applies the lazy ban lift, and
// stores identity in the request context.
func (s *Server) finishAuth(c *fiber.Ctx, userID uint) error {
	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		if models.CodeOf(err) == models.CodeNotFound {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Account no longer exists"))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	banned, err := s.authService.ResolveBanState(c.UserContext(), user)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if banned {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Account is banned"))
	}

	c.Locals("userID", user.ID)
	c.Locals("role", user.Role)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, user.ID)
	c.SetUserContext(ctx)

	return c.Next()
}

// ModeratorRequired returns middleware that rejects users below moderator
// with 403. Must be placed after AuthRequired so that role is available in
// locals.
func (s *Server) ModeratorRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(models.Role)
		if !ok || !role.Elevated() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Moderator access required"))
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that role is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(models.Role)
		if !ok || role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// optionalUserID extracts the user from a Bearer token when present, without
// enforcing authentication.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return 0, false
	}

	claims, err := middleware.ParseToken(tokenString, s.config.JWTSecret)
	if err != nil {
		return 0, false
	}

	userID, err := middleware.UserIDFromClaims(claims)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Parley API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the hub to the Redis subscriber if available
	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	// In-process retention sweeps
	go s.sweeper.Run(s.shutdownCtx, time.Duration(s.config.SweepIntervalMin)*time.Minute)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop wiring and sweeper goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close WebSocket connections gracefully
	if s.hub != nil {
		if err := s.hub.Close(); err != nil {
			log.Printf("error closing %s hub: %v", s.hub.Name(), err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
