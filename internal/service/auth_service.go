package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"parley/internal/cache"
	"parley/internal/clock"
	"parley/internal/models"
	"parley/internal/observability"
	"parley/internal/repository"
	"parley/internal/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxDisplayNameLen      = 64
	guestUsernameAttempts  = 5
	guestUsernameRandomLen = 8
)

// AuthService provides account lifecycle logic: guest provisioning,
// registration, credential checks, the lazy ban lift and logout bookkeeping.
// Conversation and room logout cascades are driven by the caller.
type AuthService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	banRepo  repository.BanRepository
	clock    clock.Clock
}

// RegisterInput is the input for registering an account.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Role        models.Role
}

// NewAuthService returns a new AuthService.
func NewAuthService(db *gorm.DB, userRepo repository.UserRepository, banRepo repository.BanRepository, clk clock.Clock) *AuthService {
	if clk == nil {
		clk = clock.System()
	}
	return &AuthService{db: db, userRepo: userRepo, banRepo: banRepo, clock: clk}
}

// GuestLogin provisions a throwaway guest account and marks it online.
func (s *AuthService) GuestLogin(ctx context.Context, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, models.NewValidationError("Display name too long")
	}

	now := s.clock.Now()
	for attempt := 0; attempt < guestUsernameAttempts; attempt++ {
		username := fmt.Sprintf("guest-%s", strings.ToLower(uuid.New().String()[:guestUsernameRandomLen]))
		user := &models.User{
			Username:    username,
			DisplayName: displayName,
			Kind:        models.UserKindGuest,
			Role:        models.RoleGuest,
			IsOnline:    true,
			LastLoginAt: &now,
		}
		err := s.userRepo.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if models.CodeOf(err) != models.CodeConflict {
			return nil, err
		}
	}
	return nil, models.NewInternalError(errors.New("could not allocate a guest username"))
}

// Register creates a credentialed account and marks it online; registration
// doubles as the first login.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, models.NewValidationError("Display name too long")
	}
	if in.Role == "" {
		in.Role = models.RoleClient
	}
	if !in.Role.Registrable() {
		return nil, models.NewValidationError("Role must be client or freelancer")
	}

	hash, err := validation.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := s.clock.Now()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	user := &models.User{
		Username:     in.Username,
		DisplayName:  displayName,
		Email:        &email,
		PasswordHash: hash,
		Kind:         models.UserKindRegistered,
		Role:         in.Role,
		IsOnline:     true,
		LastLoginAt:  &now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials, lazily lifts an expired ban, and marks the
// user online. Guest accounts have no password path.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsGuest() || user.PasswordHash == "" || !validation.VerifyPassword(user.PasswordHash, password) {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	banned, err := s.ResolveBanState(ctx, user)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, models.NewForbiddenError("Your account is banned")
	}

	now := s.clock.Now()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]any{
		"is_online":     true,
		"last_login_at": now,
	}); err != nil {
		return nil, err
	}
	user.IsOnline = true
	user.LastLoginAt = &now
	return user, nil
}

// ResolveBanState reports whether the user is currently banned. A ban whose
// expiry has passed is lifted here, on the spot: there is no background job
// watching ban expiries.
func (s *AuthService) ResolveBanState(ctx context.Context, user *models.User) (bool, error) {
	if user.Role != models.RoleBanned {
		return false, nil
	}

	ban, err := s.banRepo.GetActiveBan(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if ban == nil {
		// Role says banned but no active ban backs it. Repair the role.
		restored := models.RoleClient
		if user.IsGuest() {
			restored = models.RoleGuest
		}
		if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]any{"role": restored}); err != nil {
			return false, err
		}
		user.Role = restored
		slog.WarnContext(ctx, "banned role without active ban, restoring",
			"user_id", user.ID, "restored_role", string(restored))
		return false, nil
	}

	now := s.clock.Now()
	if !ban.ExpiredBy(now) {
		return true, nil
	}

	restored := ban.PriorRole
	if restored == "" || restored == models.RoleBanned {
		restored = models.RoleClient
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Ban{}).
			Where("id = ?", ban.ID).
			Updates(map[string]any{"is_active": false, "lifted_at": now}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("role", restored).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	user.Role = restored

	observability.BansLifted.Inc()
	slog.InfoContext(ctx, "ban lifted",
		"user_id", user.ID, "ban_id", ban.ID, "restored_role", string(restored))
	return false, nil
}

// Logout invalidates the presented credential and flips the user offline.
func (s *AuthService) Logout(ctx context.Context, userID uint, jti string, tokenExpiry time.Time) error {
	now := s.clock.Now()
	if err := cache.DenyToken(ctx, jti, tokenExpiry.Sub(now)); err != nil {
		slog.WarnContext(ctx, "failed to deny-list token", "user_id", userID, "err", err)
	}
	return s.userRepo.UpdateFields(ctx, userID, map[string]any{
		"is_online":      false,
		"last_logout_at": now,
	})
}

// DeleteAccount removes the user record. Conversations involving the user
// are cascaded by the caller before this runs.
func (s *AuthService) DeleteAccount(ctx context.Context, userID uint) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}
