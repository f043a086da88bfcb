package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"parley/internal/cache"
	"parley/internal/clock"
	"parley/internal/models"
	"parley/internal/repository"

	"gorm.io/gorm"
)

const maxBanReasonLen = 1000

// ModerationService provides ban lifecycle and role administration.
type ModerationService struct {
	db         *gorm.DB
	userRepo   repository.UserRepository
	banRepo    repository.BanRepository
	roomRepo   repository.RoomRepository
	clock      clock.Clock
	disconnect func(userID uint, reason string) bool
}

// BanInput is the input for issuing a ban. Duration is ignored for permanent
// bans.
type BanInput struct {
	ModeratorID uint
	TargetID    uint
	Reason      string
	Duration    time.Duration
	IsPermanent bool
}

// UserDetail is the moderation view of an account. Partial lookup failures
// surface as warnings instead of failing the whole view.
type UserDetail struct {
	User       *models.User  `json:"user"`
	ActiveBan  *models.Ban   `json:"active_ban,omitempty"`
	BanHistory []models.Ban  `json:"ban_history,omitempty"`
	Rooms      []models.Room `json:"rooms,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// NewModerationService returns a new ModerationService. disconnect
// force-closes a user's live connection and may be nil.
func NewModerationService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	banRepo repository.BanRepository,
	roomRepo repository.RoomRepository,
	clk clock.Clock,
	disconnect func(userID uint, reason string) bool,
) *ModerationService {
	if clk == nil {
		clk = clock.System()
	}
	return &ModerationService{
		db:         db,
		userRepo:   userRepo,
		banRepo:    banRepo,
		roomRepo:   roomRepo,
		clock:      clk,
		disconnect: disconnect,
	}
}

func (s *ModerationService) requireElevated(ctx context.Context, userID uint) (*models.User, error) {
	actor, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Elevated() {
		return nil, models.NewForbiddenError("Moderator access required")
	}
	return actor, nil
}

func (s *ModerationService) requireAdmin(ctx context.Context, userID uint) (*models.User, error) {
	actor, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, models.NewForbiddenError("Admin access required")
	}
	return actor, nil
}

// Ban puts the target under an active ban, replacing any existing one, and
// kicks them off their live connection. Moderators cannot ban their peers or
// admins; admins can ban moderators.
func (s *ModerationService) Ban(ctx context.Context, in BanInput) (*models.Ban, error) {
	actor, err := s.requireElevated(ctx, in.ModeratorID)
	if err != nil {
		return nil, err
	}
	if in.TargetID == in.ModeratorID {
		return nil, models.NewValidationError("Cannot ban yourself")
	}
	target, err := s.userRepo.GetByID(ctx, in.TargetID)
	if err != nil {
		return nil, err
	}
	if target.Role == models.RoleAdmin {
		return nil, models.NewForbiddenError("Admins cannot be banned")
	}
	if target.Role == models.RoleModerator && actor.Role != models.RoleAdmin {
		return nil, models.NewForbiddenError("Only an admin can ban a moderator")
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, models.NewValidationError("Ban reason is required")
	}
	if len(reason) > maxBanReasonLen {
		return nil, models.NewValidationError("Ban reason too long")
	}
	if !in.IsPermanent && in.Duration <= 0 {
		return nil, models.NewValidationError("Ban duration is required")
	}

	now := s.clock.Now()
	var expiresAt *time.Time
	if !in.IsPermanent {
		t := now.Add(in.Duration)
		expiresAt = &t
	}

	// Re-banning an already banned user must not record "banned" as the role
	// to restore.
	priorRole := target.Role
	if priorRole == models.RoleBanned {
		priorRole = models.RoleClient
		if existing, berr := s.banRepo.GetActiveBan(ctx, target.ID); berr == nil && existing != nil {
			priorRole = existing.PriorRole
		}
	}

	ban := &models.Ban{
		UserID:      target.ID,
		IssuedByID:  actor.ID,
		Reason:      reason,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
		IsPermanent: in.IsPermanent,
		IsActive:    true,
		PriorRole:   priorRole,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Ban{}).
			Where("user_id = ? AND is_active = ?", target.ID, true).
			Updates(map[string]any{"is_active": false, "lifted_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Create(ban).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", target.ID).
			Update("role", models.RoleBanned).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, target.ID)

	if s.disconnect != nil {
		s.disconnect(target.ID, "account banned")
	}
	slog.InfoContext(ctx, "user banned",
		"user_id", target.ID, "moderator_id", actor.ID,
		"permanent", in.IsPermanent, "ban_id", ban.ID)
	return ban, nil
}

// Unban lifts the target's active ban and restores the role they held before
// it.
func (s *ModerationService) Unban(ctx context.Context, moderatorID, targetID uint) (*models.User, error) {
	actor, err := s.requireElevated(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	ban, err := s.banRepo.GetActiveBan(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if ban == nil && target.Role != models.RoleBanned {
		return nil, models.NewInvalidStateError("User is not banned")
	}

	restored := models.RoleClient
	if target.IsGuest() {
		restored = models.RoleGuest
	}
	if ban != nil && ban.PriorRole != "" && ban.PriorRole != models.RoleBanned {
		restored = ban.PriorRole
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ban != nil {
			if err := tx.Model(&models.Ban{}).
				Where("id = ?", ban.ID).
				Updates(map[string]any{"is_active": false, "lifted_at": now}).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.User{}).
			Where("id = ?", targetID).
			Update("role", restored).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, targetID)

	target.Role = restored
	slog.InfoContext(ctx, "user unbanned",
		"user_id", targetID, "moderator_id", actor.ID, "restored_role", string(restored))
	return target, nil
}

// Promote raises a registered user to moderator. Admin only.
func (s *ModerationService) Promote(ctx context.Context, adminID, targetID uint) (*models.User, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.IsGuest() {
		return nil, models.NewValidationError("Guests cannot be promoted")
	}
	if target.Role == models.RoleBanned {
		return nil, models.NewInvalidStateError("Cannot promote a banned user")
	}
	if target.Role.Elevated() {
		return nil, models.NewInvalidStateError("User is already elevated")
	}
	if err := s.userRepo.UpdateFields(ctx, targetID, map[string]any{"role": models.RoleModerator}); err != nil {
		return nil, err
	}
	target.Role = models.RoleModerator
	return target, nil
}

// Demote returns a moderator to a regular account. Admin only.
func (s *ModerationService) Demote(ctx context.Context, adminID, targetID uint) (*models.User, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role != models.RoleModerator {
		return nil, models.NewInvalidStateError("User is not a moderator")
	}
	if err := s.userRepo.UpdateFields(ctx, targetID, map[string]any{"role": models.RoleClient}); err != nil {
		return nil, err
	}
	target.Role = models.RoleClient
	return target, nil
}

// ListBans returns active bans, newest first.
func (s *ModerationService) ListBans(ctx context.Context, actorID uint, limit, offset int) ([]models.Ban, error) {
	if _, err := s.requireElevated(ctx, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.banRepo.ListActive(ctx, limit, offset)
}

// ListUsers returns accounts for the moderation screens.
func (s *ModerationService) ListUsers(ctx context.Context, actorID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.requireElevated(ctx, actorID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.userRepo.List(ctx, limit, offset)
}

// GetUserDetail assembles the moderation view of an account. The user row is
// required; everything else degrades to a warning.
func (s *ModerationService) GetUserDetail(ctx context.Context, actorID, targetID uint) (*UserDetail, error) {
	if _, err := s.requireElevated(ctx, actorID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{User: user}
	if ban, berr := s.banRepo.GetActiveBan(ctx, targetID); berr != nil {
		slog.WarnContext(ctx, "failed to load active ban for user detail",
			"user_id", targetID, "err", berr)
		detail.Warnings = append(detail.Warnings, "active ban unavailable")
	} else {
		detail.ActiveBan = ban
	}
	if history, herr := s.banRepo.ListForUser(ctx, targetID); herr != nil {
		slog.WarnContext(ctx, "failed to load ban history for user detail",
			"user_id", targetID, "err", herr)
		detail.Warnings = append(detail.Warnings, "ban history unavailable")
	} else {
		detail.BanHistory = history
	}
	if rooms, rerr := s.roomRepo.ListForUser(ctx, targetID); rerr != nil {
		slog.WarnContext(ctx, "failed to load rooms for user detail",
			"user_id", targetID, "err", rerr)
		detail.Warnings = append(detail.Warnings, "room list unavailable")
	} else {
		detail.Rooms = rooms
	}
	return detail, nil
}
