package repository

import (
	"context"
	"errors"
	"time"

	"parley/internal/models"

	"gorm.io/gorm"
)

// BanRepository defines persistence operations for bans.
type BanRepository interface {
	Create(ctx context.Context, ban *models.Ban) error
	GetByID(ctx context.Context, id uint) (*models.Ban, error)
	// GetActiveBan returns the active ban for userID, or (nil, nil) when none.
	GetActiveBan(ctx context.Context, userID uint) (*models.Ban, error)
	Lift(ctx context.Context, banID uint, at time.Time) error
	ListActive(ctx context.Context, limit, offset int) ([]models.Ban, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Ban, error)
}

type banRepository struct {
	db *gorm.DB
}

// NewBanRepository returns a new BanRepository implementation.
func NewBanRepository(db *gorm.DB) BanRepository {
	return &banRepository{db: db}
}

func (r *banRepository) Create(ctx context.Context, ban *models.Ban) error {
	if err := r.db.WithContext(ctx).Create(ban).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *banRepository) GetByID(ctx context.Context, id uint) (*models.Ban, error) {
	var ban models.Ban
	if err := r.db.WithContext(ctx).Preload("User").Preload("IssuedBy").First(&ban, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Ban", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &ban, nil
}

func (r *banRepository) GetActiveBan(ctx context.Context, userID uint) (*models.Ban, error) {
	var ban models.Ban
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("issued_at DESC").
		First(&ban).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &ban, nil
}

func (r *banRepository) Lift(ctx context.Context, banID uint, at time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Ban{}).
		Where("id = ?", banID).
		Updates(map[string]any{"is_active": false, "lifted_at": at}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *banRepository) ListActive(ctx context.Context, limit, offset int) ([]models.Ban, error) {
	var bans []models.Ban
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Preload("User").
		Preload("IssuedBy").
		Order("issued_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bans).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return bans, nil
}

func (r *banRepository) ListForUser(ctx context.Context, userID uint) ([]models.Ban, error) {
	var bans []models.Ban
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at DESC").
		Find(&bans).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return bans, nil
}
