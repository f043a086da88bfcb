package repository

import (
	"context"
	"errors"

	"parley/internal/models"

	"gorm.io/gorm"
)

// MediaRepository defines persistence operations for media asset records.
type MediaRepository interface {
	Create(ctx context.Context, asset *models.MediaAsset) error
	GetByID(ctx context.Context, id uint) (*models.MediaAsset, error)
	// GetByRef returns (nil, nil) when no asset carries the ref.
	GetByRef(ctx context.Context, ref string) (*models.MediaAsset, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.MediaAsset, error)
	Delete(ctx context.Context, id uint) error
	DeleteByIDs(ctx context.Context, ids []uint) error
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository returns a new MediaRepository implementation.
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		if IsUniqueConstraintError(err) {
			return models.NewConflictError("Media asset already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mediaRepository) GetByID(ctx context.Context, id uint) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := r.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Media asset", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &asset, nil
}

func (r *mediaRepository) GetByRef(ctx context.Context, ref string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := r.db.WithContext(ctx).Where("ref = ?", ref).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &asset, nil
}

func (r *mediaRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.MediaAsset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var assets []models.MediaAsset
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&assets).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return assets, nil
}

func (r *mediaRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.MediaAsset{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *mediaRepository) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.MediaAsset{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
