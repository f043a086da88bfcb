package repository

import (
	"context"
	"errors"
	"time"

	"parley/internal/models"

	"gorm.io/gorm"
)

// ConversationRepository defines persistence operations for direct
// conversations. Pair lookups canonicalize the two user IDs, so callers may
// pass them in either order.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id uint) (*models.Conversation, error)
	// GetByPair returns the conversation for the unordered pair, or
	// (nil, nil) when none exists.
	GetByPair(ctx context.Context, userX, userY uint) (*models.Conversation, error)
	ListActiveForUser(ctx context.Context, userID uint, now time.Time) ([]models.Conversation, error)
	// ListForUser returns every conversation the user participates in,
	// regardless of state. Logout processing needs the expired ones too.
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Conversation, error)
	Update(ctx context.Context, conversation *models.Conversation) error
	SetLoggedOut(ctx context.Context, conversationID uint, sideA bool) error
	ResetLoggedOut(ctx context.Context, conversationID uint, sideA bool) error
	// DeleteCascade removes the conversation with its messages and
	// reactions, returning the media asset IDs the deleted messages
	// referenced so the caller can clean up stored files.
	DeleteCascade(ctx context.Context, conversationID uint) ([]uint, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository returns a new ConversationRepository implementation.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		if IsUniqueConstraintError(err) {
			return models.NewConflictError("Conversation already exists for this pair")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Conversation", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &conversation, nil
}

func (r *conversationRepository) GetByPair(ctx context.Context, userX, userY uint) (*models.Conversation, error) {
	a, b := models.CanonicalPair(userX, userY)
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conversation, nil
}

func (r *conversationRepository) ListActiveForUser(ctx context.Context, userID uint, now time.Time) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Where("(user_a_id = ? OR user_b_id = ?) AND is_active = ? AND expires_at > ?",
			userID, userID, true, now).
		Preload("UserA").
		Preload("UserB").
		Order("updated_at DESC").
		Find(&conversations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return conversations, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&conversations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return conversations, nil
}

func (r *conversationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at").
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return conversations, nil
}

func (r *conversationRepository) Update(ctx context.Context, conversation *models.Conversation) error {
	if err := r.db.WithContext(ctx).Save(conversation).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *conversationRepository) SetLoggedOut(ctx context.Context, conversationID uint, sideA bool) error {
	return r.setLoggedOut(ctx, conversationID, sideA, true)
}

func (r *conversationRepository) ResetLoggedOut(ctx context.Context, conversationID uint, sideA bool) error {
	return r.setLoggedOut(ctx, conversationID, sideA, false)
}

func (r *conversationRepository) setLoggedOut(ctx context.Context, conversationID uint, sideA, value bool) error {
	column := "user_b_logged_out"
	if sideA {
		column = "user_a_logged_out"
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update(column, value).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *conversationRepository) DeleteCascade(ctx context.Context, conversationID uint) ([]uint, error) {
	var mediaIDs []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var messageIDs []uint
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ?", conversationID).
			Pluck("id", &messageIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND media_id IS NOT NULL", conversationID).
			Distinct().
			Pluck("media_id", &mediaIDs).Error; err != nil {
			return err
		}
		if len(messageIDs) > 0 {
			if err := tx.Where("message_kind = ? AND message_id IN ?", models.MessageKindDirect, messageIDs).
				Delete(&models.Reaction{}).Error; err != nil {
				return err
			}
			if err := tx.Where("conversation_id = ?", conversationID).
				Delete(&models.Message{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Conversation{}, conversationID).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return mediaIDs, nil
}
