package repository

import (
	"context"
	"errors"
	"time"

	"parley/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines persistence operations for direct messages.
// Visibility is positional: sideA selects the visible_to_a column, matching
// the conversation's canonical pair order.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	ListVisible(ctx context.Context, conversationID uint, sideA bool, limit, offset int) ([]models.Message, error)
	// ListUnreadFromPeer returns unread messages in the conversation that
	// were sent by someone other than readerID, oldest first.
	ListUnreadFromPeer(ctx context.Context, conversationID, readerID uint) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID uint, at time.Time) error
	// HideForSide clears the given side's visibility bit on every message
	// in the conversation.
	HideForSide(ctx context.Context, conversationID uint, sideA bool) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Media").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		First(&message, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &message, nil
}

func (r *messageRepository) ListVisible(ctx context.Context, conversationID uint, sideA bool, limit, offset int) ([]models.Message, error) {
	column := "visible_to_b"
	if sideA {
		column = "visible_to_a"
	}
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND "+column+" = ?", conversationID, true).
		Preload("Sender").
		Preload("Media").
		Preload("ReplyTo").
		Preload("ReplyTo.Sender").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) ListUnreadFromPeer(ctx context.Context, conversationID, readerID uint) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID uint, at time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{"is_read": true, "read_at": at}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) HideForSide(ctx context.Context, conversationID uint, sideA bool) error {
	column := "visible_to_b"
	if sideA {
		column = "visible_to_a"
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Update(column, false).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
