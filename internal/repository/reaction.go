package repository

import (
	"context"

	"parley/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository defines persistence operations for message reactions.
type ReactionRepository interface {
	// Upsert inserts the reaction or, when the user already reacted to the
	// message, replaces the stored emoji.
	Upsert(ctx context.Context, reaction *models.Reaction) error
	// Delete removes the user's reaction and reports whether one existed.
	Delete(ctx context.Context, kind models.MessageKind, messageID, userID uint) (bool, error)
	ListForMessages(ctx context.Context, kind models.MessageKind, messageIDs []uint) ([]models.Reaction, error)
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository returns a new ReactionRepository implementation.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Upsert(ctx context.Context, reaction *models.Reaction) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_kind"}, {Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"emoji", "updated_at"}),
		}).
		Create(reaction).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reactionRepository) Delete(ctx context.Context, kind models.MessageKind, messageID, userID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("message_kind = ? AND message_id = ? AND user_id = ?", kind, messageID, userID).
		Delete(&models.Reaction{})
	if result.Error != nil {
		return false, models.NewInternalError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *reactionRepository) ListForMessages(ctx context.Context, kind models.MessageKind, messageIDs []uint) ([]models.Reaction, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var reactions []models.Reaction
	if err := r.db.WithContext(ctx).
		Where("message_kind = ? AND message_id IN ?", kind, messageIDs).
		Preload("User").
		Order("created_at ASC, id ASC").
		Find(&reactions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reactions, nil
}
