package repository

import (
	"context"
	"errors"
	"time"

	"parley/internal/cache"
	"parley/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomRepository defines persistence operations for rooms, their memberships
// and their messages.
type RoomRepository interface {
	// Create inserts the room. An invite code collision surfaces as a
	// conflict so the caller can regenerate and retry.
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id uint) (*models.Room, error)
	// GetByInviteCode returns (nil, nil) when no room has the code.
	GetByInviteCode(ctx context.Context, code string) (*models.Room, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Room, error)
	// ListActiveCreatedBy returns the active non-permanent rooms the user
	// created, the ones tied to the creator's session lifetime.
	ListActiveCreatedBy(ctx context.Context, creatorID uint) ([]models.Room, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Room, error)
	ListIDsByPermanence(ctx context.Context, permanent bool) ([]uint, error)
	Update(ctx context.Context, room *models.Room) error
	SetExpiry(ctx context.Context, roomID uint, expiresAt *time.Time) error
	AddMember(ctx context.Context, roomID, userID uint) error
	RemoveMember(ctx context.Context, roomID, userID uint) error
	IsMember(ctx context.Context, roomID, userID uint) (bool, error)
	MemberIDs(ctx context.Context, roomID uint) ([]uint, error)
	ListMembers(ctx context.Context, roomID uint) ([]models.RoomMembership, error)
	MemberCount(ctx context.Context, roomID uint) (int64, error)
	// DeleteCascade removes the room with its memberships, messages and
	// reactions, returning the media asset IDs the deleted messages
	// referenced.
	DeleteCascade(ctx context.Context, roomID uint) ([]uint, error)
	CreateMessage(ctx context.Context, message *models.RoomMessage) error
	GetMessageByID(ctx context.Context, id uint) (*models.RoomMessage, error)
	// ListMessagesReadable returns the room's messages the requester may
	// see: every open message plus secret ones they sent or received.
	ListMessagesReadable(ctx context.Context, roomID, requesterID uint, limit, offset int) ([]models.RoomMessage, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository returns a new RoomRepository implementation.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) Create(ctx context.Context, room *models.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if IsUniqueConstraintError(err) {
			return models.NewConflictError("Invite code already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := cache.Aside(ctx, cache.RoomKey(id), &room, cache.RoomTTL, func() error {
		return r.db.WithContext(ctx).Preload("Creator").First(&room, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Room", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &room, nil
}

func (r *roomRepository) GetByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := cache.Aside(ctx, cache.InviteKey(code), &room, cache.InviteTTL, func() error {
		return r.db.WithContext(ctx).Preload("Creator").Where("invite_code = ?", code).First(&room).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &room, nil
}

func (r *roomRepository) ListForUser(ctx context.Context, userID uint) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.WithContext(ctx).
		Joins("JOIN room_memberships ON room_memberships.room_id = rooms.id").
		Where("room_memberships.user_id = ?", userID).
		Preload("Creator").
		Order("rooms.updated_at DESC").
		Find(&rooms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rooms, nil
}

func (r *roomRepository) ListActiveCreatedBy(ctx context.Context, creatorID uint) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.WithContext(ctx).
		Where("creator_id = ? AND is_permanent = ? AND status = ?",
			creatorID, false, models.RoomStatusActive).
		Find(&rooms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rooms, nil
}

func (r *roomRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Room, error) {
	var rooms []models.Room
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("expires_at").
		Limit(limit).
		Find(&rooms).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rooms, nil
}

func (r *roomRepository) ListIDsByPermanence(ctx context.Context, permanent bool) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("is_permanent = ?", permanent).
		Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *roomRepository) Update(ctx context.Context, room *models.Room) error {
	if err := r.db.WithContext(ctx).Save(room).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRoom(ctx, room.ID)
	cache.Invalidate(ctx, cache.InviteKey(room.InviteCode))
	return nil
}

func (r *roomRepository) SetExpiry(ctx context.Context, roomID uint, expiresAt *time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("expires_at", expiresAt).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRoom(ctx, roomID)
	return nil
}

func (r *roomRepository) AddMember(ctx context.Context, roomID, userID uint) error {
	membership := models.RoomMembership{RoomID: roomID, UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&membership).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomMembership{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RoomMembership{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *roomRepository) MemberIDs(ctx context.Context, roomID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.RoomMembership{}).
		Where("room_id = ?", roomID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *roomRepository) ListMembers(ctx context.Context, roomID uint) ([]models.RoomMembership, error) {
	var memberships []models.RoomMembership
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Preload("User").
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return memberships, nil
}

func (r *roomRepository) MemberCount(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RoomMembership{}).
		Where("room_id = ?", roomID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *roomRepository) DeleteCascade(ctx context.Context, roomID uint) ([]uint, error) {
	var mediaIDs []uint
	inviteCode := ""
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		inviteCode = room.InviteCode

		var messageIDs []uint
		if err := tx.Model(&models.RoomMessage{}).
			Where("room_id = ?", roomID).
			Pluck("id", &messageIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RoomMessage{}).
			Where("room_id = ? AND media_id IS NOT NULL", roomID).
			Distinct().
			Pluck("media_id", &mediaIDs).Error; err != nil {
			return err
		}
		if len(messageIDs) > 0 {
			if err := tx.Where("message_kind = ? AND message_id IN ?", models.MessageKindRoom, messageIDs).
				Delete(&models.Reaction{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", roomID).
				Delete(&models.RoomMessage{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("room_id = ?", roomID).
			Delete(&models.RoomMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, roomID).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateRoom(ctx, roomID)
	if inviteCode != "" {
		cache.Invalidate(ctx, cache.InviteKey(inviteCode))
	}
	return mediaIDs, nil
}

func (r *roomRepository) CreateMessage(ctx context.Context, message *models.RoomMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *roomRepository) GetMessageByID(ctx context.Context, id uint) (*models.RoomMessage, error) {
	var message models.RoomMessage
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Recipient").
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

func (r *roomRepository) ListMessagesReadable(ctx context.Context, roomID, requesterID uint, limit, offset int) ([]models.RoomMessage, error) {
	var messages []models.RoomMessage
	if err := r.db.WithContext(ctx).
		Where("room_id = ? AND (recipient_id IS NULL OR sender_id = ? OR recipient_id = ?)",
			roomID, requesterID, requesterID).
		Preload("Sender").
		Preload("Recipient").
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
