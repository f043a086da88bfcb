package seed

import (
	"errors"
	"fmt"
	"log"

	"parley/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInRoom is a permanent system room.
type BuiltInRoom struct {
	Name        string
	InviteCode  string
	Description string
}

// BuiltInRooms defines the permanent rooms every deployment carries. Their
// invite codes are fixed so links stay stable across re-seeds.
var BuiltInRooms = []BuiltInRoom{
	{Name: "The Commons", InviteCode: "PARLEYLOBBY1", Description: "Open floor for everyone on the platform."},
	{Name: "Help Desk", InviteCode: "HELPDESK0001", Description: "Questions, issues, and troubleshooting."},
}

// Rooms seeds the permanent built-in rooms, owned by the bootstrap admin
// (user ID 1). A database without that account skips quietly; built-ins are
// retried on the next start.
func Rooms(db *gorm.DB) error {
	var owner models.User
	if err := db.First(&owner, 1).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Println("built-in rooms skipped: no bootstrap admin account")
			return nil
		}
		return err
	}

	for _, item := range BuiltInRooms {
		err := db.Transaction(func(tx *gorm.DB) error {
			room := models.Room{
				Name:        item.Name,
				Description: item.Description,
				CreatorID:   owner.ID,
				InviteCode:  item.InviteCode,
				Status:      models.RoomStatusActive,
				IsPermanent: true,
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "invite_code"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "description", "status", "is_permanent", "updated_at"}),
			}).Create(&room).Error; err != nil {
				return err
			}

			if room.ID == 0 {
				if err := tx.Where("invite_code = ?", item.InviteCode).First(&room).Error; err != nil {
					return err
				}
			}

			var membership models.RoomMembership
			memberErr := tx.Where("room_id = ? AND user_id = ?", room.ID, owner.ID).First(&membership).Error
			switch {
			case memberErr == nil:
				return nil
			case !errors.Is(memberErr, gorm.ErrRecordNotFound):
				return memberErr
			}

			return tx.Create(&models.RoomMembership{
				RoomID: room.ID,
				UserID: owner.ID,
			}).Error
		})
		if err != nil {
			return fmt.Errorf("seed built-in room %s: %w", item.InviteCode, err)
		}
	}

	return nil
}
