package database

import "parley/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Ban{},
		&models.Friendship{},
		&models.Conversation{},
		&models.Message{},
		&models.Room{},
		&models.RoomMembership{},
		&models.RoomMessage{},
		&models.Reaction{},
		&models.MediaAsset{},
	}
}
