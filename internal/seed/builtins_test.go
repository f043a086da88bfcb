package seed

import (
	"testing"

	"parley/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRooms_SkipsWithoutBootstrapAdmin(t *testing.T) {
	db := newSeedTestDB(t)

	require.NoError(t, Rooms(db))

	var count int64
	require.NoError(t, db.Model(&models.Room{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRooms_CreatesAndRepairsBuiltIns(t *testing.T) {
	db := newSeedTestDB(t)

	email := "root@parley.local"
	require.NoError(t, db.Create(&models.User{
		ID:       1,
		Username: "parley_root",
		Email:    &email,
		Kind:     models.UserKindRegistered,
		Role:     models.RoleAdmin,
	}).Error)

	require.NoError(t, Rooms(db))

	var count int64
	require.NoError(t, db.Model(&models.Room{}).Count(&count).Error)
	assert.Equal(t, int64(len(BuiltInRooms)), count)

	for _, item := range BuiltInRooms {
		var room models.Room
		require.NoError(t, db.Where("invite_code = ?", item.InviteCode).First(&room).Error)
		assert.Equal(t, item.Name, room.Name)
		assert.True(t, room.IsPermanent)
		assert.Equal(t, models.RoomStatusActive, room.Status)
		assert.Equal(t, uint(1), room.CreatorID)

		var membership models.RoomMembership
		require.NoError(t, db.Where("room_id = ? AND user_id = ?", room.ID, uint(1)).
			First(&membership).Error)
	}

	// A drifted room is repaired in place on the next run, not duplicated.
	require.NoError(t, db.Model(&models.Room{}).
		Where("invite_code = ?", BuiltInRooms[0].InviteCode).
		Updates(map[string]any{"name": "Renamed", "status": models.RoomStatusArchived}).Error)

	require.NoError(t, Rooms(db))

	require.NoError(t, db.Model(&models.Room{}).Count(&count).Error)
	assert.Equal(t, int64(len(BuiltInRooms)), count)

	var repaired models.Room
	require.NoError(t, db.Where("invite_code = ?", BuiltInRooms[0].InviteCode).First(&repaired).Error)
	assert.Equal(t, BuiltInRooms[0].Name, repaired.Name)
	assert.Equal(t, models.RoomStatusActive, repaired.Status)
}
