package seed

import (
	"testing"

	"parley/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	db := newSeedTestDB(t)

	err := Run(db, SeedOptions{
		NumUsers:         8,
		NumConversations: 4,
		NumRooms:         3,
		SkipBcrypt:       true,
	})
	require.NoError(t, err)

	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(8), userCount)

	// The fixed dev accounts are always present.
	for _, username := range []string{"frank", "greta", "mira"} {
		var user models.User
		require.NoError(t, db.Where("username = ?", username).First(&user).Error, username)
	}

	var roomCount int64
	require.NoError(t, db.Model(&models.Room{}).Count(&roomCount).Error)
	assert.Equal(t, int64(3), roomCount)

	var membershipCount int64
	require.NoError(t, db.Model(&models.RoomMembership{}).Count(&membershipCount).Error)
	assert.GreaterOrEqual(t, membershipCount, roomCount)

	var convCount int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&convCount).Error)
	assert.GreaterOrEqual(t, convCount, int64(1))
	assert.LessOrEqual(t, convCount, int64(4))

	var messageCount int64
	require.NoError(t, db.Model(&models.Message{}).Count(&messageCount).Error)
	assert.GreaterOrEqual(t, messageCount, int64(3))

	// Conversations store pairs canonically.
	var conversations []models.Conversation
	require.NoError(t, db.Find(&conversations).Error)
	for _, conv := range conversations {
		assert.Less(t, conv.UserAID, conv.UserBID)
	}

	var roomMessageCount int64
	require.NoError(t, db.Model(&models.RoomMessage{}).Count(&roomMessageCount).Error)
	assert.GreaterOrEqual(t, roomMessageCount, int64(5))
}

func TestRun_CleanWipesExistingRows(t *testing.T) {
	db := newSeedTestDB(t)

	f := NewFactory(db, SeedOptions{SkipBcrypt: true})
	_, err := f.CreateUser(func(u *models.User) { u.Username = "leftover" })
	require.NoError(t, err)

	err = Run(db, SeedOptions{
		NumUsers:         5,
		NumConversations: 2,
		NumRooms:         2,
		SkipBcrypt:       true,
		ShouldClean:      true,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "leftover").Count(&count).Error)
	assert.Zero(t, count)
}
