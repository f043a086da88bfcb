package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"parley/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testInviteSeq int

func createTestRoom(t *testing.T, db *gorm.DB, creator *models.User, permanent bool) *models.Room {
	t.Helper()
	testInviteSeq++
	room := &models.Room{
		Name:        "Launch prep",
		CreatorID:   creator.ID,
		InviteCode:  fmt.Sprintf("CODE%08d", testInviteSeq),
		Status:      models.RoomStatusActive,
		IsPermanent: permanent,
	}
	require.NoError(t, db.Create(room).Error)
	require.NoError(t, db.Create(&models.RoomMembership{RoomID: room.ID, UserID: creator.ID}).Error)
	return room
}

func TestRoomRepository_Create(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	creator := createTestUser(t, db, "creator")

	room := &models.Room{
		Name:       "Sprint room",
		CreatorID:  creator.ID,
		InviteCode: "UNIQUECODE01",
		Status:     models.RoomStatusActive,
	}
	require.NoError(t, repo.Create(ctx, room))
	assert.NotZero(t, room.ID)

	clash := &models.Room{
		Name:       "Other room",
		CreatorID:  creator.ID,
		InviteCode: "UNIQUECODE01",
		Status:     models.RoomStatusActive,
	}
	err := repo.Create(ctx, clash)
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, models.CodeOf(err))
}

func TestRoomRepository_GetByInviteCode(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	creator := createTestUser(t, db, "creator")
	room := createTestRoom(t, db, creator, false)

	t.Run("resolves the code with the creator loaded", func(t *testing.T) {
		got, err := repo.GetByInviteCode(ctx, room.InviteCode)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, room.ID, got.ID)
		require.NotNil(t, got.Creator)
		assert.Equal(t, "creator", got.Creator.Username)
	})

	t.Run("returns nil for an unknown code", func(t *testing.T) {
		got, err := repo.GetByInviteCode(ctx, "NOSUCHCODE00")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRoomRepository_Membership(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	creator := createTestUser(t, db, "creator")
	joiner := createTestUser(t, db, "joiner")
	outsider := createTestUser(t, db, "outsider")
	room := createTestRoom(t, db, creator, false)

	t.Run("AddMember is idempotent", func(t *testing.T) {
		require.NoError(t, repo.AddMember(ctx, room.ID, joiner.ID))
		require.NoError(t, repo.AddMember(ctx, room.ID, joiner.ID))

		count, err := repo.MemberCount(ctx, room.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("IsMember distinguishes members", func(t *testing.T) {
		isMember, err := repo.IsMember(ctx, room.ID, joiner.ID)
		require.NoError(t, err)
		assert.True(t, isMember)

		isMember, err = repo.IsMember(ctx, room.ID, outsider.ID)
		require.NoError(t, err)
		assert.False(t, isMember)
	})

	t.Run("MemberIDs lists everyone", func(t *testing.T) {
		ids, err := repo.MemberIDs(ctx, room.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{creator.ID, joiner.ID}, ids)
	})

	t.Run("RemoveMember drops presence only", func(t *testing.T) {
		message := &models.RoomMessage{
			RoomID: room.ID, SenderID: joiner.ID,
			Content: "still here", Type: models.MessageTypeText,
		}
		require.NoError(t, repo.CreateMessage(ctx, message))
		require.NoError(t, repo.RemoveMember(ctx, room.ID, joiner.ID))

		isMember, err := repo.IsMember(ctx, room.ID, joiner.ID)
		require.NoError(t, err)
		assert.False(t, isMember)

		messages, err := repo.ListMessagesReadable(ctx, room.ID, creator.ID, 50, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "still here", messages[0].Content)
	})
}

func TestRoomRepository_Listings(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	now := time.Now()
	creator := createTestUser(t, db, "creator")
	other := createTestUser(t, db, "other")

	mine := createTestRoom(t, db, creator, false)
	permanent := createTestRoom(t, db, creator, true)
	theirs := createTestRoom(t, db, other, false)

	archived := createTestRoom(t, db, creator, false)
	archived.Status = models.RoomStatusArchived
	require.NoError(t, repo.Update(ctx, archived))

	t.Run("ListForUser follows memberships", func(t *testing.T) {
		require.NoError(t, repo.AddMember(ctx, theirs.ID, creator.ID))
		rooms, err := repo.ListForUser(ctx, creator.ID)
		require.NoError(t, err)
		ids := make([]uint, 0, len(rooms))
		for _, room := range rooms {
			ids = append(ids, room.ID)
		}
		assert.ElementsMatch(t, []uint{mine.ID, permanent.ID, theirs.ID, archived.ID}, ids)
	})

	t.Run("ListActiveCreatedBy skips permanent and archived rooms", func(t *testing.T) {
		rooms, err := repo.ListActiveCreatedBy(ctx, creator.ID)
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		assert.Equal(t, mine.ID, rooms[0].ID)
	})

	t.Run("ListIDsByPermanence splits the two kinds", func(t *testing.T) {
		permanentIDs, err := repo.ListIDsByPermanence(ctx, true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{permanent.ID}, permanentIDs)
	})

	t.Run("ListExpired returns only marked rooms past the deadline", func(t *testing.T) {
		require.NoError(t, repo.SetExpiry(ctx, mine.ID, timePtr(now.Add(-time.Minute))))
		require.NoError(t, repo.SetExpiry(ctx, theirs.ID, timePtr(now.Add(time.Hour))))

		expired, err := repo.ListExpired(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, mine.ID, expired[0].ID)
	})

	t.Run("SetExpiry can clear the deadline", func(t *testing.T) {
		require.NoError(t, repo.SetExpiry(ctx, mine.ID, nil))
		expired, err := repo.ListExpired(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, expired)
	})
}

func TestRoomRepository_Messages(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	creator := createTestUser(t, db, "creator")
	member := createTestUser(t, db, "member")
	bystander := createTestUser(t, db, "bystander")
	room := createTestRoom(t, db, creator, false)
	require.NoError(t, repo.AddMember(ctx, room.ID, member.ID))
	require.NoError(t, repo.AddMember(ctx, room.ID, bystander.ID))

	open := &models.RoomMessage{
		RoomID: room.ID, SenderID: creator.ID,
		Content: "hello everyone", Type: models.MessageTypeText,
	}
	require.NoError(t, repo.CreateMessage(ctx, open))
	secret := &models.RoomMessage{
		RoomID: room.ID, SenderID: creator.ID, RecipientID: &member.ID,
		Content: "between us", Type: models.MessageTypeText,
	}
	require.NoError(t, repo.CreateMessage(ctx, secret))

	t.Run("sender and recipient see the secret", func(t *testing.T) {
		for _, userID := range []uint{creator.ID, member.ID} {
			messages, err := repo.ListMessagesReadable(ctx, room.ID, userID, 50, 0)
			require.NoError(t, err)
			assert.Len(t, messages, 2)
		}
	})

	t.Run("other members see only open messages", func(t *testing.T) {
		messages, err := repo.ListMessagesReadable(ctx, room.ID, bystander.ID, 50, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "hello everyone", messages[0].Content)
	})

	t.Run("GetMessageByID loads the sender", func(t *testing.T) {
		got, err := repo.GetMessageByID(ctx, open.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Sender)
		assert.Equal(t, "creator", got.Sender.Username)
	})
}

func TestRoomRepository_DeleteCascade(t *testing.T) {
	db := newTestDB(t)
	repo := NewRoomRepository(db)
	ctx := context.Background()
	creator := createTestUser(t, db, "creator")
	member := createTestUser(t, db, "member")
	room := createTestRoom(t, db, creator, false)
	require.NoError(t, repo.AddMember(ctx, room.ID, member.ID))

	media := &models.MediaAsset{OwnerID: creator.ID, ContentType: "image/jpeg", SizeBytes: 10, Ref: "room-ref-1"}
	require.NoError(t, db.Create(media).Error)

	message := &models.RoomMessage{
		RoomID: room.ID, SenderID: creator.ID,
		Content: "with media", Type: models.MessageTypeImage, MediaID: &media.ID,
	}
	require.NoError(t, repo.CreateMessage(ctx, message))
	require.NoError(t, db.Create(&models.Reaction{
		MessageKind: models.MessageKindRoom, MessageID: message.ID, UserID: member.ID, Emoji: "🎉",
	}).Error)

	mediaIDs, err := repo.DeleteCascade(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{media.ID}, mediaIDs)

	var roomCount, messageCount, membershipCount, reactionCount int64
	require.NoError(t, db.Model(&models.Room{}).Where("id = ?", room.ID).Count(&roomCount).Error)
	require.NoError(t, db.Model(&models.RoomMessage{}).Where("room_id = ?", room.ID).Count(&messageCount).Error)
	require.NoError(t, db.Model(&models.RoomMembership{}).Where("room_id = ?", room.ID).Count(&membershipCount).Error)
	require.NoError(t, db.Model(&models.Reaction{}).Count(&reactionCount).Error)
	assert.Zero(t, roomCount)
	assert.Zero(t, messageCount)
	assert.Zero(t, membershipCount)
	assert.Zero(t, reactionCount)

	t.Run("deleting again is a no-op", func(t *testing.T) {
		mediaIDs, err := repo.DeleteCascade(ctx, room.ID)
		require.NoError(t, err)
		assert.Empty(t, mediaIDs)
	})
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}
