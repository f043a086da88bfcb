package service

import (
	"context"
	"testing"
	"time"

	"parley/internal/clock"
	"parley/internal/models"

	"github.com/stretchr/testify/assert"
)

// One sweep pass picks up all three retention mechanisms at once: expired
// conversations, rooms past their deletion deadline, and messages past a
// permanent room's rolling window.
func TestSweeper_RunOnce(t *testing.T) {
	db := openTestDB(t)
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	online := map[uint]bool{}
	convSvc := newConversationTestService(db, clk, nil)
	roomSvc := newRoomTestService(db, clk, nil, func(userID uint) bool { return online[userID] })
	sweeper := NewSweeper(convSvc, roomSvc)
	ctx := context.Background()

	alice := seedRegistered(t, db, "alice")
	bob := seedRegistered(t, db, "bob")
	creator := seedRegistered(t, db, "creator")
	moderator := seedWithRole(t, db, "mod", models.RoleModerator)

	conv, err := convSvc.Open(ctx, alice.ID, bob.ID)
	assert.NoError(t, err)
	_, err = convSvc.Send(ctx, SendDirectMessageInput{SenderID: alice.ID, ConversationID: conv.ID, Content: "doomed"})
	assert.NoError(t, err)

	doomedRoom, err := roomSvc.Create(ctx, CreateRoomInput{CreatorID: creator.ID, Name: "Doomed"})
	assert.NoError(t, err)
	assert.NoError(t, roomSvc.MarkCreatorLoggedOut(ctx, creator.ID))

	keeper, err := roomSvc.Create(ctx, CreateRoomInput{CreatorID: moderator.ID, Name: "Keeper", IsPermanent: true})
	assert.NoError(t, err)
	stale := &models.RoomMessage{
		RoomID: keeper.ID, SenderID: moderator.ID,
		Content: "old news", Type: models.MessageTypeText,
		CreatedAt: clk.Now(),
	}
	db.Create(stale)

	clk.Advance(25 * time.Hour)

	result := sweeper.RunOnce(ctx)
	assert.Equal(t, 1, result.Conversations)
	assert.Equal(t, 1, result.Rooms)
	assert.Equal(t, 1, result.TrimmedMessages)

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.Message{}).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.Room{}).Where("id = ?", doomedRoom.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.Room{}).Where("id = ?", keeper.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	db.Model(&models.RoomMessage{}).Where("room_id = ?", keeper.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	second := sweeper.RunOnce(ctx)
	assert.Equal(t, SweepResult{}, second)
}

// Run keeps sweeping on its interval until the context ends.
func TestSweeper_Run_StopsOnContextCancel(t *testing.T) {
	db := openTestDB(t)
	convSvc := newConversationTestService(db, nil, nil)
	roomSvc := newRoomTestService(db, nil, nil, nil)
	sweeper := NewSweeper(convSvc, roomSvc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
