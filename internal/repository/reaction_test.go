package repository

import (
	"context"
	"testing"

	"parley/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionRepository_Upsert(t *testing.T) {
	db := newTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	conversation := createTestConversation(t, db, alice, bob)

	message := &models.Message{
		ConversationID: conversation.ID, SenderID: alice.ID,
		Content: "react to me", Type: models.MessageTypeText,
		VisibleToA: true, VisibleToB: true,
	}
	require.NoError(t, db.Create(message).Error)

	require.NoError(t, repo.Upsert(ctx, &models.Reaction{
		MessageKind: models.MessageKindDirect, MessageID: message.ID, UserID: bob.ID, Emoji: "👍",
	}))

	t.Run("reacting again replaces the emoji", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, &models.Reaction{
			MessageKind: models.MessageKindDirect, MessageID: message.ID, UserID: bob.ID, Emoji: "❤️",
		}))

		reactions, err := repo.ListForMessages(ctx, models.MessageKindDirect, []uint{message.ID})
		require.NoError(t, err)
		require.Len(t, reactions, 1)
		assert.Equal(t, "❤️", reactions[0].Emoji)
	})

	t.Run("different users react independently", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, &models.Reaction{
			MessageKind: models.MessageKindDirect, MessageID: message.ID, UserID: alice.ID, Emoji: "🎉",
		}))

		reactions, err := repo.ListForMessages(ctx, models.MessageKindDirect, []uint{message.ID})
		require.NoError(t, err)
		assert.Len(t, reactions, 2)
	})

	t.Run("kinds are separate namespaces", func(t *testing.T) {
		reactions, err := repo.ListForMessages(ctx, models.MessageKindRoom, []uint{message.ID})
		require.NoError(t, err)
		assert.Empty(t, reactions)
	})
}

func TestReactionRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	conversation := createTestConversation(t, db, alice, bob)

	message := &models.Message{
		ConversationID: conversation.ID, SenderID: alice.ID,
		Content: "fleeting", Type: models.MessageTypeText,
		VisibleToA: true, VisibleToB: true,
	}
	require.NoError(t, db.Create(message).Error)
	require.NoError(t, repo.Upsert(ctx, &models.Reaction{
		MessageKind: models.MessageKindDirect, MessageID: message.ID, UserID: bob.ID, Emoji: "👀",
	}))

	found, err := repo.Delete(ctx, models.MessageKindDirect, message.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Delete(ctx, models.MessageKindDirect, message.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, found, "second delete finds nothing")
}

func TestReactionRepository_ListForMessages(t *testing.T) {
	db := newTestDB(t)
	repo := NewReactionRepository(db)
	ctx := context.Background()

	reactions, err := repo.ListForMessages(ctx, models.MessageKindDirect, nil)
	require.NoError(t, err)
	assert.Empty(t, reactions)
}
