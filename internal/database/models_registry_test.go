package database

import (
	"testing"

	modelspkg "parley/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_IncludesRoomMessage(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*modelspkg.RoomMessage); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include RoomMessage")
}

func TestPersistentModels_CoversReactionAndMedia(t *testing.T) {
	var hasReaction, hasMedia bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *modelspkg.Reaction:
			hasReaction = true
		case *modelspkg.MediaAsset:
			hasMedia = true
		}
	}
	require.True(t, hasReaction, "PersistentModels should include Reaction")
	require.True(t, hasMedia, "PersistentModels should include MediaAsset")
}
