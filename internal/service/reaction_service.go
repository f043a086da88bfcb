package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"parley/internal/models"
	"parley/internal/notifications"
	"parley/internal/repository"
)

const maxEmojiLen = 32

// ReactionService attaches and removes emoji reactions on both message
// kinds, honoring conversation participation, room membership and secret
// visibility.
type ReactionService struct {
	convRepo     repository.ConversationRepository
	messageRepo  repository.MessageRepository
	roomRepo     repository.RoomRepository
	reactionRepo repository.ReactionRepository
	userRepo     repository.UserRepository
	push         func(userID uint, event notifications.Event) bool
}

// NewReactionService returns a new ReactionService. push may be nil.
func NewReactionService(
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	reactionRepo repository.ReactionRepository,
	userRepo repository.UserRepository,
	push func(userID uint, event notifications.Event) bool,
) *ReactionService {
	return &ReactionService{
		convRepo:     convRepo,
		messageRepo:  messageRepo,
		roomRepo:     roomRepo,
		reactionRepo: reactionRepo,
		userRepo:     userRepo,
		push:         push,
	}
}

// React sets the user's reaction on a message. Reacting again with a
// different emoji replaces the previous one.
func (s *ReactionService) React(ctx context.Context, kind models.MessageKind, messageID, userID uint, emoji string) (*ReactionView, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, models.NewValidationError("Emoji is required")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLen {
		return nil, models.NewValidationError("Emoji too long")
	}

	targets, err := s.reactionAudience(ctx, kind, messageID, userID)
	if err != nil {
		return nil, err
	}

	reaction := &models.Reaction{
		MessageKind: kind,
		MessageID:   messageID,
		UserID:      userID,
		Emoji:       emoji,
	}
	if err := s.reactionRepo.Upsert(ctx, reaction); err != nil {
		return nil, err
	}

	username := ""
	if user, uerr := s.userRepo.GetByID(ctx, userID); uerr == nil {
		username = user.Username
	}

	s.fanout(targets, notifications.Event{
		Type: notifications.EventMessageReacted,
		Payload: notifications.ReactionPayload{
			MessageKind: string(kind),
			MessageID:   messageID,
			UserID:      userID,
			Emoji:       emoji,
		},
	})
	return &ReactionView{UserID: userID, Username: username, Emoji: emoji}, nil
}

// Unreact removes the user's reaction from a message.
func (s *ReactionService) Unreact(ctx context.Context, kind models.MessageKind, messageID, userID uint) error {
	targets, err := s.reactionAudience(ctx, kind, messageID, userID)
	if err != nil {
		return err
	}

	found, err := s.reactionRepo.Delete(ctx, kind, messageID, userID)
	if err != nil {
		return err
	}
	if !found {
		return models.NewNotFoundError("Reaction", messageID)
	}

	s.fanout(targets, notifications.Event{
		Type: notifications.EventReactionRemoved,
		Payload: notifications.ReactionPayload{
			MessageKind: string(kind),
			MessageID:   messageID,
			UserID:      userID,
		},
	})
	return nil
}

// reactionAudience authorizes the user against the message and returns who
// should hear about reaction changes on it: the conversation peer for direct
// messages, the other secret party for secrets, everyone else for open room
// messages.
func (s *ReactionService) reactionAudience(ctx context.Context, kind models.MessageKind, messageID, userID uint) ([]uint, error) {
	switch kind {
	case models.MessageKindDirect:
		message, err := s.messageRepo.GetByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		conversation, err := s.convRepo.GetByID(ctx, message.ConversationID)
		if err != nil {
			return nil, err
		}
		if !conversation.HasParticipant(userID) {
			return nil, models.NewForbiddenError("You are not a participant in this conversation")
		}
		return []uint{conversation.PeerOf(userID)}, nil

	case models.MessageKindRoom:
		message, err := s.roomRepo.GetMessageByID(ctx, messageID)
		if err != nil {
			return nil, err
		}
		member, err := s.roomRepo.IsMember(ctx, message.RoomID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, models.NewForbiddenError("You are not a member of this project")
		}
		// Secrets you were not part of do not exist for you.
		if !message.ReadableBy(userID) {
			return nil, models.NewNotFoundError("Message", messageID)
		}
		if message.IsSecret() {
			other := message.SenderID
			if other == userID {
				other = *message.RecipientID
			}
			return []uint{other}, nil
		}
		memberIDs, err := s.roomRepo.MemberIDs(ctx, message.RoomID)
		if err != nil {
			return nil, err
		}
		targets := make([]uint, 0, len(memberIDs))
		for _, id := range memberIDs {
			if id != userID {
				targets = append(targets, id)
			}
		}
		return targets, nil

	default:
		return nil, models.NewValidationError("Invalid message kind")
	}
}

func (s *ReactionService) fanout(targets []uint, event notifications.Event) {
	if s.push == nil {
		return
	}
	for _, id := range targets {
		s.push(id, event)
	}
}
