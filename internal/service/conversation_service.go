// Package service provides application business logic (conversations, rooms,
// moderation, media).
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"parley/internal/clock"
	"parley/internal/models"
	"parley/internal/notifications"
	"parley/internal/observability"
	"parley/internal/repository"

	"gorm.io/gorm"
)

// ConversationLifetime is the window a direct conversation stays usable
// after it is opened.
const ConversationLifetime = 24 * time.Hour

const (
	maxMessageContentLen     = 10000 // 10K characters
	defaultMessageFetchLimit = 50
	maxMessageFetchLimit     = 200
)

// ConversationService provides direct (two-party) conversation business
// logic.
type ConversationService struct {
	db           *gorm.DB
	convRepo     repository.ConversationRepository
	messageRepo  repository.MessageRepository
	reactionRepo repository.ReactionRepository
	userRepo     repository.UserRepository
	mediaRepo    repository.MediaRepository
	clock        clock.Clock
	push         func(userID uint, event notifications.Event) bool
	cleanupMedia func(ctx context.Context, mediaIDs []uint)
	isBlocked    func(ctx context.Context, userX, userY uint) (bool, error)
}

// SendDirectMessageInput is the input for sending a direct message.
type SendDirectMessageInput struct {
	SenderID       uint
	ConversationID uint
	Content        string
	Type           models.MessageType
	Caption        string
	MediaID        *uint
	ReplyToID      *uint
}

// NewConversationService returns a new ConversationService. push delivers
// realtime events, cleanupMedia disposes of orphaned attachments and
// isBlocked consults the relationship graph; each may be nil.
func NewConversationService(
	db *gorm.DB,
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	reactionRepo repository.ReactionRepository,
	userRepo repository.UserRepository,
	mediaRepo repository.MediaRepository,
	clk clock.Clock,
	push func(userID uint, event notifications.Event) bool,
	cleanupMedia func(ctx context.Context, mediaIDs []uint),
	isBlocked func(ctx context.Context, userX, userY uint) (bool, error),
) *ConversationService {
	if clk == nil {
		clk = clock.System()
	}
	return &ConversationService{
		db:           db,
		convRepo:     convRepo,
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		userRepo:     userRepo,
		mediaRepo:    mediaRepo,
		clock:        clk,
		push:         push,
		cleanupMedia: cleanupMedia,
		isBlocked:    isBlocked,
	}
}

// Open returns the conversation between the user and peer, creating it with
// a fresh lifetime window when none is usable. Opening an already active
// conversation returns it unchanged, so both parties resolve the same one.
func (s *ConversationService) Open(ctx context.Context, userID, peerID uint) (*models.Conversation, error) {
	if userID == peerID {
		return nil, models.NewValidationError("Cannot open a conversation with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, peerID); err != nil {
		return nil, err
	}
	if err := s.checkNotBlocked(ctx, userID, peerID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	existing, err := s.convRepo.GetByPair(ctx, userID, peerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IsActive && !existing.ExpiredBy(now) {
			return existing, nil
		}
		// A dead conversation the sweeper has not reached yet. Its content
		// must not resurface in the new one.
		mediaIDs, derr := s.convRepo.DeleteCascade(ctx, existing.ID)
		if derr != nil {
			return nil, derr
		}
		s.cleanup(ctx, mediaIDs)
	}

	a, b := models.CanonicalPair(userID, peerID)
	conversation := &models.Conversation{
		UserAID:   a,
		UserBID:   b,
		ExpiresAt: now.Add(ConversationLifetime),
		IsActive:  true,
	}
	if err := s.convRepo.Create(ctx, conversation); err != nil {
		if models.CodeOf(err) == models.CodeConflict {
			// Lost a race against the peer opening the same pair.
			again, gerr := s.convRepo.GetByPair(ctx, userID, peerID)
			if gerr == nil && again != nil {
				return again, nil
			}
		}
		return nil, err
	}
	return conversation, nil
}

// GetForUser returns the conversation if the user is a participant.
func (s *ConversationService) GetForUser(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	conversation, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	return conversation, nil
}

// ListActive returns the user's usable conversations, newest activity first.
func (s *ConversationService) ListActive(ctx context.Context, userID uint) ([]models.Conversation, error) {
	return s.convRepo.ListActiveForUser(ctx, userID, s.clock.Now())
}

// Send persists a message and attempts one realtime push to the peer. Push
// delivery is best-effort: an offline peer only means the peer will see the
// message on their next fetch.
func (s *ConversationService) Send(ctx context.Context, in SendDirectMessageInput) (*MessageView, error) {
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if !in.Type.Valid() || in.Type == models.MessageTypeSystem {
		return nil, models.NewValidationError("Invalid message type")
	}
	if in.Content == "" && in.MediaID == nil {
		return nil, models.NewValidationError("Message content is required")
	}
	if len(in.Content) > maxMessageContentLen {
		return nil, models.NewValidationError("Message content too long (max 10000 characters)")
	}
	if in.MediaID != nil && in.Type == models.MessageTypeText {
		return nil, models.NewValidationError("Attachments require an image, video or file message type")
	}

	conversation, err := s.convRepo.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(in.SenderID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	if !conversation.IsActive || conversation.ExpiredBy(s.clock.Now()) {
		return nil, models.NewInvalidStateError("Conversation has expired")
	}
	if err := s.checkNotBlocked(ctx, in.SenderID, conversation.PeerOf(in.SenderID)); err != nil {
		return nil, err
	}

	if in.ReplyToID != nil {
		target, terr := s.messageRepo.GetByID(ctx, *in.ReplyToID)
		if terr != nil {
			if models.CodeOf(terr) == models.CodeNotFound {
				return nil, models.NewValidationError("Reply target does not exist")
			}
			return nil, terr
		}
		if target.ConversationID != conversation.ID {
			return nil, models.NewValidationError("Reply target is in another conversation")
		}
	}
	if in.MediaID != nil {
		asset, aerr := s.mediaRepo.GetByID(ctx, *in.MediaID)
		if aerr != nil {
			return nil, aerr
		}
		if asset.OwnerID != in.SenderID {
			return nil, models.NewForbiddenError("You can only attach your own media")
		}
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           in.Type,
		Caption:        in.Caption,
		MediaID:        in.MediaID,
		ReplyToID:      in.ReplyToID,
		VisibleToA:     true,
		VisibleToB:     true,
	}

	// Creating the message and clearing the sender's own logged-out flag
	// land together: a send proves the sender is back.
	senderColumn := "user_b_logged_out"
	if conversation.SideOf(in.SenderID) {
		senderColumn = "user_a_logged_out"
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conversation.ID).
			Update(senderColumn, false).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.MessageThroughput.WithLabelValues("direct", string(message.Type)).Inc()

	if full, gerr := s.messageRepo.GetByID(ctx, message.ID); gerr == nil {
		message = full
	} else if sender, uerr := s.userRepo.GetByID(ctx, in.SenderID); uerr == nil {
		message.Sender = sender
	}
	view := directMessageView(message, nil)

	peerID := conversation.PeerOf(in.SenderID)
	if s.push != nil {
		if delivered := s.push(peerID, notifications.Event{
			Type:    notifications.EventNewMessage,
			Payload: view,
		}); !delivered {
			slog.DebugContext(ctx, "peer not reachable for message push",
				"conversation_id", conversation.ID, "peer_id", peerID)
		}
	}

	return &view, nil
}

// FetchVisibleMessages returns the requester's view of the conversation:
// oldest first, restricted to messages still visible to their side, with
// reactions and reply previews attached.
func (s *ConversationService) FetchVisibleMessages(ctx context.Context, conversationID, requesterID uint, limit, offset int) ([]MessageView, error) {
	conversation, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(requesterID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}

	if limit <= 0 {
		limit = defaultMessageFetchLimit
	}
	if limit > maxMessageFetchLimit {
		limit = maxMessageFetchLimit
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messageRepo.ListVisible(ctx, conversation.ID, conversation.SideOf(requesterID), limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].ID)
	}
	reactions, err := s.reactionRepo.ListForMessages(ctx, models.MessageKindDirect, ids)
	if err != nil {
		return nil, err
	}
	byMessage := reactionViewsByMessage(reactions)

	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, directMessageView(&messages[i], byMessage[messages[i].ID]))
	}
	return views, nil
}

// MarkRead marks every unread message from the peer as read and notifies
// each message's sender. Returns the number of messages flipped.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, readerID uint) (int, error) {
	conversation, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conversation.HasParticipant(readerID) {
		return 0, models.NewForbiddenError("You are not a participant in this conversation")
	}

	unread, err := s.messageRepo.ListUnreadFromPeer(ctx, conversation.ID, readerID)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	marked := 0
	for i := range unread {
		message := &unread[i]
		if err := s.messageRepo.MarkRead(ctx, message.ID, now); err != nil {
			slog.WarnContext(ctx, "failed to mark message read",
				"message_id", message.ID, "err", err)
			continue
		}
		marked++
		if s.push != nil {
			s.push(message.SenderID, notifications.Event{
				Type: notifications.EventMessageRead,
				Payload: notifications.MessageReadPayload{
					ConversationID: conversation.ID,
					MessageID:      message.ID,
					ReaderID:       readerID,
					ReadAt:         now,
				},
			})
		}
	}
	return marked, nil
}

// OnUserLogout applies the ephemerality contract to every conversation the
// user participates in: their side's messages disappear, and once both sides
// have logged out the conversation is removed entirely. Failures on one
// conversation do not stop the rest.
func (s *ConversationService) OnUserLogout(ctx context.Context, userID uint) error {
	conversations, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range conversations {
		if err := s.logoutFromConversation(ctx, conversations[i].ID, userID); err != nil {
			slog.ErrorContext(ctx, "logout processing failed for conversation",
				"conversation_id", conversations[i].ID, "user_id", userID, "err", err)
		}
	}
	return nil
}

func (s *ConversationService) logoutFromConversation(ctx context.Context, conversationID, userID uint) error {
	bothOut := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.First(&conversation, conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		peerOut := conversation.UserBLoggedOut
		ownColumn, visibilityColumn := "user_a_logged_out", "visible_to_a"
		if !conversation.SideOf(userID) {
			peerOut = conversation.UserALoggedOut
			ownColumn, visibilityColumn = "user_b_logged_out", "visible_to_b"
		}
		bothOut = peerOut

		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update(ownColumn, true).Error; err != nil {
			return err
		}
		return tx.Model(&models.Message{}).
			Where("conversation_id = ?", conversationID).
			Update(visibilityColumn, false).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}

	if bothOut {
		mediaIDs, derr := s.convRepo.DeleteCascade(ctx, conversationID)
		if derr != nil {
			return derr
		}
		s.cleanup(ctx, mediaIDs)
	}
	return nil
}

// PurgeForUser deletes every conversation the user participates in,
// regardless of state. Used when an account is deleted.
func (s *ConversationService) PurgeForUser(ctx context.Context, userID uint) error {
	conversations, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range conversations {
		mediaIDs, derr := s.convRepo.DeleteCascade(ctx, conversations[i].ID)
		if derr != nil {
			slog.ErrorContext(ctx, "failed to purge conversation for deleted account",
				"conversation_id", conversations[i].ID, "user_id", userID, "err", derr)
			continue
		}
		s.cleanup(ctx, mediaIDs)
	}
	return nil
}

// SweepExpired deletes conversations past their window, up to batchSize of
// them. One failed deletion does not stop the sweep.
func (s *ConversationService) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	expired, err := s.convRepo.ListExpired(ctx, s.clock.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range expired {
		mediaIDs, derr := s.convRepo.DeleteCascade(ctx, expired[i].ID)
		if derr != nil {
			observability.SweepErrors.WithLabelValues("conversation").Inc()
			slog.ErrorContext(ctx, "failed to sweep expired conversation",
				"conversation_id", expired[i].ID, "err", derr)
			continue
		}
		s.cleanup(ctx, mediaIDs)
		deleted++
		observability.SweepDeletes.WithLabelValues("conversation").Inc()
	}
	return deleted, nil
}

func (s *ConversationService) cleanup(ctx context.Context, mediaIDs []uint) {
	if len(mediaIDs) == 0 || s.cleanupMedia == nil {
		return
	}
	s.cleanupMedia(ctx, mediaIDs)
}

func (s *ConversationService) checkNotBlocked(ctx context.Context, userID, peerID uint) error {
	if s.isBlocked == nil {
		return nil
	}
	blocked, err := s.isBlocked(ctx, userID, peerID)
	if err != nil {
		return err
	}
	if blocked {
		return models.NewForbiddenError("You cannot message this user")
	}
	return nil
}
