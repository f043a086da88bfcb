package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strings"
	"time"

	"parley/internal/clock"
	"parley/internal/models"
	"parley/internal/notifications"
	"parley/internal/observability"
	"parley/internal/repository"
	"parley/internal/validation"

	"gorm.io/gorm"
)

const (
	inviteCodeLength      = 12
	inviteCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeMaxAttempts = 5

	// roomMessageCap bounds non-permanent rooms to their newest messages.
	roomMessageCap = 200
	// permanentRoomRetention is the rolling window permanent rooms keep
	// messages for.
	permanentRoomRetention = 24 * time.Hour
	// creatorLogoutGrace is how long a non-permanent room survives after its
	// creator logs out.
	creatorLogoutGrace = 10 * time.Minute
)

const creatorOfflineNotice = "The project owner has gone offline. This project will close in 10 minutes unless they return."

// RoomService provides room (project) business logic: lifecycle, membership,
// messaging and retention.
type RoomService struct {
	db           *gorm.DB
	roomRepo     repository.RoomRepository
	reactionRepo repository.ReactionRepository
	userRepo     repository.UserRepository
	mediaRepo    repository.MediaRepository
	clock        clock.Clock
	push         func(userID uint, event notifications.Event) bool
	isOnline     func(userID uint) bool
	cleanupMedia func(ctx context.Context, mediaIDs []uint)
}

// CreateRoomInput is the input for creating a room.
type CreateRoomInput struct {
	CreatorID   uint
	Name        string
	Description string
	IsPermanent bool
}

// SendRoomMessageInput is the input for posting a room message. A non-nil
// RecipientID makes the message a secret visible only to sender and
// recipient.
type SendRoomMessageInput struct {
	SenderID    uint
	RoomID      uint
	Content     string
	Type        models.MessageType
	Caption     string
	MediaID     *uint
	ReplyToID   *uint
	RecipientID *uint
}

// NewRoomService returns a new RoomService. push delivers realtime events,
// isOnline reports live connection presence and cleanupMedia disposes of
// orphaned attachments; all three may be nil.
func NewRoomService(
	db *gorm.DB,
	roomRepo repository.RoomRepository,
	reactionRepo repository.ReactionRepository,
	userRepo repository.UserRepository,
	mediaRepo repository.MediaRepository,
	clk clock.Clock,
	push func(userID uint, event notifications.Event) bool,
	isOnline func(userID uint) bool,
	cleanupMedia func(ctx context.Context, mediaIDs []uint),
) *RoomService {
	if clk == nil {
		clk = clock.System()
	}
	return &RoomService{
		db:           db,
		roomRepo:     roomRepo,
		reactionRepo: reactionRepo,
		userRepo:     userRepo,
		mediaRepo:    mediaRepo,
		clock:        clk,
		push:         push,
		isOnline:     isOnline,
		cleanupMedia: cleanupMedia,
	}
}

// Create creates a room with a fresh invite code and auto-joins the creator.
// Guests cannot create rooms; permanent rooms require an elevated role.
func (s *RoomService) Create(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	creator, err := s.userRepo.GetByID(ctx, in.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator.IsGuest() {
		return nil, models.NewForbiddenError("Guests cannot create projects")
	}
	if in.IsPermanent && !creator.Role.Elevated() {
		return nil, models.NewForbiddenError("Only moderators can create permanent projects")
	}
	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateRoomName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var room *models.Room
	for attempt := 0; attempt < inviteCodeMaxAttempts; attempt++ {
		code, cerr := generateInviteCode()
		if cerr != nil {
			return nil, models.NewInternalError(cerr)
		}
		candidate := &models.Room{
			Name:        name,
			Description: in.Description,
			CreatorID:   creator.ID,
			InviteCode:  code,
			Status:      models.RoomStatusActive,
			IsPermanent: in.IsPermanent,
		}
		cerr = s.roomRepo.Create(ctx, candidate)
		if cerr == nil {
			room = candidate
			break
		}
		if models.CodeOf(cerr) != models.CodeConflict {
			return nil, cerr
		}
	}
	if room == nil {
		return nil, models.NewInternalError(errors.New("could not allocate a unique invite code"))
	}

	if err := s.roomRepo.AddMember(ctx, room.ID, creator.ID); err != nil {
		return nil, err
	}
	room.Creator = creator
	return room, nil
}

func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, inviteCodeLength)
	for i, b := range buf {
		code[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(code), nil
}

// Preview returns the public pre-join view behind an invite link. Rooms that
// are not active are indistinguishable from absent ones.
func (s *RoomService) Preview(ctx context.Context, inviteCode string) (*RoomPreview, error) {
	if err := validation.ValidateInviteCode(inviteCode); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	room, err := s.roomRepo.GetByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	if room == nil || room.Status != models.RoomStatusActive {
		return nil, models.NewNotFoundError("Project", inviteCode)
	}
	count, err := s.roomRepo.MemberCount(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return &RoomPreview{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatorName: usernameOf(room.Creator),
		MemberCount: count,
		IsPermanent: room.IsPermanent,
	}, nil
}

// Join adds the user to the room behind the invite code. Joining a room you
// are already in succeeds without side effects. Non-permanent rooms only
// admit new members while their creator is connected.
func (s *RoomService) Join(ctx context.Context, inviteCode string, userID uint) (*models.Room, error) {
	if err := validation.ValidateInviteCode(inviteCode); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	room, err := s.roomRepo.GetByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, models.NewNotFoundError("Project", inviteCode)
	}
	if room.Status != models.RoomStatusActive {
		return nil, models.NewInvalidStateError("Project is no longer active")
	}

	member, err := s.roomRepo.IsMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return room, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !room.IsPermanent && room.CreatorID != userID {
		if s.isOnline == nil || !s.isOnline(room.CreatorID) {
			return nil, models.NewOwnerOfflineError("The project owner is offline; try again when they return")
		}
	}

	if err := s.roomRepo.AddMember(ctx, room.ID, userID); err != nil {
		return nil, err
	}
	s.broadcast(ctx, room.ID, userID, notifications.Event{
		Type: notifications.EventRoomPresence,
		Payload: notifications.RoomPresencePayload{
			RoomID:   room.ID,
			UserID:   userID,
			Username: user.Username,
			Action:   notifications.RoomPresenceJoined,
		},
	})
	return room, nil
}

// Leave removes the user from the room. The creator cannot leave their own
// room; they archive or complete it instead.
func (s *RoomService) Leave(ctx context.Context, roomID, userID uint) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID == userID {
		return models.NewForbiddenError("The project creator cannot leave; archive or complete it instead")
	}
	member, err := s.roomRepo.IsMember(ctx, room.ID, userID)
	if err != nil {
		return err
	}
	if !member {
		return nil
	}
	if err := s.roomRepo.RemoveMember(ctx, room.ID, userID); err != nil {
		return err
	}

	username := ""
	if user, uerr := s.userRepo.GetByID(ctx, userID); uerr == nil {
		username = user.Username
	}
	s.broadcast(ctx, room.ID, userID, notifications.Event{
		Type: notifications.EventRoomPresence,
		Payload: notifications.RoomPresencePayload{
			RoomID:   room.ID,
			UserID:   userID,
			Username: username,
			Action:   notifications.RoomPresenceLeft,
		},
	})
	return nil
}

// GetForMember returns the room if the user belongs to it.
func (s *RoomService) GetForMember(ctx context.Context, roomID, userID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	member, err := s.roomRepo.IsMember(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, models.NewForbiddenError("You are not a member of this project")
	}
	return room, nil
}

// ListForUser returns the rooms the user belongs to, newest activity first.
func (s *RoomService) ListForUser(ctx context.Context, userID uint) ([]models.Room, error) {
	return s.roomRepo.ListForUser(ctx, userID)
}

// ListMembers returns the room's members, members only.
func (s *RoomService) ListMembers(ctx context.Context, roomID, requesterID uint) ([]models.RoomMembership, error) {
	if _, err := s.GetForMember(ctx, roomID, requesterID); err != nil {
		return nil, err
	}
	return s.roomRepo.ListMembers(ctx, roomID)
}

// SendMessage persists a room message, applies the room's retention policy in
// the same transaction, and fans the message out: secrets reach only their
// recipient, open messages reach every member except the sender.
func (s *RoomService) SendMessage(ctx context.Context, in SendRoomMessageInput) (*RoomMessageView, error) {
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

	room, err := s.roomRepo.GetByID(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomStatusActive {
		return nil, models.NewInvalidStateError("Project is no longer active")
	}
	member, err := s.roomRepo.IsMember(ctx, room.ID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, models.NewForbiddenError("You are not a member of this project")
	}

	if in.RecipientID != nil {
		if *in.RecipientID == in.SenderID {
			return nil, models.NewValidationError("Cannot send a secret message to yourself")
		}
		recipientMember, merr := s.roomRepo.IsMember(ctx, room.ID, *in.RecipientID)
		if merr != nil {
			return nil, merr
		}
		if !recipientMember {
			return nil, models.NewValidationError("Secret recipient is not a project member")
		}
	}
	if in.ReplyToID != nil {
		target, terr := s.roomRepo.GetMessageByID(ctx, *in.ReplyToID)
		if terr != nil {
			if models.CodeOf(terr) == models.CodeNotFound {
				return nil, models.NewValidationError("Reply target does not exist")
			}
			return nil, terr
		}
		// A secret you were not part of is not a valid reply target either.
		if target.RoomID != room.ID || !target.ReadableBy(in.SenderID) {
			return nil, models.NewValidationError("Reply target does not exist")
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

	message := &models.RoomMessage{
		RoomID:      room.ID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		Type:        in.Type,
		Caption:     in.Caption,
		MediaID:     in.MediaID,
		ReplyToID:   in.ReplyToID,
	}

	var trimmedMedia []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		var terr error
		if room.IsPermanent {
			_, trimmedMedia, terr = purgeRoomMessagesBefore(tx, room.ID, s.clock.Now().Add(-permanentRoomRetention))
		} else {
			_, trimmedMedia, terr = trimRoomMessagesToCap(tx, room.ID, roomMessageCap)
		}
		return terr
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	s.cleanup(ctx, trimmedMedia)

	observability.MessageThroughput.WithLabelValues("room", string(message.Type)).Inc()

	if full, gerr := s.roomRepo.GetMessageByID(ctx, message.ID); gerr == nil {
		message = full
	}
	view := roomMessageView(message, nil)

	event := notifications.Event{Type: notifications.EventNewMessage, Payload: view}
	if message.IsSecret() {
		if s.push != nil {
			s.push(*message.RecipientID, event)
		}
	} else {
		s.broadcast(ctx, room.ID, in.SenderID, event)
	}
	return &view, nil
}

// FetchMessages returns the requester's view of the room: oldest first, with
// secrets they were not part of filtered out, reactions attached.
func (s *RoomService) FetchMessages(ctx context.Context, roomID, requesterID uint, limit, offset int) ([]RoomMessageView, error) {
	if _, err := s.GetForMember(ctx, roomID, requesterID); err != nil {
		return nil, err
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

	messages, err := s.roomRepo.ListMessagesReadable(ctx, roomID, requesterID, limit, offset)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(messages))
	for i := range messages {
		ids = append(ids, messages[i].ID)
	}
	reactions, err := s.reactionRepo.ListForMessages(ctx, models.MessageKindRoom, ids)
	if err != nil {
		return nil, err
	}
	byMessage := reactionViewsByMessage(reactions)

	views := make([]RoomMessageView, 0, len(messages))
	for i := range messages {
		views = append(views, roomMessageView(&messages[i], byMessage[messages[i].ID]))
	}
	return views, nil
}

// MarkCreatorLoggedOut schedules every active non-permanent room the user
// created for deletion after a grace window and warns the members. One room's
// failure does not stop the rest.
func (s *RoomService) MarkCreatorLoggedOut(ctx context.Context, creatorID uint) error {
	rooms, err := s.roomRepo.ListActiveCreatedBy(ctx, creatorID)
	if err != nil {
		return err
	}
	deadline := s.clock.Now().Add(creatorLogoutGrace)
	for i := range rooms {
		if err := s.markRoomForDeletion(ctx, &rooms[i], deadline); err != nil {
			slog.ErrorContext(ctx, "failed to mark room for deletion",
				"room_id", rooms[i].ID, "creator_id", creatorID, "err", err)
		}
	}
	return nil
}

func (s *RoomService) markRoomForDeletion(ctx context.Context, room *models.Room, deadline time.Time) error {
	if err := s.roomRepo.SetExpiry(ctx, room.ID, &deadline); err != nil {
		return err
	}
	notice := &models.RoomMessage{
		RoomID:   room.ID,
		SenderID: room.CreatorID,
		Content:  creatorOfflineNotice,
		Type:     models.MessageTypeSystem,
	}
	if err := s.roomRepo.CreateMessage(ctx, notice); err != nil {
		return err
	}

	s.broadcast(ctx, room.ID, room.CreatorID, notifications.Event{
		Type: notifications.EventRoomPresence,
		Payload: notifications.RoomPresencePayload{
			RoomID: room.ID,
			UserID: room.CreatorID,
			Action: notifications.RoomPresenceCreatorOffline,
		},
	})
	view := roomMessageView(notice, nil)
	s.broadcast(ctx, room.ID, room.CreatorID, notifications.Event{
		Type:    notifications.EventNewMessage,
		Payload: view,
	})
	return nil
}

// MarkCreatorActive cancels pending deletion on the user's rooms after they
// reconnect.
func (s *RoomService) MarkCreatorActive(ctx context.Context, creatorID uint) error {
	rooms, err := s.roomRepo.ListActiveCreatedBy(ctx, creatorID)
	if err != nil {
		return err
	}
	for i := range rooms {
		room := &rooms[i]
		if room.ExpiresAt == nil {
			continue
		}
		if err := s.roomRepo.SetExpiry(ctx, room.ID, nil); err != nil {
			slog.ErrorContext(ctx, "failed to clear room expiry",
				"room_id", room.ID, "creator_id", creatorID, "err", err)
			continue
		}
		s.broadcast(ctx, room.ID, creatorID, notifications.Event{
			Type: notifications.EventRoomPresence,
			Payload: notifications.RoomPresencePayload{
				RoomID: room.ID,
				UserID: creatorID,
				Action: notifications.RoomPresenceCreatorOnline,
			},
		})
	}
	return nil
}

// Complete marks the room's work as finished.
func (s *RoomService) Complete(ctx context.Context, roomID, actorID uint) (*models.Room, error) {
	return s.transition(ctx, roomID, actorID, models.RoomStatusCompleted)
}

// Archive retires the room.
func (s *RoomService) Archive(ctx context.Context, roomID, actorID uint) (*models.Room, error) {
	return s.transition(ctx, roomID, actorID, models.RoomStatusArchived)
}

func (s *RoomService) transition(ctx context.Context, roomID, actorID uint, to models.RoomStatus) (*models.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID != actorID && !actor.Role.Elevated() {
		return nil, models.NewForbiddenError("Only the project creator or a moderator can do that")
	}
	if room.Status != models.RoomStatusActive {
		return nil, models.NewInvalidStateError("Project is not active")
	}
	room.Status = to
	if err := s.roomRepo.Update(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// PurgeCreatedBy deletes the active non-permanent rooms the user created.
// Used when an account is deleted; permanent rooms outlive their creator.
func (s *RoomService) PurgeCreatedBy(ctx context.Context, creatorID uint) error {
	rooms, err := s.roomRepo.ListActiveCreatedBy(ctx, creatorID)
	if err != nil {
		return err
	}
	for i := range rooms {
		mediaIDs, derr := s.roomRepo.DeleteCascade(ctx, rooms[i].ID)
		if derr != nil {
			slog.ErrorContext(ctx, "failed to purge room for deleted account",
				"room_id", rooms[i].ID, "creator_id", creatorID, "err", derr)
			continue
		}
		s.cleanup(ctx, mediaIDs)
	}
	return nil
}

// SweepExpired deletes rooms past their deletion timestamp, up to batchSize
// of them. One failed deletion does not stop the sweep.
func (s *RoomService) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	expired, err := s.roomRepo.ListExpired(ctx, s.clock.Now(), batchSize)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range expired {
		mediaIDs, derr := s.roomRepo.DeleteCascade(ctx, expired[i].ID)
		if derr != nil {
			observability.SweepErrors.WithLabelValues("room").Inc()
			slog.ErrorContext(ctx, "failed to sweep expired room",
				"room_id", expired[i].ID, "err", derr)
			continue
		}
		s.cleanup(ctx, mediaIDs)
		deleted++
		observability.SweepDeletes.WithLabelValues("room").Inc()
	}
	return deleted, nil
}

// TrimMessages applies each room's retention policy across the board:
// permanent rooms lose messages past the rolling window, capped rooms lose
// their oldest overflow. Returns the number of messages deleted.
func (s *RoomService) TrimMessages(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0

	permanentIDs, err := s.roomRepo.ListIDsByPermanence(ctx, true)
	if err != nil {
		return total, err
	}
	for _, id := range permanentIDs {
		total += s.trimRoom(ctx, id, func(tx *gorm.DB) (int, []uint, error) {
			return purgeRoomMessagesBefore(tx, id, now.Add(-permanentRoomRetention))
		})
	}

	cappedIDs, err := s.roomRepo.ListIDsByPermanence(ctx, false)
	if err != nil {
		return total, err
	}
	for _, id := range cappedIDs {
		total += s.trimRoom(ctx, id, func(tx *gorm.DB) (int, []uint, error) {
			return trimRoomMessagesToCap(tx, id, roomMessageCap)
		})
	}
	return total, nil
}

func (s *RoomService) trimRoom(ctx context.Context, roomID uint, trim func(tx *gorm.DB) (int, []uint, error)) int {
	deleted := 0
	var mediaIDs []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var terr error
		deleted, mediaIDs, terr = trim(tx)
		return terr
	})
	if err != nil {
		observability.SweepErrors.WithLabelValues("room_message").Inc()
		slog.ErrorContext(ctx, "failed to trim room messages", "room_id", roomID, "err", err)
		return 0
	}
	if deleted > 0 {
		observability.SweepDeletes.WithLabelValues("room_message").Add(float64(deleted))
	}
	s.cleanup(ctx, mediaIDs)
	return deleted
}

// broadcast fans an event out to the room's members, skipping exclude.
// Delivery counts are observability only; missing connections are normal.
func (s *RoomService) broadcast(ctx context.Context, roomID, exclude uint, event notifications.Event) {
	if s.push == nil {
		return
	}
	memberIDs, err := s.roomRepo.MemberIDs(ctx, roomID)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve room members for fanout",
			"room_id", roomID, "event", string(event.Type), "err", err)
		return
	}
	delivered := 0
	for _, id := range memberIDs {
		if id == exclude {
			continue
		}
		if s.push(id, event) {
			delivered++
		}
	}
	slog.DebugContext(ctx, "room event fanned out",
		"room_id", roomID, "event", string(event.Type),
		"delivered", delivered, "members", len(memberIDs))
}

func (s *RoomService) cleanup(ctx context.Context, mediaIDs []uint) {
	if len(mediaIDs) == 0 || s.cleanupMedia == nil {
		return
	}
	s.cleanupMedia(ctx, mediaIDs)
}

// purgeRoomMessagesBefore deletes the room's messages created before cutoff,
// with their reactions, returning the count and the media asset IDs they
// referenced.
func purgeRoomMessagesBefore(tx *gorm.DB, roomID uint, cutoff time.Time) (int, []uint, error) {
	var ids []uint
	if err := tx.Model(&models.RoomMessage{}).
		Where("room_id = ? AND created_at < ?", roomID, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, nil, err
	}
	return deleteRoomMessages(tx, ids)
}

// trimRoomMessagesToCap deletes the room's oldest messages beyond maxCount.
func trimRoomMessagesToCap(tx *gorm.DB, roomID uint, maxCount int) (int, []uint, error) {
	var count int64
	if err := tx.Model(&models.RoomMessage{}).
		Where("room_id = ?", roomID).
		Count(&count).Error; err != nil {
		return 0, nil, err
	}
	overflow := int(count) - maxCount
	if overflow <= 0 {
		return 0, nil, nil
	}
	var ids []uint
	if err := tx.Model(&models.RoomMessage{}).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Limit(overflow).
		Pluck("id", &ids).Error; err != nil {
		return 0, nil, err
	}
	return deleteRoomMessages(tx, ids)
}

func deleteRoomMessages(tx *gorm.DB, ids []uint) (int, []uint, error) {
	if len(ids) == 0 {
		return 0, nil, nil
	}
	var mediaIDs []uint
	if err := tx.Model(&models.RoomMessage{}).
		Where("id IN ? AND media_id IS NOT NULL", ids).
		Distinct().
		Pluck("media_id", &mediaIDs).Error; err != nil {
		return 0, nil, err
	}
	if err := tx.Where("message_kind = ? AND message_id IN ?", models.MessageKindRoom, ids).
		Delete(&models.Reaction{}).Error; err != nil {
		return 0, nil, err
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.RoomMessage{}).Error; err != nil {
		return 0, nil, err
	}
	return len(ids), mediaIDs, nil
}
