// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"parley/internal/models"
	"parley/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

const (
	factoryPassword    = "Seed!Passw0rd123"
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength   = 12
)

// SeedOptions configure volume and behavior of the seeder.
type SeedOptions struct {
	NumUsers         int
	NumConversations int
	NumRooms         int
	// MaxDays spreads account creation dates into the past. Messages are
	// always seeded inside the retention window so they survive the sweeper.
	MaxDays     int
	ShouldClean bool
	DryRun      bool
	SkipBcrypt  bool
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	rand *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Factory{db: db, opts: opts, rand: r, nextID: 1000}
}

func (f *Factory) passwordHash() string {
	if f.opts.SkipBcrypt {
		return factoryPassword
	}
	hashed, _ := validation.HashPassword(factoryPassword)
	return hashed
}

// createdAtSpread returns a timestamp up to MaxDays in the past.
func (f *Factory) createdAtSpread() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := f.rand.Intn(maxDays)
	hoursBack := f.rand.Intn(24)
	minsBack := f.rand.Intn(60)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)
}

// recentSpread returns a timestamp inside the last maxHours, for content that
// has to sit inside a retention window.
func (f *Factory) recentSpread(maxHours int) time.Time {
	if maxHours <= 0 {
		maxHours = 12
	}
	minsBack := f.rand.Intn(maxHours * 60)
	return time.Now().Add(-time.Duration(minsBack) * time.Minute)
}

func (f *Factory) inviteCode() string {
	code := make([]byte, inviteCodeLength)
	for i := range code {
		code[i] = inviteCodeAlphabet[f.rand.Intn(len(inviteCodeAlphabet))]
	}
	return string(code)
}

// CreateUser constructs and persists a registered user. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	email := gofakeit.Email()
	role := models.RoleClient
	if f.rand.Float32() < 0.35 {
		role = models.RoleFreelancer
	}
	user := &models.User{
		Username:     fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
		DisplayName:  gofakeit.Name(),
		Email:        &email,
		PasswordHash: f.passwordHash(),
		Kind:         models.UserKindRegistered,
		Role:         role,
		IsOnline:     f.rand.Float32() < 0.4,
		CreatedAt:    f.createdAtSpread(),
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s (%s)", user.Username, user.Role)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateGuest constructs and persists an anonymous guest account.
func (f *Factory) CreateGuest(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username:    fmt.Sprintf("guest-%s", gofakeit.LetterN(8)),
		DisplayName: gofakeit.FirstName(),
		Kind:        models.UserKindGuest,
		Role:        models.RoleGuest,
		IsOnline:    true,
		CreatedAt:   f.recentSpread(6),
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateGuest: %s", user.Username)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateConversation persists a direct conversation between two users. The
// pair is stored in canonical order regardless of argument order, and the
// expiry defaults to a full day out so seeded chats are usable immediately.
func (f *Factory) CreateConversation(userX, userY *models.User, overrides ...func(*models.Conversation)) (*models.Conversation, error) {
	a, b := models.CanonicalPair(userX.ID, userY.ID)
	conv := &models.Conversation{
		UserAID:   a,
		UserBID:   b,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		IsActive:  true,
		CreatedAt: f.recentSpread(12),
	}

	for _, override := range overrides {
		override(conv)
	}

	if f.opts.DryRun {
		f.nextID++
		conv.ID = f.nextID
		log.Printf("[dry-run] CreateConversation: %d<->%d", conv.UserAID, conv.UserBID)
		return conv, nil
	}

	if err := f.db.Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateMessage persists a message in the conversation from the sender.
func (f *Factory) CreateMessage(conv *models.Conversation, sender *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Content:        gofakeit.Sentence(f.rand.Intn(12) + 3),
		Type:           models.MessageTypeText,
		VisibleToA:     true,
		VisibleToB:     true,
		CreatedAt:      f.recentSpread(10),
	}
	if f.rand.Float32() < 0.6 {
		now := time.Now()
		message.IsRead = true
		message.ReadAt = &now
	}

	for _, override := range overrides {
		override(message)
	}

	if f.opts.DryRun {
		f.nextID++
		message.ID = f.nextID
		return message, nil
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateRoom persists a room owned by creator and enrolls the creator as its
// first member.
func (f *Factory) CreateRoom(creator *models.User, overrides ...func(*models.Room)) (*models.Room, error) {
	room := &models.Room{
		Name:        gofakeit.AppName(),
		Description: gofakeit.Sentence(8),
		CreatorID:   creator.ID,
		InviteCode:  f.inviteCode(),
		Status:      models.RoomStatusActive,
		CreatedAt:   f.recentSpread(72),
	}

	for _, override := range overrides {
		override(room)
	}

	if f.opts.DryRun {
		f.nextID++
		room.ID = f.nextID
		log.Printf("[dry-run] CreateRoom: %q (%s)", room.Name, room.InviteCode)
		return room, nil
	}

	if err := f.db.Create(room).Error; err != nil {
		return nil, err
	}
	if err := f.AddMember(room, creator); err != nil {
		return nil, err
	}
	return room, nil
}

// AddMember enrolls the user in the room.
func (f *Factory) AddMember(room *models.Room, user *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	membership := &models.RoomMembership{
		RoomID:   room.ID,
		UserID:   user.ID,
		JoinedAt: time.Now(),
	}
	return f.db.Create(membership).Error
}

// CreateRoomMessage persists a room message from the sender. A secret message
// targeting one member is produced by overriding RecipientID.
func (f *Factory) CreateRoomMessage(room *models.Room, sender *models.User, overrides ...func(*models.RoomMessage)) (*models.RoomMessage, error) {
	message := &models.RoomMessage{
		RoomID:    room.ID,
		SenderID:  sender.ID,
		Content:   gofakeit.Sentence(f.rand.Intn(12) + 3),
		Type:      models.MessageTypeText,
		CreatedAt: f.recentSpread(20),
	}

	for _, override := range overrides {
		override(message)
	}

	if f.opts.DryRun {
		f.nextID++
		message.ID = f.nextID
		return message, nil
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateFriendship persists a relationship row between two users.
func (f *Factory) CreateFriendship(requester, addressee *models.User, status models.FriendshipStatus) error {
	if f.opts.DryRun {
		return nil
	}
	friendship := &models.Friendship{
		RequesterID: requester.ID,
		AddresseeID: addressee.ID,
		Status:      status,
	}
	return f.db.Create(friendship).Error
}

// CreateReaction persists an emoji reaction from user on the given message.
func (f *Factory) CreateReaction(kind models.MessageKind, messageID uint, user *models.User) error {
	if f.opts.DryRun {
		return nil
	}
	reaction := &models.Reaction{
		MessageKind: kind,
		MessageID:   messageID,
		UserID:      user.ID,
		Emoji:       gofakeit.Emoji(),
	}
	return f.db.Create(reaction).Error
}

// CreateBan bans the target: persists an active ban row and flips the
// target's role, the same shape the moderation flow writes.
func (f *Factory) CreateBan(target, issuer *models.User, overrides ...func(*models.Ban)) (*models.Ban, error) {
	now := time.Now()
	expires := now.Add(24 * time.Hour)
	ban := &models.Ban{
		UserID:     target.ID,
		IssuedByID: issuer.ID,
		Reason:     gofakeit.Sentence(6),
		IssuedAt:   now,
		ExpiresAt:  &expires,
		IsActive:   true,
		PriorRole:  target.Role,
	}

	for _, override := range overrides {
		override(ban)
	}

	if f.opts.DryRun {
		f.nextID++
		ban.ID = f.nextID
		return ban, nil
	}

	if err := f.db.Create(ban).Error; err != nil {
		return nil, err
	}
	if err := f.db.Model(&models.User{}).Where("id = ?", target.ID).
		Update("role", models.RoleBanned).Error; err != nil {
		return nil, err
	}
	target.Role = models.RoleBanned
	return ban, nil
}
