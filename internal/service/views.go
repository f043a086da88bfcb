package service

import (
	"time"

	"parley/internal/models"
)

// MediaURLPrefix is the public path under which processed media is served.
const MediaURLPrefix = "/api/media/"

const replyExcerptMaxLen = 80

// ReactionView is a single reaction as rendered to clients.
type ReactionView struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// ReplyPreview is the condensed form of a replied-to message.
type ReplyPreview struct {
	ID         uint   `json:"id"`
	SenderID   uint   `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Excerpt    string `json:"excerpt"`
}

// MediaView carries the client-facing fields of an attachment.
type MediaView struct {
	ID          uint   `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// MessageView is a direct message as rendered to clients and pushed over the
// websocket as a new_message payload.
type MessageView struct {
	ID             uint               `json:"id"`
	ConversationID uint               `json:"conversation_id"`
	SenderID       uint               `json:"sender_id"`
	SenderName     string             `json:"sender_name"`
	Content        string             `json:"content"`
	Type           models.MessageType `json:"type"`
	Caption        string             `json:"caption,omitempty"`
	Media          *MediaView         `json:"media,omitempty"`
	IsRead         bool               `json:"is_read"`
	ReadAt         *time.Time         `json:"read_at,omitempty"`
	ReplyTo        *ReplyPreview      `json:"reply_to,omitempty"`
	Reactions      []ReactionView     `json:"reactions,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// RoomMessageView is a room message as rendered to clients. RecipientID is
// set only on secret messages, which are delivered solely to their sender and
// recipient.
type RoomMessageView struct {
	ID            uint               `json:"id"`
	RoomID        uint               `json:"room_id"`
	SenderID      uint               `json:"sender_id"`
	SenderName    string             `json:"sender_name"`
	RecipientID   *uint              `json:"recipient_id,omitempty"`
	RecipientName string             `json:"recipient_name,omitempty"`
	Content       string             `json:"content"`
	Type          models.MessageType `json:"type"`
	Caption       string             `json:"caption,omitempty"`
	Media         *MediaView         `json:"media,omitempty"`
	ReplyTo       *ReplyPreview      `json:"reply_to,omitempty"`
	Reactions     []ReactionView     `json:"reactions,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// RoomPreview is the public, pre-join view of a room.
type RoomPreview struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatorName string `json:"creator_name"`
	MemberCount int64  `json:"member_count"`
	IsPermanent bool   `json:"is_permanent"`
}

func mediaView(asset *models.MediaAsset) *MediaView {
	if asset == nil {
		return nil
	}
	return &MediaView{
		ID:          asset.ID,
		URL:         MediaURLPrefix + asset.Ref,
		ContentType: asset.ContentType,
		Width:       asset.Width,
		Height:      asset.Height,
	}
}

func replyExcerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= replyExcerptMaxLen {
		return content
	}
	return string(runes[:replyExcerptMaxLen]) + "…"
}

func usernameOf(user *models.User) string {
	if user == nil {
		return ""
	}
	return user.Username
}

func directMessageView(message *models.Message, reactions []ReactionView) MessageView {
	view := MessageView{
		ID:             message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		SenderName:     usernameOf(message.Sender),
		Content:        message.Content,
		Type:           message.Type,
		Caption:        message.Caption,
		Media:          mediaView(message.Media),
		IsRead:         message.IsRead,
		ReadAt:         message.ReadAt,
		Reactions:      reactions,
		CreatedAt:      message.CreatedAt,
	}
	if message.ReplyTo != nil {
		view.ReplyTo = &ReplyPreview{
			ID:         message.ReplyTo.ID,
			SenderID:   message.ReplyTo.SenderID,
			SenderName: usernameOf(message.ReplyTo.Sender),
			Excerpt:    replyExcerpt(message.ReplyTo.Content),
		}
	}
	return view
}

func roomMessageView(message *models.RoomMessage, reactions []ReactionView) RoomMessageView {
	view := RoomMessageView{
		ID:            message.ID,
		RoomID:        message.RoomID,
		SenderID:      message.SenderID,
		SenderName:    usernameOf(message.Sender),
		RecipientID:   message.RecipientID,
		RecipientName: usernameOf(message.Recipient),
		Content:       message.Content,
		Type:          message.Type,
		Caption:       message.Caption,
		Media:         mediaView(message.Media),
		Reactions:     reactions,
		CreatedAt:     message.CreatedAt,
	}
	if message.ReplyTo != nil {
		view.ReplyTo = &ReplyPreview{
			ID:         message.ReplyTo.ID,
			SenderID:   message.ReplyTo.SenderID,
			SenderName: usernameOf(message.ReplyTo.Sender),
			Excerpt:    replyExcerpt(message.ReplyTo.Content),
		}
	}
	return view
}

func reactionViewsByMessage(reactions []models.Reaction) map[uint][]ReactionView {
	byMessage := make(map[uint][]ReactionView, len(reactions))
	for _, reaction := range reactions {
		byMessage[reaction.MessageID] = append(byMessage[reaction.MessageID], ReactionView{
			UserID:   reaction.UserID,
			Username: usernameOf(reaction.User),
			Emoji:    reaction.Emoji,
		})
	}
	return byMessage
}
