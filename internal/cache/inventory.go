package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	RoomKeyPrefix      = "room:%d"
	InviteKeyPrefix    = "room:invite:%s"
	TokenDenyKeyPrefix = "jwt_blacklist:%s"
	WSTicketKeyPrefix  = "ws_ticket:%s"
)

const (
	UserTTL     = 5 * time.Minute
	RoomTTL     = 10 * time.Minute
	InviteTTL   = 10 * time.Minute
	WSTicketTTL = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func RoomKey(roomID uint) string {
	return fmt.Sprintf(RoomKeyPrefix, roomID)
}

func InviteKey(code string) string {
	return fmt.Sprintf(InviteKeyPrefix, code)
}

func TokenDenyKey(jti string) string {
	return fmt.Sprintf(TokenDenyKeyPrefix, jti)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateRoom(ctx context.Context, roomID uint) {
	Invalidate(ctx, RoomKey(roomID))
}
