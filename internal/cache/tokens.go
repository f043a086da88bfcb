package cache

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// DenyToken records a credential's jti so it is rejected until the moment the
// token would have expired anyway. With Redis absent this is a no-op: the
// token then simply runs out its lifetime.
func DenyToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return client.Set(ctx, TokenDenyKey(jti), "1", ttl).Err()
}

// IsTokenDenied reports whether the jti was invalidated by a logout.
func IsTokenDenied(ctx context.Context, jti string) bool {
	if client == nil || jti == "" {
		return false
	}
	n, err := client.Exists(ctx, TokenDenyKey(jti)).Result()
	return err == nil && n > 0
}

// IssueWSTicket stores a short-lived one-shot ticket resolving to userID,
// used to authenticate the websocket upgrade without putting the credential
// in a query string.
func IssueWSTicket(ctx context.Context, ticket string, userID uint) error {
	if client == nil {
		return errors.New("cache unavailable")
	}
	return client.Set(ctx, WSTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), WSTicketTTL).Err()
}

// RedeemWSTicket consumes the ticket, returning the user it was issued to.
// A ticket redeems at most once.
func RedeemWSTicket(ctx context.Context, ticket string) (uint, bool) {
	if client == nil || ticket == "" {
		return 0, false
	}
	raw, err := client.GetDel(ctx, WSTicketKey(ticket)).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
