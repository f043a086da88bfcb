package notifications

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_ConnectDisplacesPriorConnection(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Close() }()

	first, replaced, err := hub.Connect(10, nil)
	require.NoError(t, err)
	assert.False(t, replaced)

	second, replaced, err := hub.Connect(10, nil)
	require.NoError(t, err)
	assert.True(t, replaced)

	hub.mu.RLock()
	current := hub.conns[10]
	total := hub.totalConns
	hub.mu.RUnlock()
	assert.Same(t, second, current)
	assert.Equal(t, 1, total)

	// Late teardown of the displaced connection must not evict the new one.
	hub.Disconnect(10, first)
	assert.True(t, hub.IsConnected(10))

	hub.Disconnect(10, second)
	assert.False(t, hub.IsConnected(10))
}

func TestHub_SendToOfflineUserReportsDrop(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Close() }()

	sent := hub.Send(99, Event{Type: EventNewMessage})
	assert.False(t, sent)
}

func TestHub_SendEnqueuesFrameForConnectedUser(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Close() }()

	client, _, err := hub.Connect(7, nil)
	require.NoError(t, err)

	event := Event{
		Type: EventMessageRead,
		Payload: MessageReadPayload{
			ConversationID: 3,
			MessageID:      12,
			ReaderID:       7,
		},
	}
	assert.True(t, hub.Send(7, event))

	select {
	case frame := <-client.Send:
		assert.Contains(t, string(frame), `"type":"message_read"`)
		assert.Contains(t, string(frame), `"message_id":12`)
	default:
		t.Fatal("expected a frame in the client send queue")
	}
}

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	clientA, _, err := hub.Connect(10, nil)
	require.NoError(t, err)

	hub.Disconnect(10, clientA)
	_, _, err = hub.Connect(10, nil)
	require.NoError(t, err)

	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[10]
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, hub.IsOnline(10))

	_ = hub.Close()
}

func TestHub_DisconnectEmitsOfflineAfterGrace(t *testing.T) {
	hub := NewHub()
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	client, _, err := hub.Connect(15, nil)
	require.NoError(t, err)

	hub.Disconnect(15, client)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&offlineCount) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, hub.IsOnline(15))

	_ = hub.Close()
}

func TestHub_ReaperRemovesStalePresence(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	ctx := context.Background()
	assert.NoError(t, rdb.SAdd(ctx, defaultPresenceOnlineSetKey, "44").Err())

	hub.presence.reapOnce(ctx)

	isMember, err := rdb.SIsMember(ctx, defaultPresenceOnlineSetKey, "44").Result()
	assert.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, int32(1), atomic.LoadInt32(&offlineCount))

	_ = hub.Close()
}

func TestHub_CloseRejectsNewConnections(t *testing.T) {
	hub := NewHub()
	_, _, err := hub.Connect(5, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Close())

	_, _, err = hub.Connect(6, nil)
	assert.Error(t, err)
	assert.False(t, hub.IsConnected(5))
}

func TestHub_StartWiringDeliversPublishedEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb)
	defer func() { _ = hub.Close() }()

	client, _, err := hub.Connect(21, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	event := Event{Type: EventRoomPresence, Payload: RoomPresencePayload{
		RoomID: 4, UserID: 9, Action: RoomPresenceJoined,
	}}
	require.NoError(t, n.PublishEvent(context.Background(), 21, event))

	assert.Eventually(t, func() bool {
		select {
		case frame := <-client.Send:
			return strings.Contains(string(frame), `"type":"room_presence"`) &&
				strings.Contains(string(frame), `"action":"joined"`)
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)
}
