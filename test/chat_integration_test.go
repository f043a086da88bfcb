package test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conversationBody struct {
	ID      uint `json:"id"`
	UserAID uint `json:"user_a_id"`
	UserBID uint `json:"user_b_id"`
}

type messageBody struct {
	ID             uint   `json:"id"`
	ConversationID uint   `json:"conversation_id"`
	SenderID       uint   `json:"sender_id"`
	Content        string `json:"content"`
	Type           string `json:"type"`
	IsRead         bool   `json:"is_read"`
	ReplyTo        *struct {
		ID      uint   `json:"id"`
		Excerpt string `json:"excerpt"`
	} `json:"reply_to"`
	Reactions []struct {
		UserID uint   `json:"user_id"`
		Emoji  string `json:"emoji"`
	} `json:"reactions"`
}

func TestDirectChatFlow(t *testing.T) {
	ts := newParleyTestApp(t)

	al := registerParleyUser(t, ts, "al")
	bo := guestParleyUser(t, ts, "Bo")
	cam := guestParleyUser(t, ts, "Cam")

	var convID uint
	var firstMsgID uint

	t.Run("rejects chatting with yourself", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", al.Token,
			map[string]uint{"peer_id": al.ID}))
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects an unknown peer", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", al.Token,
			map[string]uint{"peer_id": 999999}))
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("opens a conversation", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", al.Token,
			map[string]uint{"peer_id": bo.ID}))
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var conv conversationBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
		require.NotZero(t, conv.ID)
		assert.ElementsMatch(t, []uint{al.ID, bo.ID}, []uint{conv.UserAID, conv.UserBID})
		convID = conv.ID
	})

	t.Run("reopening resolves the same window", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", bo.Token,
			map[string]uint{"peer_id": al.ID}))
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var conv conversationBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
		assert.Equal(t, convID, conv.ID)
	})

	t.Run("lists the session for both sides", func(t *testing.T) {
		for _, tok := range []string{al.Token, bo.Token} {
			resp := ts.do(t, authReq(t, http.MethodGet, "/api/chat/sessions", tok, nil))
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var convs []conversationBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&convs))
			_ = resp.Body.Close()
			require.Len(t, convs, 1)
			assert.Equal(t, convID, convs[0].ID)
		}
	})

	t.Run("exchanges messages", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/messages/"+itoa(convID), al.Token,
			map[string]any{"content": "hello out there"}))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var sent messageBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
		_ = resp.Body.Close()
		require.NotZero(t, sent.ID)
		assert.Equal(t, al.ID, sent.SenderID)
		assert.Equal(t, "text", sent.Type)
		assert.False(t, sent.IsRead)
		firstMsgID = sent.ID

		resp = ts.do(t, authReq(t, http.MethodPost, "/api/chat/messages/"+itoa(convID), bo.Token,
			map[string]any{"content": "hello yourself", "reply_to_id": firstMsgID}))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var reply messageBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
		_ = resp.Body.Close()
		require.NotNil(t, reply.ReplyTo)
		assert.Equal(t, firstMsgID, reply.ReplyTo.ID)
		assert.Equal(t, "hello out there", reply.ReplyTo.Excerpt)
	})

	t.Run("serves history oldest first", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodGet, "/api/chat/messages/"+itoa(convID), bo.Token, nil))
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var msgs []messageBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
		require.Len(t, msgs, 2)
		assert.Equal(t, "hello out there", msgs[0].Content)
		assert.Equal(t, "hello yourself", msgs[1].Content)
	})

	t.Run("keeps outsiders out", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodGet, "/api/chat/messages/"+itoa(convID), cam.Token, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()

		resp = ts.do(t, authReq(t, http.MethodPost, "/api/chat/messages/"+itoa(convID), cam.Token,
			map[string]any{"content": "let me in"}))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("marks peer messages read", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPut, "/api/chat/messages/read/"+itoa(convID), bo.Token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Updated int `json:"updated"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()
		assert.Equal(t, 1, body.Updated)

		resp = ts.do(t, authReq(t, http.MethodGet, "/api/chat/messages/"+itoa(convID), al.Token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var msgs []messageBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
		_ = resp.Body.Close()
		require.Len(t, msgs, 2)
		assert.True(t, msgs[0].IsRead)
	})

	t.Run("reacts and unreacts", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost,
			"/api/chat/messages/"+itoa(firstMsgID)+"/reactions", bo.Token,
			map[string]string{"emoji": "🔥"}))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()

		resp = ts.do(t, authReq(t, http.MethodGet, "/api/chat/messages/"+itoa(convID), al.Token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var msgs []messageBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
		_ = resp.Body.Close()
		require.Len(t, msgs, 2)
		require.Len(t, msgs[0].Reactions, 1)
		assert.Equal(t, bo.ID, msgs[0].Reactions[0].UserID)
		assert.Equal(t, "🔥", msgs[0].Reactions[0].Emoji)

		resp = ts.do(t, authReq(t, http.MethodDelete,
			"/api/chat/messages/"+itoa(firstMsgID)+"/reactions", bo.Token, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp = ts.do(t, authReq(t, http.MethodDelete,
			"/api/chat/messages/"+itoa(firstMsgID)+"/reactions", bo.Token, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestConversationExpiry(t *testing.T) {
	ts := newParleyTestApp(t)

	bo := guestParleyUser(t, ts, "Bo")
	dee := guestParleyUser(t, ts, "Dee")

	resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", bo.Token,
		map[string]uint{"peer_id": dee.ID}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv conversationBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conv))
	_ = resp.Body.Close()

	resp = ts.do(t, authReq(t, http.MethodPost, "/api/chat/messages/"+itoa(conv.ID), bo.Token,
		map[string]any{"content": "this will not last"}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	// Push the window into the past; the service treats the conversation as
	// dead from here on.
	err := ts.DB.Exec(`UPDATE conversations SET expires_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour), conv.ID).Error
	require.NoError(t, err)

	t.Run("expired windows reject sends", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/messages/"+itoa(conv.ID), dee.Token,
			map[string]any{"content": "too late"}))
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("expired windows drop out of the session list", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodGet, "/api/chat/sessions", bo.Token, nil))
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var convs []conversationBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&convs))
		assert.Empty(t, convs)
	})

	t.Run("the sweeper erases the conversation", func(t *testing.T) {
		result := ts.Srv.Sweeper().RunOnce(context.Background())
		assert.Equal(t, 1, result.Conversations)
		assert.Zero(t, result.Rooms)

		resp := ts.do(t, authReq(t, http.MethodGet, "/api/chat/messages/"+itoa(conv.ID), bo.Token, nil))
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("reopening starts a fresh window", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", dee.Token,
			map[string]uint{"peer_id": bo.ID}))
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var fresh conversationBody
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&fresh))
		assert.NotEqual(t, conv.ID, fresh.ID)

		history := ts.do(t, authReq(t, http.MethodGet, "/api/chat/messages/"+itoa(fresh.ID), dee.Token, nil))
		defer func() { _ = history.Body.Close() }()
		require.Equal(t, http.StatusOK, history.StatusCode)
		var msgs []messageBody
		require.NoError(t, json.NewDecoder(history.Body).Decode(&msgs))
		assert.Empty(t, msgs)
	})
}

func TestConversationBlocking(t *testing.T) {
	ts := newParleyTestApp(t)

	al := registerParleyUser(t, ts, "al")
	cam := guestParleyUser(t, ts, "Cam")

	resp := ts.do(t, authReq(t, http.MethodPost, "/api/friends/block", al.Token,
		map[string]uint{"user_id": cam.ID}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	t.Run("blocks cut both directions", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", al.Token,
			map[string]uint{"peer_id": cam.ID}))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()

		resp = ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", cam.Token,
			map[string]uint{"peer_id": al.ID}))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("unblocking restores contact", func(t *testing.T) {
		resp := ts.do(t, authReq(t, http.MethodDelete, "/api/friends/block/"+itoa(cam.ID), al.Token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()

		resp = ts.do(t, authReq(t, http.MethodPost, "/api/chat/sessions", cam.Token,
			map[string]uint{"peer_id": al.ID}))
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
