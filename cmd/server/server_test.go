package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/chat-relay/internal/badgerstore"
	"github.com/thereayou/chat-relay/internal/config"
	"github.com/thereayou/chat-relay/internal/gateway"
	"github.com/thereayou/chat-relay/internal/handlers/dto"
	"github.com/thereayou/chat-relay/internal/realtime"
	"github.com/thereayou/chat-relay/pkg/auth"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	st, err := badgerstore.Open("", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Config{
		JWTSecret:           "test-secret",
		TokenTTL:            time.Hour,
		OperationTimeout:    2 * time.Second,
		SubscriberQueueSize: 16,
		HubShards:           4,
		AllowedOrigins:      "*",
		HistoryPageLimit:    50,
	}
	app := NewApp(cfg, st, auth.NewMemoryBlacklist(), log)
	srv := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		app.Hub.Shutdown()
		srv.Close()
	})
	return srv
}

type apiClient struct {
	t     *testing.T
	base  string
	token string
}

func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	r, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	r.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(r)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func register(t *testing.T, base, handle string) (*apiClient, dto.UserResponse) {
	t.Helper()
	c := &apiClient{t: t, base: base}
	var resp dto.AuthResponse
	status := c.do(http.MethodPost, "/auth/register", dto.RegisterRequest{
		Email:    handle + "@example.com",
		Password: "secret123",
		Handle:   handle,
		Name:     strings.ToUpper(handle[:1]) + handle[1:],
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	c.token = resp.Token
	return c, resp.User
}

func TestServer_ChatFlow(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)

	// Given two registered users
	alice, _ := register(t, srv.URL, "alice2024")
	bob, bobUser := register(t, srv.URL, "bobby2024")
	req.Equal("@bobby2024", bobUser.DisplayHandle)

	// When alice opens a direct room by bob's handle
	var room dto.RoomResponse
	req.Equal(http.StatusOK, alice.do(http.MethodPost, "/rooms/direct", dto.DirectRoomRequest{OtherHandle: "@BobBy2024"}, &room))
	req.Len(room.ParticipantIDs, 2)
	req.Contains(room.ParticipantIDs, bobUser.ID)

	// And bob subscribes over the websocket
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/subscribe?token=" + bob.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	defer func() { _ = conn.Close() }()

	next := func() gateway.Frame {
		req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
		var f gateway.Frame
		req.NoError(conn.ReadJSON(&f))
		return f
	}
	req.Equal(gateway.FrameAuthenticated, next().Type)
	req.NoError(conn.WriteJSON(gateway.Frame{Type: gateway.FrameSubscribe, RoomID: &room.ID, Ref: "s1"}))
	req.Equal(gateway.FrameSubscribed, next().Type)

	// And alice sends a message over HTTP
	var sent dto.MessageResponse
	req.Equal(http.StatusCreated, alice.do(http.MethodPost, "/rooms/"+room.ID.String()+"/messages",
		dto.SendMessageRequest{Content: "hi bob"}, &sent))
	req.Equal(int64(1), sent.Seq)

	// Then bob receives it live
	frame := next()
	req.Equal(string(realtime.EventMessage), frame.Type)
	var payload realtime.MessagePayload
	req.NoError(json.Unmarshal(frame.Data, &payload))
	req.Equal(sent.ID, payload.MessageID)
	req.Equal("hi bob", payload.Content)

	// And his room list shows one unread message
	var list struct {
		Rooms []dto.RoomSummaryResponse `json:"rooms"`
	}
	req.Equal(http.StatusOK, bob.do(http.MethodGet, "/rooms", nil, &list))
	req.Len(list.Rooms, 1)
	req.Equal(int64(1), list.Rooms[0].UnreadCount)
	req.Equal("hi bob", list.Rooms[0].LastMessage.Content)

	// And the history replays the message
	var history dto.HistoryResponse
	req.Equal(http.StatusOK, bob.do(http.MethodGet, "/rooms/"+room.ID.String()+"/messages?direction=backward", nil, &history))
	req.Len(history.Messages, 1)
	req.False(history.HasMore)
}

func TestServer_ErrorsAndLogout(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	alice, _ := register(t, srv.URL, "alice2024")
	carol, _ := register(t, srv.URL, "carol2024")
	_, bobUser := register(t, srv.URL, "bobby2024")

	var room dto.RoomResponse
	req.Equal(http.StatusOK, alice.do(http.MethodPost, "/rooms/direct", dto.DirectRoomRequest{OtherUserID: &bobUser.ID}, &room))

	// A non-participant cannot post or read
	path := "/rooms/" + room.ID.String() + "/messages"
	req.Equal(http.StatusForbidden, carol.do(http.MethodPost, path, dto.SendMessageRequest{Content: "hey"}, nil))
	req.Equal(http.StatusForbidden, carol.do(http.MethodGet, path, nil, nil))

	// Unknown handles and taken handles are reported by kind
	req.Equal(http.StatusNotFound, alice.do(http.MethodGet, "/users/handle/nobody99", nil, nil))
	req.Equal(http.StatusConflict, alice.do(http.MethodPatch, "/users/me", dto.UpdateProfileRequest{Handle: &[]string{"carol2024"}[0]}, nil))

	// Availability needs no token
	anon := &apiClient{t: t, base: srv.URL}
	var avail dto.HandleAvailabilityResponse
	req.Equal(http.StatusOK, anon.do(http.MethodGet, "/users/handle/alice2024/available", nil, &avail))
	req.False(avail.Available)

	// After logout the token is refused
	req.Equal(http.StatusNoContent, alice.do(http.MethodPost, "/auth/logout", nil, nil))
	req.Equal(http.StatusUnauthorized, alice.do(http.MethodGet, "/users/me", nil, nil))

	// And so is the websocket upgrade
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/subscribe?token="+alice.token, nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}
