package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/asiradnan/SoulSpeak/internal/auth"
	"github.com/asiradnan/SoulSpeak/internal/config"
	"github.com/asiradnan/SoulSpeak/internal/models"
	"github.com/asiradnan/SoulSpeak/internal/presence"
	"github.com/asiradnan/SoulSpeak/internal/repository"
	"github.com/asiradnan/SoulSpeak/internal/service"
	"github.com/asiradnan/SoulSpeak/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type stubDirectory struct {
	profiles map[string]models.PublicProfile
}

func (d *stubDirectory) Profile(_ context.Context, id string) (*models.PublicProfile, error) {
	p, ok := d.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func newTestApp(t *testing.T) (*fiber.App, *repository.MemoryConversationStore) {
	t.Helper()

	jv, err := auth.NewValidator(testSecret)
	require.NoError(t, err)

	store := repository.NewMemoryConversationStore()
	dir := &stubDirectory{profiles: map[string]models.PublicProfile{
		"u1": {ID: "u1", Username: "alice"},
		"u2": {ID: "u2", Username: "bob", IsCompanion: true},
	}}
	svc := service.NewChatService(store, dir, nil, 100, zap.NewNop())
	wsrv := ws.NewServer(presence.NewRegistry(zap.NewNop()), jv, nil, nil, ws.Options{}, zap.NewNop())

	cfg := &config.Config{}
	cfg.App.Env = "production"
	cfg.Redis.Prefix = "test"
	cfg.Chat.SendRatePerMinute = 60

	return NewServer(cfg, svc, wsrv, jv, nil, zap.NewNop()), store
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("missing header", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/chat/", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("not bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/chat/", nil)
		req.Header.Set("Authorization", "Basic abc")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestCreateChat(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": "u2"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var conv models.ConversationView
	decode(t, resp, &conv)
	assert.NotEmpty(t, conv.ID)
	require.Len(t, conv.Participants, 2)

	// creating again resolves the existing conversation with 200
	resp = doJSON(t, app, http.MethodPost, "/chat/create", "u2", fiber.Map{"participantId": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again models.ConversationView
	decode(t, resp, &again)
	assert.Equal(t, conv.ID, again.ID)
}

func TestCreateChatErrors(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("self pair", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": "u1"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown participant", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": "ghost"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("empty participant", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSendAndListAndMarkRead(t *testing.T) {
	app, _ := newTestApp(t)

	var conv models.ConversationView
	decode(t, doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": "u2"}), &conv)

	resp := doJSON(t, app, http.MethodPost, "/chat/send", "u1", fiber.Map{"chatId": conv.ID, "content": "hello bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var after models.ConversationView
	decode(t, resp, &after)
	require.Len(t, after.Messages, 1)
	assert.Equal(t, "hello bob", after.Messages[0].Content)
	assert.Equal(t, "alice", after.Messages[0].Sender.Username)
	assert.Equal(t, 1, after.Unread["u2"])
	assert.Zero(t, after.Unread["u1"])

	// recipient sees the conversation first in their list
	resp = doJSON(t, app, http.MethodGet, "/chat/", "u2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []models.ConversationView
	decode(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, conv.ID, list[0].ID)
	assert.Equal(t, 1, list[0].Unread["u2"])

	// marking read clears the counter and stamps the messages
	resp = doJSON(t, app, http.MethodPost, "/chat/mark-read", "u2", fiber.Map{"chatId": conv.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var read models.ConversationView
	decode(t, resp, &read)
	assert.Zero(t, read.Unread["u2"])
	require.Len(t, read.Messages, 1)
	assert.Contains(t, read.Messages[0].ReadBy, "u2")
}

func TestSendErrors(t *testing.T) {
	app, _ := newTestApp(t)

	var conv models.ConversationView
	decode(t, doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": "u2"}), &conv)

	tests := []struct {
		name   string
		user   string
		body   fiber.Map
		status int
	}{
		{"empty content", "u1", fiber.Map{"chatId": conv.ID, "content": "   "}, http.StatusBadRequest},
		{"missing chat", "u1", fiber.Map{"chatId": "64f000000000000000000000", "content": "hi"}, http.StatusNotFound},
		{"other participant ok", "u2", fiber.Map{"chatId": conv.ID, "content": "hi"}, http.StatusOK},
		{"non participant", "u3", fiber.Map{"chatId": conv.ID, "content": "hi"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodPost, "/chat/send", tt.user, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("oversized content", func(t *testing.T) {
		long := make([]byte, 0, 101)
		for i := 0; i < 101; i++ {
			long = append(long, 'a')
		}
		resp := doJSON(t, app, http.MethodPost, "/chat/send", "u1", fiber.Map{"chatId": conv.ID, "content": string(long)})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/chat/send", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListOrdering(t *testing.T) {
	app, _ := newTestApp(t)

	dir := []string{"u2"}
	ids := make([]string, 0, len(dir))
	for _, other := range dir {
		var conv models.ConversationView
		decode(t, doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": other}), &conv)
		ids = append(ids, conv.ID)
	}

	for i := 0; i < 3; i++ {
		resp := doJSON(t, app, http.MethodPost, "/chat/send", "u1", fiber.Map{"chatId": ids[0], "content": fmt.Sprintf("msg %d", i)})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var list []models.ConversationView
	decode(t, doJSON(t, app, http.MethodGet, "/chat/", "u1", nil), &list)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Messages, 3)
	require.NotNil(t, list[0].LastMessageTime)
}

func TestMarkReadErrors(t *testing.T) {
	app, _ := newTestApp(t)

	var conv models.ConversationView
	decode(t, doJSON(t, app, http.MethodPost, "/chat/create", "u1", fiber.Map{"participantId": "u2"}), &conv)

	t.Run("non participant", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/chat/mark-read", "u3", fiber.Map{"chatId": conv.ID})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodPost, "/chat/mark-read", "u1", fiber.Map{"chatId": "64f000000000000000000000"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestWSRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
