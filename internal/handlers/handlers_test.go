package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pratik11500/Nest/internal/api/middleware"
	"github.com/pratik11500/Nest/internal/hub"
	"github.com/pratik11500/Nest/internal/models"
	"github.com/pratik11500/Nest/internal/store"
)

var testSecret = []byte("test-secret")

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	broadcast := hub.New(zerolog.Nop())
	tracker := hub.NewTypingTracker(broadcast, time.Minute)
	return NewHandler(s, broadcast, tracker, zerolog.Nop(), testSecret)
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(middleware.OptionalAuth(testSecret))

	r.Post("/api/auth", h.Auth)
	r.Get("/api/users", h.OnlineUsers)
	r.Get("/api/messages", h.ListMessages)
	r.Get("/api/sse", h.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(testSecret))
		r.Post("/api/messages", h.CreateMessage)
		r.Patch("/api/messages/{id}", h.EditMessage)
		r.Post("/api/typing", h.Typing)
		r.Post("/api/heartbeat", h.Heartbeat)
		r.Get("/api/me", h.Me)
		r.Patch("/api/account", h.UpdateAccount)
		r.Delete("/api/account", h.DeleteAccount)
		r.Delete("/api/chat", h.ClearChat)
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, out.Bytes()
}

func registerUser(t *testing.T, ts *httptest.Server, username string) string {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action:   "register",
		Username: username,
		Password: "password1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, resp.StatusCode, body)
	}
	var ar AuthResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		t.Fatal(err)
	}
	if ar.Token == "" {
		t.Fatal("register returned empty token")
	}
	return ar.Token
}

func TestAuthRegisterAndLogin(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)

	registerUser(t, ts, "alice")

	resp, body := doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "register", Username: "alice", Password: "password1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate register: status %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "login", Username: "alice", Password: "password1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d: %s", resp.StatusCode, body)
	}
	var ar AuthResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		t.Fatal(err)
	}
	if ar.User.Username != "alice" || ar.User.ID == 0 {
		t.Fatalf("unexpected login identity: %+v", ar.User)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "login", Username: "alice", Password: "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "login", Username: "nobody", Password: "password1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown user: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "register", Username: "al", Password: "password1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short username: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "frobnicate", Username: "alice", Password: "password1",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid action: status %d", resp.StatusCode)
	}
}

func TestCreateAndListMessages(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	token := registerUser(t, ts, "alice")

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/messages", "", CreateMessageRequest{Text: "hello"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated post: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, ts, http.MethodPost, "/api/messages", token, CreateMessageRequest{Text: "hello"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post: status %d: %s", resp.StatusCode, body)
	}
	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Author != "alice" || msg.Text != "hello" || msg.ID == 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/messages", token, CreateMessageRequest{Text: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank text: status %d", resp.StatusCode)
	}

	missing := msg.ID + 99
	resp, _ = doJSON(t, ts, http.MethodPost, "/api/messages", token, CreateMessageRequest{
		Text: "reply", ParentMessageID: &missing,
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown parent: status %d", resp.StatusCode)
	}

	resp, body = doJSON(t, ts, http.MethodPost, "/api/messages", token, CreateMessageRequest{
		Text: "reply", ParentMessageID: &msg.ID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("reply: status %d: %s", resp.StatusCode, body)
	}

	// Anonymous fetch: recent page, ascending.
	resp, body = doJSON(t, ts, http.MethodGet, "/api/messages", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var msgs []models.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID >= msgs[1].ID {
		t.Fatalf("expected 2 ascending messages, got %+v", msgs)
	}

	// Resync fetch: only messages past the cursor.
	resp, body = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/messages?since_id=%d", msgs[0].ID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resync list: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text != "reply" {
		t.Fatalf("expected only the reply past the cursor, got %+v", msgs)
	}

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/messages?since_id=bogus", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad since_id: status %d", resp.StatusCode)
	}
}

func TestEditMessage(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	_, body := doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, CreateMessageRequest{Text: "helo"})
	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}

	// The updated message reaches every open push connection, the editor's
	// included.
	aliceSub := h.hub.Subscribe("alice")
	defer aliceSub.Close()

	resp, body := doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/api/messages/%d", msg.ID), aliceToken, EditMessageRequest{Text: "hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit: status %d: %s", resp.StatusCode, body)
	}
	var edited models.Message
	if err := json.Unmarshal(body, &edited); err != nil {
		t.Fatal(err)
	}
	if edited.Text != "hello" || edited.LastEditedAt == nil {
		t.Fatalf("unexpected edited message: %+v", edited)
	}
	if len(edited.EditHistory) != 1 || edited.EditHistory[0].OldText != "helo" {
		t.Fatalf("unexpected edit history: %+v", edited.EditHistory)
	}

	select {
	case ev := <-aliceSub.Events():
		if ev.Type != models.EventMessageUpdated {
			t.Fatalf("expected message-updated, got %q", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("editor's own connection did not receive the update")
	}

	resp, _ = doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/api/messages/%d", msg.ID), bobToken, EditMessageRequest{Text: "hijacked"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-author edit: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPatch, "/api/messages/99999", aliceToken, EditMessageRequest{Text: "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing message edit: status %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/api/messages/%d", msg.ID), aliceToken, EditMessageRequest{Text: " "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank edit: status %d", resp.StatusCode)
	}
}

func TestTypingEndpoint(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	token := registerUser(t, ts, "alice")

	bobSub := h.hub.Subscribe("bob")
	defer bobSub.Close()

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/typing", "", TypingRequest{IsTyping: true})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated typing: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, ts, http.MethodPost, "/api/typing", token, TypingRequest{IsTyping: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("typing: status %d: %s", resp.StatusCode, body)
	}

	select {
	case ev := <-bobSub.Events():
		te, ok := ev.Payload.(models.TypingEvent)
		if !ok || te.Username != "alice" || !te.IsTyping {
			t.Fatalf("unexpected typing event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("typing event not broadcast")
	}
}

func TestHeartbeatAndOnlineUsers(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	token := registerUser(t, ts, "alice")

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/heartbeat", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("heartbeat: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, ts, http.MethodGet, "/api/users", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("online users: status %d", resp.StatusCode)
	}
	var online []models.OnlineUser
	if err := json.Unmarshal(body, &online); err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0].Username != "alice" {
		t.Fatalf("expected alice online, got %+v", online)
	}
}

func TestClearChat(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	aliceToken := registerUser(t, ts, "alice")
	bobToken := registerUser(t, ts, "bob")

	doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, CreateMessageRequest{Text: "one"})
	doJSON(t, ts, http.MethodPost, "/api/messages", aliceToken, CreateMessageRequest{Text: "two"})
	doJSON(t, ts, http.MethodPost, "/api/messages", bobToken, CreateMessageRequest{Text: "three"})

	resp, body := doJSON(t, ts, http.MethodDelete, "/api/chat", aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear chat: status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", out.Deleted)
	}

	_, body = doJSON(t, ts, http.MethodGet, "/api/messages", "", nil)
	var msgs []models.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Author != "bob" {
		t.Fatalf("expected only bob's message, got %+v", msgs)
	}
}

func TestAccountUpdate(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	token := registerUser(t, ts, "alice")

	resp, body := doJSON(t, ts, http.MethodGet, "/api/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", resp.StatusCode)
	}
	var me MeResponse
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "alice" {
		t.Fatalf("unexpected profile: %+v", me)
	}

	resp, _ = doJSON(t, ts, http.MethodPatch, "/api/account", token, UpdateAccountRequest{
		CurrentPassword: "wrong", NewPassword: "newpassword",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status %d", resp.StatusCode)
	}

	resp, body = doJSON(t, ts, http.MethodPatch, "/api/account", token, UpdateAccountRequest{
		CurrentPassword: "password1", NewPassword: "newpassword",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("password change: status %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "login", Username: "alice", Password: "newpassword",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: status %d", resp.StatusCode)
	}

	bio := "hi there"
	resp, _ = doJSON(t, ts, http.MethodPatch, "/api/account", token, UpdateAccountRequest{
		CurrentPassword: "newpassword", Bio: &bio,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile update: status %d", resp.StatusCode)
	}

	_, body = doJSON(t, ts, http.MethodGet, "/api/me", token, nil)
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatal(err)
	}
	if me.Bio != "hi there" {
		t.Fatalf("bio not persisted: %+v", me)
	}

	resp, _ = doJSON(t, ts, http.MethodPatch, "/api/account", token, UpdateAccountRequest{
		CurrentPassword: "newpassword", NewEmail: "not-an-email",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid email: status %d", resp.StatusCode)
	}
}

func TestDeleteAccount(t *testing.T) {
	h := newTestHandler(t)
	ts := newTestServer(t, h)
	token := registerUser(t, ts, "alice")

	doJSON(t, ts, http.MethodPost, "/api/messages", token, CreateMessageRequest{Text: "goodbye"})

	resp, _ := doJSON(t, ts, http.MethodDelete, "/api/account", token, DeleteAccountRequest{CurrentPassword: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password delete: status %d", resp.StatusCode)
	}

	resp, body := doJSON(t, ts, http.MethodDelete, "/api/account", token, DeleteAccountRequest{CurrentPassword: "password1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete account: status %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/api/auth", "", AuthRequest{
		Action: "login", Username: "alice", Password: "password1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login after deletion: status %d", resp.StatusCode)
	}

	// Messages go with the account.
	_, body = doJSON(t, ts, http.MethodGet, "/api/messages", "", nil)
	var msgs []models.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages after account deletion, got %+v", msgs)
	}
}
