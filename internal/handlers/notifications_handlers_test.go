package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
)

func TestNotificationsEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	user, userToken := createTestUser(t, env.store, "User", "notes-user@test.com")
	other, otherToken := createTestUser(t, env.store, "Other", "notes-other@test.com")
	ctx := context.Background()

	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	seed := []models.Notification{
		{UserID: user.ID, Message: "oldest", IsRead: true},
		{UserID: user.ID, Message: "middle"},
		{UserID: user.ID, Message: "newest"},
		{UserID: other.ID, Message: "not yours"},
	}
	for i := range seed {
		seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}
	if err := env.store.Notifications.CreateMany(ctx, seed); err != nil {
		t.Fatalf("failed seeding notifications: %v", err)
	}

	messages := func(list []any) []string {
		out := make([]string, len(list))
		for i, n := range list {
			out[i] = n.(map[string]any)["message"].(string)
		}
		return out
	}

	t.Run("GET notifications newest first", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/notifications", nil, authHeaders(userToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		got := messages(dataList(t, body))
		if len(got) != 3 || got[0] != "newest" || got[2] != "oldest" {
			t.Fatalf("unexpected order %v", got)
		}
	})

	t.Run("GET notifications unread and limit", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/notifications?unread=true", nil, authHeaders(userToken))
		body := decodeJSONMap(t, resp)
		if got := messages(dataList(t, body)); len(got) != 2 {
			t.Fatalf("expected 2 unread, got %v", got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/notifications?limit=1", nil, authHeaders(userToken))
		body = decodeJSONMap(t, resp)
		if got := messages(dataList(t, body)); len(got) != 1 || got[0] != "newest" {
			t.Fatalf("expected only newest, got %v", got)
		}
	})

	t.Run("PUT notifications/:notificationId owner only", func(t *testing.T) {
		path := "/api/notifications/" + seed[1].ID.String()

		resp := performRequest(t, env.app, http.MethodPut, path, nil, authHeaders(otherToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "not authorized to access this notification")

		resp = performRequest(t, env.app, http.MethodPut, path, nil, authHeaders(userToken))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["isRead"] != true {
			t.Fatalf("expected notification marked read, got %+v", body)
		}
	})

	t.Run("PUT notifications/:notificationId unknown id", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPut, "/api/notifications/00000000-0000-0000-0000-000000000003", nil, authHeaders(userToken))
		assertStatus(t, resp, http.StatusNotFound)
	})

	t.Run("PUT notifications/read-all", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodPut, "/api/notifications/read-all", nil, authHeaders(userToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["updated"] != float64(1) {
			t.Fatalf("expected one remaining unread to be updated, got %+v", body)
		}
	})

	t.Run("DELETE notifications clears only the caller's", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/notifications", nil, authHeaders(userToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["deleted"] != float64(3) {
			t.Fatalf("expected 3 deleted, got %+v", body)
		}
		if n := len(notificationsFor(t, env.store, other.ID)); n != 1 {
			t.Fatalf("expected other user's notification kept, got %d", n)
		}
	})
}
