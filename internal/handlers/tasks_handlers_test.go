package handlers

import (
	"net/http"
	"testing"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
)

func TestTasksEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.store, "Admin", "tasks-admin@test.com")
	member, memberToken := createTestUser(t, env.store, "Member", "tasks-member@test.com")
	outsider, outsiderToken := createTestUser(t, env.store, "Outsider", "tasks-outsider@test.com")
	group := createTestGroup(t, env.store, "Biology", admin, member)
	tasksPath := "/api/groups/" + group.ID.String() + "/tasks"

	var taskID string

	t.Run("POST tasks outsider forbidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, tasksPath, map[string]any{"title": "nope"}, authHeaders(outsiderToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "not a member of this group")
	})

	t.Run("POST tasks creates, broadcasts and notifies everyone but the actor", func(t *testing.T) {
		room := listen(t, env.hub, realtime.GroupRoom(group.ID))

		resp := performJSONRequest(t, env.app, http.MethodPost, tasksPath, map[string]any{
			"title":    "Read chapter 3",
			"priority": "High",
			"dueDate":  "2030-05-01",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := dataMap(t, body)
		taskID = data["id"].(string)
		if data["status"] != string(models.TaskStatusTodo) {
			t.Fatalf("expected default status, got %v", data["status"])
		}
		if data["priority"] != "High" {
			t.Fatalf("expected High priority, got %v", data["priority"])
		}

		var created models.Task
		room.last(t, realtime.EventTaskCreated, &created)
		if created.ID.String() != taskID {
			t.Fatalf("expected broadcast of %s, got %s", taskID, created.ID)
		}

		memberNotes := notificationsFor(t, env.store, member.ID)
		if len(memberNotes) != 1 {
			t.Fatalf("expected one notification for member, got %d", len(memberNotes))
		}
		if want := `A new task "Read chapter 3" has been created in the group.`; memberNotes[0].Message != want {
			t.Fatalf("expected message %q, got %q", want, memberNotes[0].Message)
		}
		if memberNotes[0].Link != "/groups/"+group.ID.String() {
			t.Fatalf("unexpected link %q", memberNotes[0].Link)
		}
		if n := len(notificationsFor(t, env.store, admin.ID)); n != 0 {
			t.Fatalf("actor should not be notified, got %d", n)
		}
	})

	t.Run("POST tasks validation", func(t *testing.T) {
		cases := []struct {
			name     string
			payload  map[string]any
			expected string
		}{
			{"missing title", map[string]any{"title": ""}, "title is required"},
			{"bad status", map[string]any{"title": "x", "status": "Blocked"}, "invalid status"},
			{"bad priority", map[string]any{"title": "x", "priority": "Urgent"}, "invalid priority"},
			{"bad due date", map[string]any{"title": "x", "dueDate": "tomorrow"}, "invalid dueDate"},
			{"assignee outside group", map[string]any{"title": "x", "assignedTo": outsider.ID.String()}, "assignee must be a member of this group"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resp := performJSONRequest(t, env.app, http.MethodPost, tasksPath, tc.payload, authHeaders(adminToken))
				body := decodeJSONMap(t, resp)
				assertStatus(t, resp, http.StatusBadRequest)
				assertEnvelopeError(t, body, tc.expected)
			})
		}
	})

	t.Run("PUT tasks by a member assigns and notifies the assignee", func(t *testing.T) {
		before := len(notificationsFor(t, env.store, admin.ID))

		resp := performJSONRequest(t, env.app, http.MethodPut, tasksPath+"/"+taskID, map[string]any{
			"status":     "In Progress",
			"assignedTo": admin.ID.String(),
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		if data["status"] != "In Progress" {
			t.Fatalf("expected status update, got %v", data["status"])
		}
		assignee, ok := data["assignedTo"].(map[string]any)
		if !ok || assignee["id"] != admin.ID.String() {
			t.Fatalf("expected populated assignee, got %v", data["assignedTo"])
		}

		notes := notificationsFor(t, env.store, admin.ID)
		if got := len(notes) - before; got != 1 {
			t.Fatalf("expected exactly 1 new notification for the assignee, got %d", got)
		}
		if want := `You were assigned to task "Read chapter 3".`; notes[len(notes)-1].Message != want {
			t.Fatalf("expected message %q, got %q", want, notes[len(notes)-1].Message)
		}
	})

	t.Run("PUT tasks empty assignee clears it", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, tasksPath+"/"+taskID, map[string]any{
			"assignedTo": "",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if _, present := dataMap(t, body)["assignedTo"]; present {
			t.Fatalf("expected assignee cleared, got %+v", body)
		}
	})

	t.Run("PUT tasks with nothing to change", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, tasksPath+"/"+taskID, map[string]any{}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "no valid fields to update")
	})

	t.Run("GET tasks/progress counts per status", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, tasksPath, map[string]any{"title": "done already", "status": "Done"}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusCreated)

		resp = performRequest(t, env.app, http.MethodGet, tasksPath+"/progress", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := dataMap(t, body)
		expected := map[string]float64{"To Do": 0, "In Progress": 1, "Done": 1, "total": 2}
		for key, want := range expected {
			if got, _ := data[key].(float64); got != want {
				t.Fatalf("expected %s=%v, got %v", key, want, data[key])
			}
		}
	})

	t.Run("GET tasks lists the group's tasks", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, tasksPath, nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if n := len(dataList(t, body)); n != 2 {
			t.Fatalf("expected 2 tasks, got %d", n)
		}
	})

	t.Run("DELETE tasks broadcasts the id", func(t *testing.T) {
		room := listen(t, env.hub, realtime.GroupRoom(group.ID))

		resp := performRequest(t, env.app, http.MethodDelete, tasksPath+"/"+taskID, nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if dataMap(t, body)["id"] != taskID {
			t.Fatalf("expected deleted id in response, got %+v", body)
		}

		var deletedID string
		room.last(t, realtime.EventTaskDeleted, &deletedID)
		if deletedID != taskID {
			t.Fatalf("expected task:deleted with %s, got %s", taskID, deletedID)
		}

		resp = performRequest(t, env.app, http.MethodDelete, tasksPath+"/"+taskID, nil, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusNotFound)
	})

	t.Run("task from another group is not found", func(t *testing.T) {
		other := createTestGroup(t, env.store, "Other", admin)
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+other.ID.String()+"/tasks", nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if n := len(dataList(t, body)); n != 0 {
			t.Fatalf("expected no tasks in other group, got %d", n)
		}
	})
}

func TestFanoutFailureDoesNotFailMutation(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.store, "Admin", "fanout-admin@test.com")
	member, _ := createTestUser(t, env.store, "Member", "fanout-member@test.com")
	group := createTestGroup(t, env.store, "History", admin, member)

	if err := env.store.DB().Migrator().DropTable(&models.Notification{}); err != nil {
		t.Fatalf("failed dropping notifications table: %v", err)
	}
	room := listen(t, env.hub, realtime.GroupRoom(group.ID))

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+group.ID.String()+"/tasks", map[string]any{
		"title": "still saved",
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusCreated)

	if room.count(realtime.EventTaskCreated) != 1 {
		t.Fatalf("expected the task broadcast despite fanout failure, got %v", room.events())
	}
}

func TestTaskAssigneeNotifiedOnce(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.store, "Admin", "assign-admin@test.com")
	assignee, _ := createTestUser(t, env.store, "Assignee", "assign-member@test.com")
	peer, _ := createTestUser(t, env.store, "Peer", "assign-peer@test.com")
	group := createTestGroup(t, env.store, "Physics", admin, assignee, peer)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+group.ID.String()+"/tasks", map[string]any{
		"title":      "Lab report",
		"assignedTo": assignee.ID.String(),
	}, authHeaders(adminToken))
	assertStatus(t, resp, http.StatusCreated)

	notes := notificationsFor(t, env.store, assignee.ID)
	if len(notes) != 1 {
		t.Fatalf("expected a single notification for the assignee, got %d", len(notes))
	}
	if want := `You were assigned to task "Lab report".`; notes[0].Message != want {
		t.Fatalf("expected message %q, got %q", want, notes[0].Message)
	}

	peerNotes := notificationsFor(t, env.store, peer.ID)
	if len(peerNotes) != 1 || peerNotes[0].Message != `A new task "Lab report" has been created in the group.` {
		t.Fatalf("expected the group notice for other members, got %+v", peerNotes)
	}
}
