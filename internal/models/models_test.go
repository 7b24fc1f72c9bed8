package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestBaseModel_BeforeCreate(t *testing.T) {
	t.Run("generates UUID if not set", func(t *testing.T) {
		model := &BaseModel{}
		if err := model.BeforeCreate(nil); err != nil {
			t.Fatalf("BeforeCreate returned error: %v", err)
		}
		if model.ID == uuid.Nil {
			t.Error("expected ID to be generated, got nil UUID")
		}
	})

	t.Run("preserves existing UUID", func(t *testing.T) {
		existingID := uuid.New()
		model := &BaseModel{ID: existingID}
		if err := model.BeforeCreate(nil); err != nil {
			t.Fatalf("BeforeCreate returned error: %v", err)
		}
		if model.ID != existingID {
			t.Errorf("expected ID to remain %s, got %s", existingID, model.ID)
		}
	})
}

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{TaskStatusTodo, true},
		{TaskStatusInProgress, true},
		{TaskStatusDone, true},
		{"Blocked", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("TaskStatus(%q).Valid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}

	if len(TaskStatuses) != 3 {
		t.Errorf("expected 3 task statuses, got %d", len(TaskStatuses))
	}
}

func TestTaskPriority_Valid(t *testing.T) {
	for _, p := range []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh} {
		if !p.Valid() {
			t.Errorf("expected %q to be valid", p)
		}
	}
	if TaskPriority("Urgent").Valid() {
		t.Error("expected Urgent to be rejected")
	}
}

func TestGroup_Membership(t *testing.T) {
	admin := User{BaseModel: BaseModel{ID: uuid.New()}}
	member := User{BaseModel: BaseModel{ID: uuid.New()}}
	group := Group{AdminID: admin.ID, Members: []User{admin, member}}

	if !group.IsAdmin(admin.ID) || group.IsAdmin(member.ID) {
		t.Error("IsAdmin should only match the admin")
	}
	if !group.HasMember(member.ID) {
		t.Error("expected member to be found")
	}
	if group.HasMember(uuid.New()) {
		t.Error("expected stranger not to be a member")
	}
}

func TestDirectMessage_Involves(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()
	dm := DirectMessage{SenderID: sender, RecipientID: recipient}

	if !dm.Involves(sender) || !dm.Involves(recipient) {
		t.Error("both participants should be involved")
	}
	if dm.Involves(uuid.New()) {
		t.Error("a third user should not be involved")
	}
}

func TestUser_Summary(t *testing.T) {
	user := User{BaseModel: BaseModel{ID: uuid.New()}, Name: "Ada", Email: "ada@test.com", AvatarURL: DefaultAvatarURL}
	summary := user.Summary()
	if summary.ID != user.ID.String() || summary.Name != "Ada" || summary.AvatarURL != DefaultAvatarURL {
		t.Errorf("unexpected summary %+v", summary)
	}
}
