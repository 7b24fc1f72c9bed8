package store

import (
	"context"
	"errors"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the per-entity gateways behind a single handle.
type Store struct {
	db *gorm.DB

	Users          *Gateway[models.User]
	Groups         *Gateway[models.Group]
	Members        *Gateway[models.GroupMember]
	Tasks          *Gateway[models.Task]
	Events         *Gateway[models.CalendarEvent]
	Messages       *Gateway[models.Message]
	DirectMessages *Gateway[models.DirectMessage]
	Reactions      *Gateway[models.Reaction]
	Files          *Gateway[models.File]
	Notifications  *Gateway[models.Notification]
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:             db,
		Users:          NewGateway[models.User](db),
		Groups:         NewGateway[models.Group](db),
		Members:        NewGateway[models.GroupMember](db),
		Tasks:          NewGateway[models.Task](db),
		Events:         NewGateway[models.CalendarEvent](db),
		Messages:       NewGateway[models.Message](db),
		DirectMessages: NewGateway[models.DirectMessage](db),
		Reactions:      NewGateway[models.Reaction](db),
		Files:          NewGateway[models.File](db),
		Notifications:  NewGateway[models.Notification](db),
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// CreateGroup persists the group with its admin as the first member.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := s.Groups.Create(ctx, group); err != nil {
		return err
	}
	if err := s.AddMember(ctx, group.ID, group.AdminID); err != nil {
		return err
	}
	return s.populateMembers(ctx, []*models.Group{group})
}

// LoadGroup returns the group with Members populated.
func (s *Store) LoadGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group, err := s.Groups.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.populateMembers(ctx, []*models.Group{group}); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *Store) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	groups := []models.Group{}
	memberOf := s.db.Model(&models.GroupMember{}).Select("group_id").Where("user_id = ?", userID)
	err := s.db.WithContext(ctx).
		Where("id IN (?)", memberOf).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	ptrs := make([]*models.Group, len(groups))
	for i := range groups {
		ptrs[i] = &groups[i]
	}
	if err := s.populateMembers(ctx, ptrs); err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *Store) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (s *Store) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	n, err := s.Members.Count(ctx, Query{Where: Filter{"group_id": groupID, "user_id": userID}})
	return n > 0, err
}

// AddMember is idempotent; an existing row is left untouched.
func (s *Store) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	row := models.GroupMember{GroupID: groupID, UserID: userID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// RemoveMember reports whether a row was removed.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	n, err := s.Members.DeleteMany(ctx, Filter{"group_id": groupID, "user_id": userID})
	return n > 0, err
}

// FindGroupByInviteToken only matches tokens that are still live at now.
func (s *Store) FindGroupByInviteToken(ctx context.Context, token string, now time.Time) (*models.Group, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.Groups.FindOne(ctx, Query{Scopes: []func(*gorm.DB) *gorm.DB{
		func(tx *gorm.DB) *gorm.DB {
			return tx.Where("invite_token = ? AND invite_token_expires > ?", token, now.UTC())
		},
	}})
}

// SetInviteToken replaces any previous token on the group.
func (s *Store) SetInviteToken(ctx context.Context, groupID uuid.UUID, token string, expires time.Time) error {
	_, err := s.Groups.UpdateByID(ctx, groupID, map[string]interface{}{
		"invite_token":         token,
		"invite_token_expires": expires.UTC(),
	})
	return err
}

// ClaimInviteToken clears the token only if it is still the live one, so two
// concurrent redemptions cannot both succeed.
func (s *Store) ClaimInviteToken(ctx context.Context, groupID uuid.UUID, token string, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Group{}).
		Where("id = ? AND invite_token = ? AND invite_token_expires > ?", groupID, token, now.UTC()).
		Updates(map[string]interface{}{
			"invite_token":         nil,
			"invite_token_expires": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *Store) populateMembers(ctx context.Context, groups []*models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	groupIDs := make([]uuid.UUID, len(groups))
	for i, g := range groups {
		groupIDs[i] = g.ID
	}

	rows, err := s.Members.FindMany(ctx, Query{
		Where: Filter{"group_id": groupIDs},
		Order: "created_at ASC",
	})
	if err != nil {
		return err
	}

	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	users, err := s.Users.FindMany(ctx, Query{Where: Filter{"id": userIDs}})
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	index := make(map[uuid.UUID]*models.Group, len(groups))
	for _, g := range groups {
		g.Members = []models.User{}
		index[g.ID] = g
	}
	for _, row := range rows {
		u, ok := byID[row.UserID]
		if !ok {
			continue
		}
		index[row.GroupID].Members = append(index[row.GroupID].Members, u)
	}
	return nil
}

// IsNotFound is a convenience for callers matching on the sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
