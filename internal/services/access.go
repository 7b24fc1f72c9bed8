package services

import (
	"context"
	"errors"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/google/uuid"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a member of this group")
	ErrNotAdmin      = errors.New("only the group admin can do this")
)

// AccessService answers the group-scoped authorization questions every
// mutation handler asks before touching state.
type AccessService struct {
	Store *store.Store
}

func NewAccessService(s *store.Store) *AccessService {
	return &AccessService{Store: s}
}

// RequireMember loads the group with members and checks userID is one.
func (a *AccessService) RequireMember(ctx context.Context, groupID, userID uuid.UUID) (*models.Group, error) {
	group, err := a.Store.LoadGroup(ctx, groupID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, ErrNotMember
	}
	return group, nil
}

// RequireAdmin checks userID is the group's admin. Admins are always members.
func (a *AccessService) RequireAdmin(ctx context.Context, groupID, userID uuid.UUID) (*models.Group, error) {
	group, err := a.Store.LoadGroup(ctx, groupID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if !group.IsAdmin(userID) {
		return nil, ErrNotAdmin
	}
	return group, nil
}

// IsMember is the lightweight check used by the realtime layer on joinGroup.
func (a *AccessService) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	return a.Store.IsMember(ctx, groupID, userID)
}
