package store

import (
	"context"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func withReactions(kind models.ReactionKind) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Preload("Reactions", "message_kind = ?", kind)
	}
}

var messagePreloads = []string{"Sender", "ReplyTo", "ReplyTo.Sender"}

// LoadMessage returns a group message with sender, reply target and
// reactions populated.
func (s *Store) LoadMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return s.Messages.FindOne(ctx, Query{
		Where:   Filter{"id": id},
		Preload: messagePreloads,
		Scopes:  []func(*gorm.DB) *gorm.DB{withReactions(models.ReactionOnMessage)},
	})
}

// GroupMessages lists a group's chat oldest first. limit <= 0 means all.
func (s *Store) GroupMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]models.Message, error) {
	return s.Messages.FindMany(ctx, Query{
		Where:   Filter{"group_id": groupID},
		Preload: messagePreloads,
		Scopes:  []func(*gorm.DB) *gorm.DB{withReactions(models.ReactionOnMessage)},
		Order:   "created_at ASC",
		Limit:   limit,
	})
}

func (s *Store) LoadDirectMessage(ctx context.Context, id uuid.UUID) (*models.DirectMessage, error) {
	return s.DirectMessages.FindOne(ctx, Query{
		Where:   Filter{"id": id},
		Preload: messagePreloads,
		Scopes:  []func(*gorm.DB) *gorm.DB{withReactions(models.ReactionOnDirectMessage)},
	})
}

// Conversation lists the messages between a and b in either direction,
// oldest first.
func (s *Store) Conversation(ctx context.Context, a, b uuid.UUID) ([]models.DirectMessage, error) {
	between := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", a, b, b, a)
	}
	return s.DirectMessages.FindMany(ctx, Query{
		Preload: messagePreloads,
		Scopes:  []func(*gorm.DB) *gorm.DB{between, withReactions(models.ReactionOnDirectMessage)},
		Order:   "created_at ASC",
	})
}

// MarkConversationRead flags everything sender sent to reader as read and
// returns how many rows changed.
func (s *Store) MarkConversationRead(ctx context.Context, senderID, readerID uuid.UUID) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", senderID, readerID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

type unreadRow struct {
	SenderID uuid.UUID
	Count    int64
}

// UnreadCounts returns unread direct messages for userID keyed by sender.
func (s *Store) UnreadCounts(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]int64, error) {
	var rows []unreadRow
	err := s.db.WithContext(ctx).Model(&models.DirectMessage{}).
		Select("sender_id, COUNT(*) AS count").
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Count
	}
	return counts, nil
}

// AddReaction is idempotent per (message, kind, user, emoji).
func (s *Store) AddReaction(ctx context.Context, r *models.Reaction) error {
	existing, err := s.Reactions.FindOne(ctx, Query{Where: Filter{
		"message_id":   r.MessageID,
		"message_kind": r.Kind,
		"user_id":      r.UserID,
		"emoji":        r.Emoji,
	}})
	if err == nil {
		*r = *existing
		return nil
	}
	if !IsNotFound(err) {
		return err
	}
	return s.Reactions.Create(ctx, r)
}

// RemoveReaction reports whether the reaction existed.
func (s *Store) RemoveReaction(ctx context.Context, messageID uuid.UUID, kind models.ReactionKind, userID uuid.UUID, emoji string) (bool, error) {
	n, err := s.Reactions.DeleteMany(ctx, Filter{
		"message_id":   messageID,
		"message_kind": kind,
		"user_id":      userID,
		"emoji":        emoji,
	})
	return n > 0, err
}
