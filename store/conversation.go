package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stewardhq/steward/core"
)

// AppendMessage implements core.ConversationStore.
func (s *Store) AppendMessage(ctx context.Context, msg core.Message) (int64, error) {
	row := conversationRow{
		Role:      string(msg.Role),
		Content:   msg.Content,
		AgentName: msg.AgentName,
		Timestamp: msg.Timestamp,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return row.Idx, nil
}

// MessagesAfter implements core.ConversationStore, returning entries with
// index strictly greater than index, in log order.
func (s *Store) MessagesAfter(ctx context.Context, index int64) ([]core.Message, error) {
	var rows []conversationRow
	err := s.db.WithContext(ctx).
		Where("idx > ?", index).
		Order("idx ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	msgs := make([]core.Message, len(rows))
	for i, r := range rows {
		msgs[i] = r.toMessage()
	}
	return msgs, nil
}

// LoadSummaryState implements core.ConversationStore. A missing row yields
// the empty state rather than an error.
func (s *Store) LoadSummaryState(ctx context.Context) (core.SummaryState, error) {
	var row summaryRow
	err := s.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.EmptySummaryState(), nil
	}
	if err != nil {
		return core.SummaryState{}, fmt.Errorf("load summary state: %w", err)
	}
	updatedAt := row.UpdatedAt
	return core.SummaryState{
		SummaryText: row.SummaryText,
		LastIndex:   row.LastIndex,
		UpdatedAt:   &updatedAt,
	}, nil
}

// SaveSummaryState implements core.ConversationStore via an upsert of the
// singleton row.
func (s *Store) SaveSummaryState(ctx context.Context, state core.SummaryState) error {
	row := summaryRow{
		ID:          1,
		SummaryText: state.SummaryText,
		LastIndex:   state.LastIndex,
		UpdatedAt:   time.Now().UTC(),
	}
	if state.UpdatedAt != nil {
		row.UpdatedAt = *state.UpdatedAt
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary_text", "last_index", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save summary state: %w", err)
	}
	return nil
}
