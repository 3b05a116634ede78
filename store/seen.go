package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IsSeen implements core.SeenStore.
func (s *Store) IsSeen(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&seenRow{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// MarkSeen implements core.SeenStore. Duplicate IDs are ignored; after the
// insert the set is pruned to the configured limit, dropping oldest rows.
func (s *Store) MarkSeen(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	rows := make([]seenRow, len(messageIDs))
	for i, id := range messageIDs {
		rows[i] = seenRow{MessageID: id}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return err
		}
		return tx.Exec(
			"DELETE FROM seen_messages WHERE id NOT IN (SELECT id FROM seen_messages ORDER BY id DESC LIMIT ?)",
			s.seenLimit,
		).Error
	})
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// HasEntries implements core.SeenStore; the watcher uses it to detect a
// first run and seed the set without classifying backlog.
func (s *Store) HasEntries(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&seenRow{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count seen: %w", err)
	}
	return count > 0, nil
}
