package store

import (
	"context"
	"fmt"
	"time"

	"github.com/stewardhq/steward/core"
)

// AppendHistory implements core.HistoryStore.
func (s *Store) AppendHistory(ctx context.Context, entry core.HistoryEntry) error {
	row := historyRowFrom(entry)
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History implements core.HistoryStore, returning one agent's entries in
// append order.
func (s *Store) History(ctx context.Context, agentName string) ([]core.HistoryEntry, error) {
	var rows []historyRow
	err := s.db.WithContext(ctx).
		Where("agent_name = ?", agentName).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	entries := make([]core.HistoryEntry, len(rows))
	for i, r := range rows {
		entries[i] = r.toEntry()
	}
	return entries, nil
}
