package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"
)

// AddAgent implements core.RosterStore. It reports true when the name was
// not previously on the roster.
func (s *Store) AddAgent(ctx context.Context, name string) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rosterRow{Name: name})
	if res.Error != nil {
		return false, fmt.Errorf("add agent: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Agents implements core.RosterStore, returning names in creation order.
func (s *Store) Agents(ctx context.Context) ([]string, error) {
	var rows []rosterRow
	err := s.db.WithContext(ctx).Order("created_at ASC, name ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}
