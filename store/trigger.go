package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stewardhq/steward/core"
)

// ErrTriggerNotFound is returned when a trigger lookup scoped to an agent
// name matches no row.
var ErrTriggerNotFound = errors.New("trigger not found")

// CreateTrigger implements core.TriggerStore and backfills the assigned ID.
func (s *Store) CreateTrigger(ctx context.Context, trigger *core.Trigger) error {
	row := triggerRowFrom(trigger)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	trigger.ID = row.ID
	trigger.CreatedAt = row.CreatedAt
	trigger.UpdatedAt = row.UpdatedAt
	return nil
}

// GetTrigger implements core.TriggerStore. Lookups are always scoped to the
// owning agent name so one agent cannot read another's triggers.
func (s *Store) GetTrigger(ctx context.Context, id uint, agentName string) (*core.Trigger, error) {
	var row triggerRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND agent_name = ?", id, agentName).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTriggerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	t := row.toTrigger()
	return &t, nil
}

// UpdateTrigger implements core.TriggerStore with a full-row save.
func (s *Store) UpdateTrigger(ctx context.Context, trigger *core.Trigger) error {
	row := triggerRowFrom(trigger)
	row.UpdatedAt = time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&triggerRow{}).
		Where("id = ? AND agent_name = ?", trigger.ID, trigger.AgentName).
		Select("*").
		Omit("id", "created_at").
		Updates(row)
	if res.Error != nil {
		return fmt.Errorf("update trigger: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTriggerNotFound
	}
	trigger.UpdatedAt = row.UpdatedAt
	return nil
}

// DeleteTrigger implements core.TriggerStore.
func (s *Store) DeleteTrigger(ctx context.Context, id uint, agentName string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND agent_name = ?", id, agentName).
		Delete(&triggerRow{})
	if res.Error != nil {
		return fmt.Errorf("delete trigger: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTriggerNotFound
	}
	return nil
}

// ListTriggers implements core.TriggerStore, returning one agent's triggers
// ordered by creation.
func (s *Store) ListTriggers(ctx context.Context, agentName string) ([]core.Trigger, error) {
	var rows []triggerRow
	err := s.db.WithContext(ctx).
		Where("agent_name = ?", agentName).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	triggers := make([]core.Trigger, len(rows))
	for i, r := range rows {
		triggers[i] = r.toTrigger()
	}
	return triggers, nil
}

// DueTriggers implements core.TriggerStore, returning active triggers whose
// next fire time is at or before the given instant.
func (s *Store) DueTriggers(ctx context.Context, before time.Time) ([]core.Trigger, error) {
	var rows []triggerRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_fire IS NOT NULL AND next_fire <= ?", string(core.TriggerActive), before).
		Order("next_fire ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query due triggers: %w", err)
	}
	triggers := make([]core.Trigger, len(rows))
	for i, r := range rows {
		triggers[i] = r.toTrigger()
	}
	return triggers, nil
}

// AdvanceTrigger implements core.TriggerStore. The update is conditional on
// the stored next fire time still equaling prevFire, so concurrent pollers
// and restarted processes claim each occurrence at most once.
func (s *Store) AdvanceTrigger(ctx context.Context, id uint, prevFire time.Time, nextFire *time.Time, status core.TriggerStatus) (bool, error) {
	claimed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&triggerRow{}).
			Where("id = ? AND status = ? AND next_fire = ?", id, string(core.TriggerActive), prevFire).
			Updates(map[string]any{
				"next_fire":  nextFire,
				"status":     string(status),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("advance trigger: %w", err)
	}
	return claimed, nil
}
