package services

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"labsos-backend/domain/search"
)

// TuningProvider hands out the tuning in force for one request.
type TuningProvider interface {
	Current() search.Tuning
}

// TuningStore holds the live tuning. Updates come from the config watcher
// and take effect on the next request.
type TuningStore struct {
	current atomic.Pointer[search.Tuning]
	logger  *zap.Logger
}

// NewTuningStore creates a store seeded with initial, which must be valid.
func NewTuningStore(initial search.Tuning, logger *zap.Logger) (*TuningStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	s := &TuningStore{logger: logger}
	s.current.Store(&initial)
	return s, nil
}

// Current returns a copy of the tuning in force.
func (s *TuningStore) Current() search.Tuning {
	return *s.current.Load()
}

// Update swaps in t. An invalid tuning is rejected and the old one kept.
func (s *TuningStore) Update(t search.Tuning) error {
	if err := t.Validate(); err != nil {
		s.logger.Warn("Rejected tuning update", zap.Error(err))
		return fmt.Errorf("invalid tuning: %w", err)
	}
	s.current.Store(&t)
	s.logger.Info("Tuning updated",
		zap.Int("smallTreeThreshold", t.SmallTreeThreshold),
		zap.Int("simpleMaxNodes", t.SimpleQuery.MaxNodes),
		zap.Int("ambiguousMaxNodes", t.AmbiguousQuery.MaxNodes),
	)
	return nil
}
