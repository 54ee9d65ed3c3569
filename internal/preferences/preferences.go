// Package preferences holds per-device flags the app consults between visits:
// whether the onboarding tour has been seen, which establishments have been
// visited, and whether the notification prompt was dismissed.
package preferences

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	keyTourSeen         = "tour_seen"
	keyVisitedPrefix    = "visited:"
	keyPushDismissedAt  = "push_prompt_dismissed_at"
	defaultPromptPeriod = 7 * 24 * time.Hour
)

// Storage is a string key/value store. store.SettingsStore implements it.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Service reads and writes device preferences.
type Service struct {
	storage Storage
	now     func() time.Time
	// PromptPeriod is how long a dismissed notification prompt stays hidden.
	PromptPeriod time.Duration
}

func New(storage Storage) *Service {
	return &Service{storage: storage, now: time.Now, PromptPeriod: defaultPromptPeriod}
}

// TourSeen reports whether the onboarding tour has been completed or skipped.
func (s *Service) TourSeen(ctx context.Context) (bool, error) {
	return s.flag(ctx, keyTourSeen)
}

func (s *Service) MarkTourSeen(ctx context.Context) error {
	return s.set(ctx, keyTourSeen, "true")
}

func (s *Service) ResetTour(ctx context.Context) error {
	if err := s.storage.Delete(ctx, keyTourSeen); err != nil {
		return fmt.Errorf("reset tour: %w", err)
	}
	return nil
}

// FirstVisit records a visit to establishmentID and reports whether it was the
// first one from this device.
func (s *Service) FirstVisit(ctx context.Context, establishmentID string) (bool, error) {
	key := keyVisitedPrefix + establishmentID
	seen, err := s.flag(ctx, key)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	if err := s.set(ctx, key, "true"); err != nil {
		return false, err
	}
	return true, nil
}

// DismissPushPrompt hides the notification prompt for PromptPeriod.
func (s *Service) DismissPushPrompt(ctx context.Context) error {
	return s.set(ctx, keyPushDismissedAt, strconv.FormatInt(s.now().Unix(), 10))
}

// ShowPushPrompt reports whether the notification prompt may be shown.
func (s *Service) ShowPushPrompt(ctx context.Context) (bool, error) {
	v, ok, err := s.storage.Get(ctx, keyPushDismissedAt)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", keyPushDismissedAt, err)
	}
	if !ok {
		return true, nil
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true, nil
	}
	return s.now().Sub(time.Unix(sec, 0)) >= s.PromptPeriod, nil
}

func (s *Service) flag(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	b, _ := strconv.ParseBool(v)
	return b, nil
}

func (s *Service) set(ctx context.Context, key, value string) error {
	if err := s.storage.Set(ctx, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
