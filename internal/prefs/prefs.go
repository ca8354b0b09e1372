// Package prefs holds the collection-notice dismissal preference. The
// "should the notice show" decision is a pure function of the clock and the
// stored dismiss-until value, so it tests without a store and the store
// backend stays swappable.
package prefs

import (
	"context"
	"time"
)

// Store is the persisted dismiss-until value. A zero time means the notice
// was never dismissed.
type Store interface {
	DismissedUntil(ctx context.Context) (time.Time, error)
	SetDismissedUntil(ctx context.Context, until time.Time) error
}

// ShouldShowNotice reports whether the collection-status notice should be
// displayed at now given the stored dismiss-until value.
func ShouldShowNotice(now, dismissedUntil time.Time) bool {
	if dismissedUntil.IsZero() {
		return true
	}
	return now.After(dismissedUntil)
}

// Service pairs a Store with an injectable clock.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// ShouldShow resolves the current decision. Store errors degrade to showing
// the notice: a broken preference store must never hide it permanently.
func (s *Service) ShouldShow(ctx context.Context) (bool, time.Time) {
	until, err := s.store.DismissedUntil(ctx)
	if err != nil {
		return true, time.Time{}
	}
	return ShouldShowNotice(s.now(), until), until
}

// Dismiss hides the notice for the given number of days from now.
func (s *Service) Dismiss(ctx context.Context, days int) (time.Time, error) {
	until := s.now().AddDate(0, 0, days)
	if err := s.store.SetDismissedUntil(ctx, until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}
