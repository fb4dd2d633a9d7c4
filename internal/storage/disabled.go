package storage

import (
	"context"

	"leaderbot/internal/subscription"
)

// Disabled stands in for Subscriptions when no store is opened. Every call
// fails with ErrDisabled.
type Disabled struct{}

var _ Subscriptions = Disabled{}

func (Disabled) ListSubscriptions(context.Context) ([]subscription.Subscription, error) {
	return nil, ErrDisabled
}

func (Disabled) GetSubscription(context.Context, int64) (subscription.Subscription, bool, error) {
	return subscription.Subscription{}, false, ErrDisabled
}

func (Disabled) DeleteSubscription(context.Context, int64) error { return ErrDisabled }

func (Disabled) PutSubscription(context.Context, subscription.Subscription) (int64, error) {
	return 0, ErrDisabled
}
