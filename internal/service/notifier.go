package service

import "context"

// Notifier is the slice of the notification system the services call into.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NopNotifier satisfies Notifier without delivering anywhere, for tests and
// deployments with no channels configured.
type NopNotifier struct{}

// Notify discards the notification.
func (NopNotifier) Notify(context.Context, string, string, string) error { return nil }
