package ports

import "context"

type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Notification is a non-blocking message for the user.
type Notification struct {
	Level   NotificationLevel
	Message string
	Err     error
}

// Notifier surfaces notifications. Notify must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
