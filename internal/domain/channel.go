package domain

import "context"

// Channel is the interface for a platform adapter (Telegram, CLI, ...).
type Channel interface {
	Name() string
	Start(ctx context.Context, queue EventQueue) error
	Stop() error
}
