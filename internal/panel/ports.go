package panel

import (
	"context"
	"log/slog"
)

// Notifier shows a message to the operator.
type Notifier interface {
	Notify(msg string)
}

// Renderer receives the visible rows after every refresh of the view.
type Renderer interface {
	Render(rows []Row)
}

// CredentialSource obtains the shared secret for a mutating action.
type CredentialSource interface {
	Secret(ctx context.Context, prompt string) (string, error)
}

// Confirmer asks the operator to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// StaticSecret is a CredentialSource that always returns the same value.
type StaticSecret string

func (s StaticSecret) Secret(context.Context, string) (string, error) { return string(s), nil }

// AlwaysConfirm accepts every confirmation.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

type logNotifier struct{ logger *slog.Logger }

func (n logNotifier) Notify(msg string) { n.logger.Info(msg) }
