package alert

import "context"

// Notifier delivers operator-facing alerts.
type Notifier interface {
	// Notify sends text to the operators. It returns an error if delivery failed.
	Notify(ctx context.Context, text string) error
}

// Nop discards every alert.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }
