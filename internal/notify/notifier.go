// Package notify defines the operator notification interface and its
// implementations.
package notify

import (
	"context"
	"time"
)

// AlertKind classifies an operator alert.
type AlertKind string

// Alert kinds.
const (
	// KindReconnectRequired means automatic refresh cannot recover the
	// account; the seller must authorize again.
	KindReconnectRequired AlertKind = "reconnect_required"
	// KindConfigError means a stored token could not be decrypted with the
	// configured secret.
	KindConfigError AlertKind = "config_error"
)

// AccountAlert is an account-level event that needs operator attention.
type AccountAlert struct {
	Kind        AlertKind
	AccountID   string
	AccountName string
	ErrorCode   string
	Message     string
	OccurredAt  time.Time
}

// Notifier delivers operator alerts.
type Notifier interface {
	SendAccountAlert(ctx context.Context, alert AccountAlert) error
}
