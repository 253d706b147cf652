package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpNotifier_SendAccountAlert(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	err := n.SendAccountAlert(context.Background(), AccountAlert{
		Kind:      KindReconnectRequired,
		AccountID: "acct-1",
		ErrorCode: "AUTH_FAILED",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "account_id=acct-1")
	assert.Contains(t, buf.String(), "error_code=AUTH_FAILED")
}

func TestNoOpNotifier_NilLogger(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(nil)
	require.NoError(t, n.SendAccountAlert(context.Background(), AccountAlert{}))
}

// compile-time interface check.
var _ Notifier = (*NoOpNotifier)(nil)
