package karma

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriber_Handle(t *testing.T) {
	ledger, _, userID := newTestLedger(t)
	sub := NewSubscriber(nil, ledger, nil)
	ctx := context.Background()

	require.NoError(t, sub.Handle(ctx, `{"user_id":"`+userID.String()+`","event_type":"join_group"}`))
	require.NoError(t, sub.Handle(ctx, `{"user_id":"`+userID.String()+`","event_type":"upload_file","magnitude":3}`))

	balance, err := ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 13, balance)
}

func TestSubscriber_Handle_Rejects(t *testing.T) {
	ledger, _, userID := newTestLedger(t)
	sub := NewSubscriber(nil, ledger, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `join_group`},
		{"missing user", `{"event_type":"join_group"}`},
		{"unknown event", `{"user_id":"` + userID.String() + `","event_type":"hug"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, sub.Handle(ctx, tt.payload))
		})
	}

	balance, err := ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestSubscriber_RunWithoutRedis(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	// returns immediately instead of blocking
	NewSubscriber(nil, ledger, nil).Run(context.Background())
}
