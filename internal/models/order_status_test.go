package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    OrderStatus
		wantErr bool
	}{
		{name: "upper case", input: "SHIPPED", want: OrderStatusShipped},
		{name: "lower case", input: "processing", want: OrderStatusProcessing},
		{name: "padded", input: "  cancelled ", want: OrderStatusCancelled},
		{name: "unknown", input: "FULFILLED", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOrderStatus(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownOrderStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanTransitionTo(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered},
	}

	for _, from := range OrderStatuses() {
		for _, to := range OrderStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, OrderStatusDelivered.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusPaid))
}

func TestParseOrderStatus_ListsKnownStatuses(t *testing.T) {
	_, err := ParseOrderStatus("FULFILLED")
	require.ErrorIs(t, err, ErrUnknownOrderStatus)
	assert.Contains(t, err.Error(), `"FULFILLED"`)
	for _, status := range OrderStatuses() {
		assert.Contains(t, err.Error(), status.String())
	}
}
