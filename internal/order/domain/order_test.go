package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olivierola/e-com-backend/internal/order/domain"
)

func TestDeliveryChain(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		allowed  bool
	}{
		{domain.OrderStatusProcessing, domain.OrderStatusPickedUp, true},
		{domain.OrderStatusPickedUp, domain.OrderStatusInTransit, true},
		{domain.OrderStatusInTransit, domain.OrderStatusDelivered, true},

		// Skipping a hop is never allowed.
		{domain.OrderStatusProcessing, domain.OrderStatusInTransit, false},
		{domain.OrderStatusProcessing, domain.OrderStatusDelivered, false},
		{domain.OrderStatusPickedUp, domain.OrderStatusDelivered, false},

		// No moving backwards, no leaving terminal states.
		{domain.OrderStatusInTransit, domain.OrderStatusPickedUp, false},
		{domain.OrderStatusDelivered, domain.OrderStatusInTransit, false},
		{domain.OrderStatusCancelled, domain.OrderStatusProcessing, false},

		// pending enters the chain only via assignment, not via the
		// courier status update.
		{domain.OrderStatusPending, domain.OrderStatusPickedUp, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, domain.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNextDeliveryStatus(t *testing.T) {
	assert.Equal(t, domain.OrderStatusPickedUp, domain.NextDeliveryStatus(domain.OrderStatusProcessing))
	assert.Equal(t, domain.OrderStatusInTransit, domain.NextDeliveryStatus(domain.OrderStatusPickedUp))
	assert.Equal(t, domain.OrderStatusDelivered, domain.NextDeliveryStatus(domain.OrderStatusInTransit))
	assert.Empty(t, domain.NextDeliveryStatus(domain.OrderStatusDelivered))
	assert.Empty(t, domain.NextDeliveryStatus(domain.OrderStatusCancelled))
}

func TestCancellable(t *testing.T) {
	assert.True(t, domain.Cancellable(domain.OrderStatusPending))
	assert.True(t, domain.Cancellable(domain.OrderStatusProcessing))
	assert.False(t, domain.Cancellable(domain.OrderStatusPickedUp))
	assert.False(t, domain.Cancellable(domain.OrderStatusInTransit))
	assert.False(t, domain.Cancellable(domain.OrderStatusDelivered))
	assert.False(t, domain.Cancellable(domain.OrderStatusCancelled))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
		domain.OrderStatusPickedUp,
		domain.OrderStatusInTransit,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled,
	} {
		assert.True(t, domain.ValidStatus(s))
	}
	assert.False(t, domain.ValidStatus("shipped"))
	assert.False(t, domain.ValidStatus(""))
}
