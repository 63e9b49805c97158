package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []DeliveryStatus{DeliveryPending, DeliveryDelivered, DeliveryCheckedIn, DeliveryCancelled}
	allowed := map[[2]DeliveryStatus]bool{
		{DeliveryPending, DeliveryDelivered}:   true,
		{DeliveryPending, DeliveryCheckedIn}:   true,
		{DeliveryPending, DeliveryCancelled}:   true,
		{DeliveryDelivered, DeliveryCheckedIn}: true,
		{DeliveryDelivered, DeliveryCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]DeliveryStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, DeliveryCheckedIn.IsTerminal())
	assert.True(t, DeliveryCancelled.IsTerminal())
	assert.False(t, DeliveryPending.IsTerminal())
}

func TestCheckInPairConsistent(t *testing.T) {
	now := time.Now()
	r := Registration{TokenStatus: TokenActive}
	assert.True(t, r.CheckInPairConsistent())
	assert.False(t, r.IsCheckedIn())

	r.CheckedInAt = &now
	assert.False(t, r.CheckInPairConsistent())

	r.TokenStatus = TokenUsed
	assert.True(t, r.CheckInPairConsistent())
	assert.True(t, r.IsCheckedIn())
}
