package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrderNumber(t *testing.T) {
	createdAt := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "FRT-2025-000042", BuildOrderNumber(createdAt, 42))
	// Deterministic.
	assert.Equal(t, BuildOrderNumber(createdAt, 42), BuildOrderNumber(createdAt, 42))
}

func TestCanTransitionHappyPath(t *testing.T) {
	path := []string{
		OrderStatusBidAccepted,
		OrderStatusDriverAccepted,
		OrderStatusPickedUp,
		OrderStatusInTransit,
		OrderStatusDelivered,
		OrderStatusCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestCanTransitionRejectsRegression(t *testing.T) {
	assert.False(t, CanTransition(OrderStatusInTransit, OrderStatusPickedUp))
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusInTransit))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusDelivered))
}

func TestCanTransitionSideExits(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusBidAccepted, OrderStatusDriverRejected))
	assert.True(t, CanTransition(OrderStatusDriverAccepted, OrderStatusCanceled))
	assert.True(t, CanTransition(OrderStatusPickedUp, OrderStatusDeliveryFailed))
	assert.True(t, CanTransition(OrderStatusInTransit, OrderStatusCanceled))

	// Cancellation is valid only after acceptance, not before.
	assert.False(t, CanTransition(OrderStatusBidAccepted, OrderStatusCanceled))
	// Nothing leaves a terminal state.
	assert.False(t, CanTransition(OrderStatusCanceled, OrderStatusInTransit))
	assert.False(t, CanTransition(OrderStatusDriverRejected, OrderStatusBidAccepted))
}

func TestIsTerminalOrderStatus(t *testing.T) {
	assert.True(t, IsTerminalOrderStatus(OrderStatusCompleted))
	assert.True(t, IsTerminalOrderStatus(OrderStatusCanceled))
	assert.True(t, IsTerminalOrderStatus(OrderStatusDeliveryFailed))
	assert.True(t, IsTerminalOrderStatus(OrderStatusDriverRejected))

	assert.False(t, IsTerminalOrderStatus(OrderStatusBidAccepted))
	assert.False(t, IsTerminalOrderStatus(OrderStatusInTransit))
}

func TestHasDriverCapacityReserved(t *testing.T) {
	assert.False(t, HasDriverCapacityReserved(OrderStatusBidAccepted))
	assert.True(t, HasDriverCapacityReserved(OrderStatusDriverAccepted))
	assert.True(t, HasDriverCapacityReserved(OrderStatusPickedUp))
	assert.True(t, HasDriverCapacityReserved(OrderStatusInTransit))
	assert.False(t, HasDriverCapacityReserved(OrderStatusDelivered))
	assert.False(t, HasDriverCapacityReserved(OrderStatusCanceled))
}

func TestDriverCapacityNetsToZero(t *testing.T) {
	profile := DriverProfile{DriverID: 1, Status: DriverStatusAvailable}

	profile.AddLoadWeight(500)
	assert.Equal(t, 500.0, profile.CurrentLoadWeight)
	assert.Equal(t, DriverStatusBusy, profile.Status)

	profile.AddLoadWeight(250)
	assert.Equal(t, 750.0, profile.CurrentLoadWeight)

	profile.ReleaseLoadWeight(500)
	assert.Equal(t, 250.0, profile.CurrentLoadWeight)
	assert.Equal(t, DriverStatusBusy, profile.Status)

	profile.ReleaseLoadWeight(250)
	assert.Zero(t, profile.CurrentLoadWeight)
	assert.Equal(t, DriverStatusAvailable, profile.Status)
}

func TestReleaseLoadWeightClampsAtZero(t *testing.T) {
	profile := DriverProfile{DriverID: 1, CurrentLoadWeight: 100, Status: DriverStatusBusy}

	profile.ReleaseLoadWeight(150)

	assert.Zero(t, profile.CurrentLoadWeight)
	assert.Equal(t, DriverStatusAvailable, profile.Status)
}
