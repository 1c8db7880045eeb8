package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulbase/dispatch-backend/internal/models"
	"github.com/haulbase/dispatch-backend/pkg/utils"
)

func TestComputeBidStatsEmpty(t *testing.T) {
	count, lowest := ComputeBidStats(nil)
	assert.Zero(t, count)
	assert.Nil(t, lowest)
}

func TestComputeBidStatsCountsNonRejected(t *testing.T) {
	bids := []models.Bid{
		{Amount: 1200, Status: models.BidStatusPending},
		{Amount: 900, Status: models.BidStatusPending},
		{Amount: 800, Status: models.BidStatusRejected},
		{Amount: 1500, Status: models.BidStatusAccepted},
	}

	count, lowest := ComputeBidStats(bids)
	assert.Equal(t, 3, count)
	require.NotNil(t, lowest)
	assert.Equal(t, 900.0, *lowest)
}

func TestComputeBidStatsIgnoresAcceptedForLowest(t *testing.T) {
	// An accepted bid counts toward volume but no longer competes on
	// price.
	bids := []models.Bid{
		{Amount: 700, Status: models.BidStatusAccepted},
		{Amount: 1100, Status: models.BidStatusPending},
	}

	count, lowest := ComputeBidStats(bids)
	assert.Equal(t, 2, count)
	require.NotNil(t, lowest)
	assert.Equal(t, 1100.0, *lowest)
}

func TestComputeBidStatsAllRejected(t *testing.T) {
	bids := []models.Bid{
		{Amount: 700, Status: models.BidStatusRejected},
		{Amount: 1100, Status: models.BidStatusRejected},
	}

	count, lowest := ComputeBidStats(bids)
	assert.Zero(t, count)
	assert.Nil(t, lowest)
}

func TestComposeOrderAppliesProviderOverride(t *testing.T) {
	local := []int{2, 0, 1}
	provider := []int{1, 2, 0}

	assert.Equal(t, []int{0, 1, 2}, composeOrder(local, provider))
}

func TestComposeOrderRejectsOutOfRangeIndex(t *testing.T) {
	local := []int{1, 0}

	assert.Equal(t, local, composeOrder(local, []int{0, 5}))
	assert.Equal(t, local, composeOrder(local, []int{-1, 0}))
}

func TestComposeOrderRejectsLengthMismatch(t *testing.T) {
	local := []int{0, 1, 2}

	assert.Equal(t, local, composeOrder(local, []int{0, 1}))
}

func TestApplyOrderReordersStops(t *testing.T) {
	stops := []utils.Point{{Lat: 1}, {Lat: 2}, {Lat: 3}}

	out := applyOrder(stops, []int{2, 0, 1})
	assert.Equal(t, []utils.Point{{Lat: 3}, {Lat: 1}, {Lat: 2}}, out)
}

func TestRoutePreconditionErrorMessage(t *testing.T) {
	err := &RoutePreconditionError{
		Missing:     []uint{4},
		WrongStatus: []uint{7, 9},
	}

	require.True(t, err.HasViolations())
	assert.Contains(t, err.Error(), "not found: [4]")
	assert.Contains(t, err.Error(), "not picked up: [7 9]")
	assert.NotContains(t, err.Error(), "active route")
}

func TestRoutePreconditionErrorNoViolations(t *testing.T) {
	err := &RoutePreconditionError{}
	assert.False(t, err.HasViolations())
}

func TestTransitionErrorMessage(t *testing.T) {
	err := &TransitionError{Entity: "order", ID: 12, Current: models.OrderStatusDelivered, Required: models.OrderStatusPickedUp}
	assert.Equal(t, "order 12 is DELIVERED, requires PICKED_UP", err.Error())
}

func routableFixture(driverID uint, ids ...uint) map[uint]*models.Order {
	found := make(map[uint]*models.Order, len(ids))
	for _, id := range ids {
		order := &models.Order{DriverID: driverID, Status: models.OrderStatusPickedUp}
		order.ID = id
		found[id] = order
	}
	return found
}

func TestValidateRoutableAccepts(t *testing.T) {
	found := routableFixture(9, 1, 2, 3)

	assert.Nil(t, validateRoutable(9, []uint{3, 1, 2}, found, nil))
}

func TestValidateRoutableRejectsDuplicateIDs(t *testing.T) {
	found := routableFixture(9, 5)

	violation := validateRoutable(9, []uint{5, 5}, found, nil)
	require.NotNil(t, violation)
	assert.Equal(t, []uint{5}, violation.Duplicate)
	assert.Empty(t, violation.Missing)
	assert.Contains(t, violation.Error(), "duplicated in request: [5]")
}

func TestValidateRoutableCollectsEveryViolation(t *testing.T) {
	found := routableFixture(9, 1, 2)
	found[2].DriverID = 4

	inTransit := &models.Order{DriverID: 9, Status: models.OrderStatusInTransit}
	inTransit.ID = 3
	found[3] = inTransit

	violation := validateRoutable(9, []uint{1, 2, 3, 8, 1}, found, []uint{6})
	require.NotNil(t, violation)
	assert.Equal(t, []uint{2}, violation.NotOwned)
	assert.Equal(t, []uint{3}, violation.WrongStatus)
	assert.Equal(t, []uint{8}, violation.Missing)
	assert.Equal(t, []uint{1}, violation.Duplicate)
	assert.Equal(t, []uint{6}, violation.AlreadyRouted)
}

func TestIsOrderParty(t *testing.T) {
	order := &models.Order{DriverID: 4}
	load := &models.Load{ShipperID: 2}

	assert.True(t, isOrderParty(order, load, 4))
	assert.True(t, isOrderParty(order, load, 2))
	assert.False(t, isOrderParty(order, load, 99))
}

func TestApplyTrackingUpdateSparseFields(t *testing.T) {
	tracking := &models.RouteTracking{
		RouteID:           1,
		Status:            models.TrackingStatusActive,
		TotalDistanceKm:   120,
		DistanceCoveredKm: 10,
	}
	covered := 45.0
	progress := 37.5
	now := time.Now()

	require.NoError(t, applyTrackingUpdate(tracking, TrackingUpdate{
		DistanceCoveredKm:  &covered,
		ProgressPercentage: &progress,
	}, now))

	assert.Equal(t, 45.0, tracking.DistanceCoveredKm)
	assert.Equal(t, 37.5, tracking.ProgressPercentage)
	assert.Equal(t, 120.0, tracking.TotalDistanceKm)
	assert.Nil(t, tracking.LastUpdatedEta)
}

func TestApplyTrackingUpdateStampsEta(t *testing.T) {
	tracking := &models.RouteTracking{RouteID: 1, Status: models.TrackingStatusActive}
	eta := time.Now().Add(40 * time.Minute)
	now := time.Now()

	require.NoError(t, applyTrackingUpdate(tracking, TrackingUpdate{EstimatedArrivalTime: &eta}, now))

	require.NotNil(t, tracking.LastUpdatedEta)
	assert.Equal(t, now, *tracking.LastUpdatedEta)
}

func TestApplyTrackingUpdateRefusesCompletedRecord(t *testing.T) {
	tracking := &models.RouteTracking{
		RouteID:            1,
		Status:             models.TrackingStatusCompleted,
		ProgressPercentage: 100,
	}
	regressed := 50.0

	err := applyTrackingUpdate(tracking, TrackingUpdate{ProgressPercentage: &regressed}, time.Now())

	var transition *TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.TrackingStatusCompleted, transition.Current)
	assert.Equal(t, 100.0, tracking.ProgressPercentage)
}
