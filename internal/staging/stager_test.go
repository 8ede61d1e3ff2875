package staging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caravel-preorders/caravel/internal/preorders"
)

type fakeUpdater struct {
	mu       sync.Mutex
	statuses map[int64]preorders.OrderStatus
	flights  map[int64]*int64
	failOn   map[int64]error
}

func newFakeUpdater() *fakeUpdater {
	return &fakeUpdater{
		statuses: map[int64]preorders.OrderStatus{},
		flights:  map[int64]*int64{},
		failOn:   map[int64]error{},
	}
}

func (f *fakeUpdater) ChangeStatus(_ context.Context, id int64, status preorders.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[id]; err != nil {
		return err
	}
	f.statuses[id] = status
	return nil
}

func (f *fakeUpdater) AssignFlight(_ context.Context, id int64, flightID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[id]; err != nil {
		return err
	}
	f.flights[id] = flightID
	return nil
}

func statusPtr(s preorders.OrderStatus) *preorders.OrderStatus { return &s }

func TestStageDoesNotPersist(t *testing.T) {
	updater := newFakeUpdater()
	stager := NewStager(updater, 2, slog.Default())

	require.False(t, stager.HasPending(1))
	require.NoError(t, stager.Stage(1, 10, FieldStatus, Change{Status: statusPtr(preorders.StatusShipped)}))
	require.True(t, stager.HasPending(1))
	require.Empty(t, updater.statuses)
}

func TestStageRejectsBadInput(t *testing.T) {
	stager := NewStager(newFakeUpdater(), 1, slog.Default())

	err := stager.Stage(1, 10, FieldStatus, Change{Status: statusPtr("lost")})
	require.ErrorIs(t, err, preorders.ErrInvalidStatus)

	err = stager.Stage(1, 10, Field("notes"), Change{})
	require.ErrorIs(t, err, ErrUnknownField)

	err = stager.Stage(1, 10, FieldFlight, Change{})
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestStageUpsertsFieldwise(t *testing.T) {
	stager := NewStager(newFakeUpdater(), 1, slog.Default())
	flight := int64(5)

	require.NoError(t, stager.Stage(1, 10, FieldStatus, Change{Status: statusPtr(preorders.StatusOrdered)}))
	require.NoError(t, stager.Stage(1, 10, FieldFlight, Change{FlightID: &flight}))
	require.NoError(t, stager.Stage(1, 10, FieldStatus, Change{Status: statusPtr(preorders.StatusShipped)}))

	pending := stager.Pending(1)
	require.Len(t, pending, 1)
	require.Equal(t, preorders.StatusShipped, *pending[10].Status)
	require.Equal(t, flight, *pending[10].FlightID)
}

func TestApplyAllReportsPerOrderManifest(t *testing.T) {
	updater := newFakeUpdater()
	updater.failOn[20] = errors.New("order is locked")
	stager := NewStager(updater, 3, slog.Default())

	for _, id := range []int64{10, 20, 30} {
		require.NoError(t, stager.Stage(1, id, FieldStatus, Change{Status: statusPtr(preorders.StatusShipped)}))
	}

	manifest := stager.ApplyAll(context.Background(), 1)

	require.Len(t, manifest, 3)
	byOrder := map[int64]ApplyResult{}
	for _, res := range manifest {
		byOrder[res.OrderID] = res
	}
	require.True(t, byOrder[10].OK)
	require.False(t, byOrder[20].OK)
	require.Contains(t, byOrder[20].Error, "order is locked")
	require.True(t, byOrder[30].OK)

	// The failure did not block its siblings.
	require.Equal(t, preorders.StatusShipped, updater.statuses[10])
	require.Equal(t, preorders.StatusShipped, updater.statuses[30])

	// Applied entries are gone; the failed one stays staged for retry.
	pending := stager.Pending(1)
	require.Len(t, pending, 1)
	require.Contains(t, pending, int64(20))
}

func TestApplyAllPerUserIsolation(t *testing.T) {
	updater := newFakeUpdater()
	stager := NewStager(updater, 2, slog.Default())

	require.NoError(t, stager.Stage(1, 10, FieldStatus, Change{Status: statusPtr(preorders.StatusShipped)}))
	require.NoError(t, stager.Stage(2, 20, FieldStatus, Change{Status: statusPtr(preorders.StatusCancelled)}))

	manifest := stager.ApplyAll(context.Background(), 1)
	require.Len(t, manifest, 1)

	require.True(t, stager.HasPending(2))
	require.False(t, stager.HasPending(1))
	require.NotContains(t, updater.statuses, int64(20))
}

func TestDiscardAllClearsWithoutPersisting(t *testing.T) {
	updater := newFakeUpdater()
	stager := NewStager(updater, 1, slog.Default())

	require.NoError(t, stager.Stage(1, 10, FieldStatus, Change{Status: statusPtr(preorders.StatusShipped)}))
	stager.DiscardAll(1)

	require.False(t, stager.HasPending(1))
	require.Empty(t, updater.statuses)
	require.Empty(t, stager.ApplyAll(context.Background(), 1))
}

func TestApplyToSetBulkFlightAssignment(t *testing.T) {
	updater := newFakeUpdater()
	stager := NewStager(updater, 4, slog.Default())
	flight := int64(7)

	manifest, err := stager.ApplyToSet(context.Background(), []int64{1, 2, 3}, FieldFlight, Change{FlightID: &flight})
	require.NoError(t, err)
	require.Len(t, manifest, 3)
	for _, res := range manifest {
		require.True(t, res.OK)
		require.Equal(t, flight, *updater.flights[res.OrderID])
	}

	_, err = stager.ApplyToSet(context.Background(), []int64{1}, FieldStatus, Change{})
	require.ErrorIs(t, err, preorders.ErrInvalidStatus)
}
