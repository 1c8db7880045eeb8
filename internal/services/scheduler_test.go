package services

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu    sync.Mutex
	fired []uint
}

func (r *expiryRecorder) record(orderID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, orderID)
}

func (r *expiryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func newTestScheduler(recorder *expiryRecorder) *ExpiryScheduler {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewExpiryScheduler(recorder.record, log)
}

func TestSchedulerFires(t *testing.T) {
	recorder := &expiryRecorder{}
	scheduler := newTestScheduler(recorder)
	defer scheduler.Stop()

	scheduler.Schedule(7, time.Now().Add(10*time.Millisecond))

	require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint(7), recorder.fired[0])
	assert.Zero(t, scheduler.Pending())
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	recorder := &expiryRecorder{}
	scheduler := newTestScheduler(recorder)
	defer scheduler.Stop()

	scheduler.Schedule(7, time.Now().Add(50*time.Millisecond))
	scheduler.Cancel(7)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, recorder.count())
	assert.Zero(t, scheduler.Pending())
}

func TestSchedulerCancelMissingIsNoop(t *testing.T) {
	recorder := &expiryRecorder{}
	scheduler := newTestScheduler(recorder)
	defer scheduler.Stop()

	assert.NotPanics(t, func() { scheduler.Cancel(404) })
}

func TestSchedulerRescheduleReplacesTimer(t *testing.T) {
	recorder := &expiryRecorder{}
	scheduler := newTestScheduler(recorder)
	defer scheduler.Stop()

	scheduler.Schedule(7, time.Now().Add(time.Hour))
	scheduler.Schedule(7, time.Now().Add(10*time.Millisecond))
	assert.Equal(t, 1, scheduler.Pending())

	require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)

	// The replaced timer must not fire a second time.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, recorder.count())
}

func TestSchedulerPastDeadlineFiresImmediately(t *testing.T) {
	recorder := &expiryRecorder{}
	scheduler := newTestScheduler(recorder)
	defer scheduler.Stop()

	scheduler.Schedule(9, time.Now().Add(-time.Minute))

	require.Eventually(t, func() bool { return recorder.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerStopDisarmsEverything(t *testing.T) {
	recorder := &expiryRecorder{}
	scheduler := newTestScheduler(recorder)

	scheduler.Schedule(1, time.Now().Add(20*time.Millisecond))
	scheduler.Schedule(2, time.Now().Add(20*time.Millisecond))
	scheduler.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, recorder.count())
	assert.Zero(t, scheduler.Pending())

	// Scheduling after Stop is ignored.
	scheduler.Schedule(3, time.Now().Add(5*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, recorder.count())
}
