package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpireFunc is invoked when an order's confirmation window elapses. It
// must be idempotent: the scheduler guarantees at-most-once firing per
// scheduled timer, but a timer may fire after the order has already
// been confirmed, and the callback re-checks state itself.
type ExpireFunc func(orderID uint)

// ExpiryScheduler holds one pending one-shot timer per order awaiting
// driver confirmation. Confirmation cancels the timer; cancelling a
// timer that does not exist is a silent no-op. Timers that slip past a
// missed cancellation are harmless because the callback no-ops on
// already-confirmed orders.
type ExpiryScheduler struct {
	mu      sync.Mutex
	timers  map[uint]*time.Timer
	expire  ExpireFunc
	log     *logrus.Logger
	stopped bool
}

// NewExpiryScheduler creates a scheduler that calls expire when an
// order's timer fires.
func NewExpiryScheduler(expire ExpireFunc, log *logrus.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{
		timers: make(map[uint]*time.Timer),
		expire: expire,
		log:    log,
	}
}

// Schedule arms a one-shot timer for the order, firing at the given
// time. Scheduling again for the same order replaces the pending timer.
func (s *ExpiryScheduler) Schedule(orderID uint, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if prev, ok := s.timers[orderID]; ok {
		prev.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.timers[orderID] = time.AfterFunc(delay, func() {
		s.fire(orderID)
	})

	s.log.WithFields(logrus.Fields{
		"orderId":   orderID,
		"expiresAt": at,
	}).Info("scheduled order expiry")
}

// Cancel disarms the pending timer for the order. Cancelling an order
// with no pending timer is a no-op.
func (s *ExpiryScheduler) Cancel(orderID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[orderID]; ok {
		timer.Stop()
		delete(s.timers, orderID)
		s.log.WithField("orderId", orderID).Info("cancelled order expiry")
	}
}

// Pending returns the number of armed timers.
func (s *ExpiryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms all pending timers. The scheduler accepts no further
// Schedule calls afterwards.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for orderID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, orderID)
	}
}

func (s *ExpiryScheduler) fire(orderID uint) {
	s.mu.Lock()
	if _, ok := s.timers[orderID]; !ok {
		// Cancelled between the timer firing and this goroutine running.
		s.mu.Unlock()
		return
	}
	delete(s.timers, orderID)
	s.mu.Unlock()

	s.log.WithField("orderId", orderID).Info("order expiry fired")
	s.expire(orderID)
}
