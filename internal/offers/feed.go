// Package offers presents incoming trip offers to a driver. Offers queue in
// arrival order and at most one is visible at a time. Assigned offers carry
// a countdown that auto-starts the trip exactly once when it expires.
package offers

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

// ErrAssignedOffer is returned when ignoring an assigned offer; those only
// leave the feed through accept or auto-start.
var ErrAssignedOffer = errors.New("assigned offers cannot be ignored")

// ErrNoOffer is returned for actions on an id that is not pending.
var ErrNoOffer = errors.New("no such pending offer")

// Action distinguishes how an offer left the feed.
type Action string

const (
	ActionAccepted  Action = "accepted"
	ActionIgnored   Action = "ignored"
	ActionAutoStart Action = "auto_start"
)

// Listener is notified when an offer leaves the feed.
type Listener func(offer domain.Offer, action Action)

// Feed is the driver-side offer queue.
type Feed struct {
	tick     time.Duration
	listener Listener

	mu       sync.Mutex
	pending  []domain.Offer
	visible  *domain.Offer
	remain   int
	timer    *time.Timer
	timerGen int // bumped on every terminal action so a stale tick cannot fire
	closed   bool
	inflight sync.WaitGroup // listener calls outside the lock
}

// New creates a Feed that decrements assigned-offer countdowns once per tick.
// A zero tick means one second.
func New(tick time.Duration, listener Listener) *Feed {
	if tick <= 0 {
		tick = time.Second
	}
	return &Feed{tick: tick, listener: listener}
}

// Push enqueues an offer. If nothing is visible it becomes visible
// immediately; otherwise it waits its turn in FIFO order.
func (f *Feed) Push(offer domain.Offer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.pending = append(f.pending, offer)
	if f.visible == nil {
		f.promoteLocked()
	}
}

// Visible returns the currently displayed offer, if any, and the remaining
// countdown seconds for assigned offers.
func (f *Feed) Visible() (*domain.Offer, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visible == nil {
		return nil, 0
	}
	v := *f.visible
	return &v, f.remain
}

// Pending returns the number of queued offers, visible one included.
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Accept removes the offer and cancels its countdown.
func (f *Feed) Accept(id string) error {
	return f.finish(id, ActionAccepted, true)
}

// Ignore dismisses an available offer. Assigned offers refuse dismissal.
func (f *Feed) Ignore(id string) error {
	return f.finish(id, ActionIgnored, false)
}

// Close cancels any running countdown, drops the queue and waits for any
// in-flight listener call to return; no listener fires after Close returns.
// Listeners must not call Close.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.cancelTimerLocked()
	f.pending = nil
	f.visible = nil
	f.mu.Unlock()

	f.inflight.Wait()
}

func (f *Feed) finish(id string, action Action, allowAssigned bool) error {
	f.mu.Lock()
	idx := -1
	for i, o := range f.pending {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		f.mu.Unlock()
		return ErrNoOffer
	}
	offer := f.pending[idx]
	if offer.Kind == domain.OfferAssigned && !allowAssigned {
		f.mu.Unlock()
		return ErrAssignedOffer
	}

	f.pending = append(f.pending[:idx], f.pending[idx+1:]...)
	if f.visible != nil && f.visible.ID == id {
		f.cancelTimerLocked()
		f.visible = nil
		f.promoteLocked()
	}
	listener := f.listener
	f.inflight.Add(1)
	f.mu.Unlock()

	if listener != nil {
		listener(offer, action)
	}
	f.inflight.Done()
	return nil
}

// promoteLocked makes the head of the queue visible and arms the countdown
// for assigned offers. Callers hold f.mu.
func (f *Feed) promoteLocked() {
	if len(f.pending) == 0 {
		return
	}
	head := f.pending[0]
	f.visible = &head
	f.remain = 0

	if head.Kind == domain.OfferAssigned {
		f.remain = head.Countdown
		if f.remain <= 0 {
			f.remain = 30
		}
		f.timerGen++
		gen := f.timerGen
		f.timer = time.AfterFunc(f.tick, func() { f.onTick(gen) })
	}
}

// onTick decrements the visible assigned offer's countdown. Reaching zero
// fires the auto-start path exactly once.
func (f *Feed) onTick(gen int) {
	f.mu.Lock()
	if f.closed || gen != f.timerGen || f.visible == nil {
		f.mu.Unlock()
		return
	}
	f.remain--
	if f.remain > 0 {
		f.timer = time.AfterFunc(f.tick, func() { f.onTick(gen) })
		f.mu.Unlock()
		return
	}

	offer := *f.visible
	f.cancelTimerLocked()
	f.visible = nil
	for i, o := range f.pending {
		if o.ID == offer.ID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	f.promoteLocked()
	listener := f.listener
	f.inflight.Add(1)
	f.mu.Unlock()

	log.Printf("Offer %s countdown expired, auto-starting trip", offer.ID)
	if listener != nil {
		listener(offer, ActionAutoStart)
	}
	f.inflight.Done()
}

// cancelTimerLocked stops the countdown and invalidates in-flight ticks.
// Callers hold f.mu.
func (f *Feed) cancelTimerLocked() {
	f.timerGen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.remain = 0
}
