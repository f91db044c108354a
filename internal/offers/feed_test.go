package offers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

type recorder struct {
	mu      sync.Mutex
	actions []Action
	ids     []string
}

func (r *recorder) listen(offer domain.Offer, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	r.ids = append(r.ids, offer.ID)
}

func (r *recorder) snapshot() ([]string, []Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append([]string(nil), r.ids...)
	actions := append([]Action(nil), r.actions...)
	return ids, actions
}

func available(id string) domain.Offer {
	return domain.Offer{ID: id, Kind: domain.OfferAvailable, From: "A", To: "B", Fare: 1000}
}

func assigned(id string, countdown int) domain.Offer {
	return domain.Offer{ID: id, Kind: domain.OfferAssigned, From: "A", To: "B", Fare: 1000, Countdown: countdown}
}

func TestSingleVisibleFIFO(t *testing.T) {
	rec := &recorder{}
	f := New(time.Hour, rec.listen)
	defer f.Close()

	f.Push(available("o1"))
	f.Push(available("o2"))
	f.Push(available("o3"))

	v, _ := f.Visible()
	if v == nil || v.ID != "o1" {
		t.Fatalf("expected o1 visible, got %+v", v)
	}
	assert.Equal(t, 3, f.Pending())

	if err := f.Accept("o1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	v, _ = f.Visible()
	if v == nil || v.ID != "o2" {
		t.Fatalf("expected o2 promoted, got %+v", v)
	}

	if err := f.Ignore("o2"); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	v, _ = f.Visible()
	if v == nil || v.ID != "o3" {
		t.Fatalf("expected o3 promoted, got %+v", v)
	}

	ids, actions := rec.snapshot()
	assert.Equal(t, []string{"o1", "o2"}, ids)
	assert.Equal(t, []Action{ActionAccepted, ActionIgnored}, actions)
}

func TestAssignedCannotBeIgnored(t *testing.T) {
	f := New(time.Hour, nil)
	defer f.Close()

	f.Push(assigned("a1", 30))
	assert.ErrorIs(t, f.Ignore("a1"), ErrAssignedOffer)

	// Accept is a valid terminal action.
	assert.NoError(t, f.Accept("a1"))
	v, _ := f.Visible()
	assert.Nil(t, v)
}

func TestCountdownAutoStartsExactlyOnce(t *testing.T) {
	rec := &recorder{}
	f := New(2*time.Millisecond, rec.listen)
	defer f.Close()

	f.Push(assigned("a1", 5))

	// Wait for well over 5 ticks, then a while longer: the auto-start must
	// fire once and only once.
	deadline := time.Now().Add(time.Second)
	for {
		_, actions := rec.snapshot()
		if len(actions) > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	ids, actions := rec.snapshot()
	if len(actions) != 1 {
		t.Fatalf("expected exactly one action, got %v", actions)
	}
	assert.Equal(t, ActionAutoStart, actions[0])
	assert.Equal(t, "a1", ids[0])
	assert.Equal(t, 0, f.Pending())
}

func TestAcceptCancelsCountdown(t *testing.T) {
	rec := &recorder{}
	f := New(5*time.Millisecond, rec.listen)
	defer f.Close()

	f.Push(assigned("a1", 3))
	if err := f.Accept("a1"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Past the original expiry: no stray auto-start may fire.
	time.Sleep(60 * time.Millisecond)

	_, actions := rec.snapshot()
	assert.Equal(t, []Action{ActionAccepted}, actions)
}

func TestCloseCancelsCountdown(t *testing.T) {
	rec := &recorder{}
	f := New(5*time.Millisecond, rec.listen)

	f.Push(assigned("a1", 2))
	f.Close()

	time.Sleep(40 * time.Millisecond)

	_, actions := rec.snapshot()
	assert.Empty(t, actions)
}

func TestCloseWaitsForInFlightListener(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := New(time.Millisecond, func(offer domain.Offer, action Action) {
		close(entered)
		<-release
	})

	f.Push(assigned("a1", 1))

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("auto-start never fired")
	}

	closed := make(chan struct{})
	go func() {
		f.Close()
		close(closed)
	}()

	// The auto-start listener is still running; Close must not return yet.
	select {
	case <-closed:
		t.Fatal("Close returned while a listener call was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close never returned after the listener finished")
	}
}

func TestCountdownContinuesIntoNextAssigned(t *testing.T) {
	rec := &recorder{}
	f := New(2*time.Millisecond, rec.listen)
	defer f.Close()

	f.Push(assigned("a1", 2))
	f.Push(assigned("a2", 2))

	deadline := time.Now().Add(time.Second)
	for {
		_, actions := rec.snapshot()
		if len(actions) == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	ids, actions := rec.snapshot()
	if len(actions) != 2 {
		t.Fatalf("expected both assigned offers to auto-start, got %v", actions)
	}
	assert.Equal(t, []string{"a1", "a2"}, ids)
	assert.Equal(t, []Action{ActionAutoStart, ActionAutoStart}, actions)
}

func TestUnknownOffer(t *testing.T) {
	f := New(time.Hour, nil)
	defer f.Close()

	assert.ErrorIs(t, f.Accept("nope"), ErrNoOffer)
	assert.ErrorIs(t, f.Ignore("nope"), ErrNoOffer)
}
