package service

import (
	"log"
	"sync"
	"time"

	"github.com/emobox/emobox-api/internal/model"
	"github.com/google/uuid"
)

// Scheduler arms one in-process timer per scheduled message and fires the
// dispatcher when it elapses. Timers are volatile: Recover rebuilds them
// from the store on every startup, so a restart never loses an alarm.
type Scheduler struct {
	store    MessageStore
	delivery Delivery

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	// overridable clock for tests
	now func() time.Time
}

// NewScheduler creates a scheduler over a store and delivery channel
func NewScheduler(store MessageStore, delivery Delivery) *Scheduler {
	return &Scheduler{
		store:    store,
		delivery: delivery,
		timers:   make(map[uuid.UUID]*time.Timer),
		now:      time.Now,
	}
}

// Arm registers a one-shot timer for a scheduled message. Messages already
// due fire immediately.
func (s *Scheduler) Arm(msg *model.Message) {
	if msg.Kind != model.MessageKindScheduled || msg.TriggerAt == nil {
		return
	}

	delay := msg.TriggerAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	id := msg.ID
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-arming replaces any previous timer for the same message
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() {
		s.fire(id)
	})
}

// Cancel disarms a message's timer. Safe to call concurrently with the
// timer's own fire callback: the store claim guarantees the downstream
// effect happens exactly once or not at all.
func (s *Scheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// fire claims the pending -> dispatched transition and, if this process won
// the claim, hands the message to the dispatcher. A lost claim means the
// message was already dispatched (racing timer, concurrent instance, or a
// delete that removed the row).
func (s *Scheduler) fire(id uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	claimed, err := s.store.MarkDispatched(id)
	if err != nil {
		log.Printf("⚠️  Scheduler: failed to claim message %s: %v", id, err)
		return
	}
	if !claimed {
		return
	}

	msg, err := s.store.FindByID(id)
	if err != nil {
		log.Printf("⚠️  Scheduler: message %s vanished after claim: %v", id, err)
		return
	}

	log.Printf("⏰ Alarm due: %s (%s)", msg.Title, msg.ID)
	s.delivery.Dispatch(msg)
}

// Recover rebuilds timers from the store on startup. Alarms whose trigger
// passed while the process was down are fired immediately, at most once
// each; future ones are re-armed.
func (s *Scheduler) Recover() error {
	pending, err := s.store.PendingScheduled()
	if err != nil {
		return err
	}

	now := s.now()
	caughtUp := 0
	for i := range pending {
		msg := pending[i]
		if msg.TriggerAt == nil {
			continue
		}
		if msg.TriggerAt.After(now) {
			s.Arm(&msg)
		} else {
			go s.fire(msg.ID)
			caughtUp++
		}
	}

	log.Printf("🔁 Scheduler recovered %d pending alarm(s), %d overdue fired as catch-up", len(pending), caughtUp)
	return nil
}

// Stop disarms every timer (process shutdown)
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// ArmedCount reports how many timers are currently armed
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
