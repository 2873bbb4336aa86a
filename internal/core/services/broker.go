package services

import (
	"sync"

	"github.com/tubesum/backend/internal/domain"
)

const subscriberBuffer = 32

type subscription struct {
	events chan domain.TaskEvent
	done   chan struct{}
	once   sync.Once
}

func newSubscription(buffer int) *subscription {
	return &subscription{
		events: make(chan domain.TaskEvent, buffer),
		done:   make(chan struct{}),
	}
}

func (s *subscription) Events() <-chan domain.TaskEvent { return s.events }

// Close detaches the subscriber. Pending events are dropped.
func (s *subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// replay returns a finished subscription carrying only the given events.
func replay(events ...domain.TaskEvent) *subscription {
	s := newSubscription(len(events))
	for _, ev := range events {
		s.events <- ev
	}
	close(s.events)
	return s
}

// eventBroker fans task events out to subscribers while a task runs.
// publish and finish for one task are only called from that task's run.
type eventBroker struct {
	mu     sync.Mutex
	topics map[string][]*subscription
}

func newEventBroker() *eventBroker {
	return &eventBroker{topics: make(map[string][]*subscription)}
}

// open marks a task as live so subscribers can attach.
func (b *eventBroker) open(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[taskID]; !ok {
		b.topics[taskID] = nil
	}
}

// subscribe attaches to a live task. ok is false when the task is not live.
func (b *eventBroker) subscribe(taskID string) (*subscription, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[taskID]
	if !ok {
		return nil, false
	}
	s := newSubscription(subscriberBuffer)
	b.topics[taskID] = append(subs, s)
	return s, true
}

// publish delivers ev to every attached subscriber, waiting for slow ones
// until they close.
func (b *eventBroker) publish(ev domain.TaskEvent) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.topics[ev.TaskID()]...)
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.events <- ev:
		case <-s.done:
		}
	}
}

// finish ends the task's stream and releases its subscribers.
func (b *eventBroker) finish(taskID string) {
	b.mu.Lock()
	subs := b.topics[taskID]
	delete(b.topics, taskID)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.events)
	}
}
