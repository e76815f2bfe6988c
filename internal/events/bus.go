// Package events is the in-process publish/subscribe channel that carries
// session and storage changes to every open tab of a client.
package events

import (
	"encoding/json"
	"sync"
)

// Kind names an event type.
type Kind string

const (
	KindProfileUpdated Kind = "profileUpdated"
	KindStorage        Kind = "storage"
	KindReload         Kind = "reload"
	KindNotice         Kind = "notice"
)

// Event is delivered to subscribers of one client. Only the fields that
// belong to the Kind are set.
type Event struct {
	Kind     Kind            `json:"kind"`
	Role     string          `json:"role,omitempty"`
	User     json.RawMessage `json:"user,omitempty"`
	Key      string          `json:"key,omitempty"`
	NewValue *string         `json:"newValue,omitempty"`
	Level    string          `json:"level,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// ProfileUpdated builds the profileUpdated event. A nil user marshals as null.
func ProfileUpdated(role string, user any) Event {
	raw, err := json.Marshal(user)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Event{Kind: KindProfileUpdated, Role: role, User: raw}
}

// Notice builds a user-facing message event.
func Notice(level, message string) Event {
	return Event{Kind: KindNotice, Level: level, Message: message}
}

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(clientID string, ev Event)
}

const subscriberBuffer = 16

// Bus fans events out to the subscribers of each client. Delivery is
// fire-and-forget: a subscriber with a full buffer misses the event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers a listener for clientID. The returned cancel func
// unregisters it and closes the channel.
func (b *Bus) Subscribe(clientID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[clientID] == nil {
		b.subs[clientID] = make(map[int]chan Event)
	}
	b.subs[clientID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[clientID], id)
			if len(b.subs[clientID]) == 0 {
				delete(b.subs, clientID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber of clientID.
func (b *Bus) Publish(clientID string, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[clientID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many listeners clientID has.
func (b *Bus) Subscribers(clientID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[clientID])
}

// Recorder is a Publisher that keeps everything it receives. Tests use it
// to assert on broadcasts.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Publish(_ string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(k Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.Events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}
