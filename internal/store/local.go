package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"petit-storefront/internal/events"
)

// Local is one client's view of storage, the server-side stand-in for a
// browser's localStorage. Every operation is best-effort: failures are
// logged and swallowed, and a read that fails looks like a missing key.
type Local struct {
	store    ClientStorer
	clientID string
	pub      events.Publisher
}

// NewLocal binds a store to a client. pub may be nil.
func NewLocal(s ClientStorer, clientID string, pub events.Publisher) *Local {
	return &Local{store: s, clientID: clientID, pub: pub}
}

// ClientID returns the bound client id.
func (l *Local) ClientID() string { return l.clientID }

// Publish forwards ev to the client's subscribers.
func (l *Local) Publish(ev events.Event) {
	if l.pub != nil {
		l.pub.Publish(l.clientID, ev)
	}
}

// Update runs fn while holding the client's write lock. Read-modify-write
// sequences on a client's keys go through it, since every tab of a browser
// shares one client. fn must not call Update for the same client.
func (l *Local) Update(fn func()) {
	unlock := lockClient(l.clientID)
	defer unlock()
	fn()
}

// GetString returns the raw value under key.
func (l *Local) GetString(ctx context.Context, key string) (string, bool) {
	v, err := l.store.GetValue(ctx, l.clientID, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			log.Printf("WARN: storage read %q for client %s failed: %v", key, l.clientID, err)
		}
		return "", false
	}
	return v, true
}

// SetString stores value under key.
func (l *Local) SetString(ctx context.Context, key, value string) {
	if err := l.store.SetValue(ctx, l.clientID, key, value); err != nil {
		log.Printf("WARN: storage write %q for client %s failed: %v", key, l.clientID, err)
		return
	}
	l.notify(key, &value)
}

// GetJSON decodes the value under key into v. It reports false when the
// key is missing or does not parse.
func (l *Local) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := l.GetString(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Printf("WARN: storage value %q for client %s is not valid JSON: %v", key, l.clientID, err)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under key.
func (l *Local) SetJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: storage value %q for client %s could not be encoded: %v", key, l.clientID, err)
		return
	}
	l.SetString(ctx, key, string(raw))
}

// Has reports whether key holds a value.
func (l *Local) Has(ctx context.Context, key string) bool {
	_, ok := l.GetString(ctx, key)
	return ok
}

// Remove deletes key.
func (l *Local) Remove(ctx context.Context, key string) {
	if err := l.store.DeleteValue(ctx, l.clientID, key); err != nil {
		log.Printf("WARN: storage delete %q for client %s failed: %v", key, l.clientID, err)
		return
	}
	l.notify(key, nil)
}

// notify mirrors session key changes to the client's other tabs, the way
// native storage events do.
func (l *Local) notify(key string, newValue *string) {
	if !isSessionKey(key) {
		return
	}
	l.Publish(events.Event{Kind: events.KindStorage, Key: key, NewValue: newValue})
}

func isSessionKey(key string) bool {
	return strings.HasSuffix(key, "_token") || strings.HasSuffix(key, "_user")
}
