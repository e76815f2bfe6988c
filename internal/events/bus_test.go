package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversOnlyToSameClient(t *testing.T) {
	bus := NewBus()
	tabA, cancelA := bus.Subscribe("client-1")
	defer cancelA()
	tabB, cancelB := bus.Subscribe("client-1")
	defer cancelB()
	other, cancelOther := bus.Subscribe("client-2")
	defer cancelOther()

	bus.Publish("client-1", ProfileUpdated("buyer", map[string]string{"name": "Ann"}))

	for _, ch := range []<-chan Event{tabA, tabB} {
		select {
		case ev := <-ch:
			assert.Equal(t, KindProfileUpdated, ev.Kind)
			assert.Equal(t, "buyer", ev.Role)
			assert.JSONEq(t, `{"name":"Ann"}`, string(ev.User))
		default:
			t.Fatal("expected event for client-1 tab")
		}
	}
	select {
	case <-other:
		t.Fatal("client-2 must not see client-1 events")
	default:
	}
}

func TestBus_CancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("c")
	require.Equal(t, 1, bus.Subscribers("c"))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.Subscribers("c"))

	bus.Publish("c", Notice("info", "nobody listening"))
}

func TestBus_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe("c")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish("c", Notice("info", "tick"))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestProfileUpdated_NilUser(t *testing.T) {
	ev := ProfileUpdated("seller", nil)
	assert.Equal(t, "null", string(ev.User))
}
