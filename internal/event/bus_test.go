package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_SubscribeDeliversInOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []string
	unsub := bus.Subscribe("s1", func(e Event) {
		got = append(got, e.Text)
	})
	defer unsub()

	bus.Publish(Event{Type: OutputChunk, SessionID: "s1", Text: "a"})
	bus.Publish(Event{Type: OutputChunk, SessionID: "s1", Text: "b"})
	bus.Publish(Event{Type: TurnCompleted, SessionID: "s1", Text: "done"})

	assert.Equal(t, []string{"a", "b", "done"}, got)
}

func TestBus_SessionIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var s1, s2 int
	defer bus.Subscribe("s1", func(Event) { s1++ })()
	defer bus.Subscribe("s2", func(Event) { s2++ })()

	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})
	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})
	bus.Publish(Event{Type: OutputLine, SessionID: "s2"})

	assert.Equal(t, 2, s1)
	assert.Equal(t, 1, s2)
}

func TestBus_MultipleSubscribersPerSession(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var a, b int
	defer bus.Subscribe("s1", func(Event) { a++ })()
	defer bus.Subscribe("s1", func(Event) { b++ })()

	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	unsub := bus.Subscribe("s1", func(Event) { count++ })

	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})
	unsub()
	unsub() // second call is a no-op
	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})

	assert.Equal(t, 1, count)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var seen []string
	defer bus.SubscribeAll(func(e Event) { seen = append(seen, e.SessionID) })()

	bus.Publish(Event{Type: SessionCreated, SessionID: "s1"})
	bus.Publish(Event{Type: SessionDeleted, SessionID: "s2"})

	assert.Equal(t, []string{"s1", "s2"}, seen)
}

func TestBus_DropSession(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	bus.Subscribe("s1", func(Event) { count++ })

	bus.DropSession("s1")
	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})

	assert.Zero(t, count)
}

func TestBus_CloseDropsPublishes(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe("s1", func(Event) { count++ })

	assert.NoError(t, bus.Close())
	assert.NoError(t, bus.Close())
	bus.Publish(Event{Type: OutputLine, SessionID: "s1"})

	assert.Zero(t, count)
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var count int
	defer bus.Subscribe("s1", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: OutputChunk, SessionID: "s1"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, count)
}
