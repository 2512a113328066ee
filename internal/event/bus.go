// Package event is the synchronous event bus between the execution core and
// its observers (console reporter, task listing, tests).
package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
)

// Handler receives an event. Handlers run on the emitting goroutine and
// must not block for long: remote dispatch emits output chunks from one
// goroutine per host.
type Handler func(ev types.Event)

type subscription struct {
	id      uint64
	name    string // empty matches every event
	handler Handler
}

// Bus delivers events to handlers in subscription order.
type Bus struct {
	subs   []subscription
	nextID uint64
	mu     sync.RWMutex
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// On subscribes h to events called name and returns a function removing
// the subscription.
func (b *Bus) On(name string, h Handler) func() {
	return b.subscribe(name, h)
}

// OnAny subscribes h to every event.
func (b *Bus) OnAny(h Handler) func() {
	return b.subscribe("", h)
}

func (b *Bus) subscribe(name string, h Handler) func() {
	if h == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: h})
	return func() { b.remove(id) }
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers ev synchronously. A panicking handler is logged and does
// not prevent delivery to the remaining handlers.
func (b *Bus) Emit(ev types.Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == "" || s.name == ev.Name {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscription, ev types.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panic",
				zap.String("event", ev.Name),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.handler(ev)
}

// Count returns the number of subscriptions for name, including catch-all ones.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s.name == "" || s.name == name {
			n++
		}
	}
	return n
}
