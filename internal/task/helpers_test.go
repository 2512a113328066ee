package task

import (
	"sync"
	"testing"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/internal/executor"
	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/pkg/types"
)

// trace records step labels from any goroutine.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(label string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.steps = append(tr.steps, label)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

// mark returns an action recording label and completing immediately.
func (tr *trace) mark(label string) Func {
	return func(_ *Scope, done Done) {
		tr.add(label)
		done()
	}
}

func newTestRuntime(t *testing.T) (*Runtime, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	table := executor.NewProcessTable()
	rt := &Runtime{
		Registry: NewRegistry(bus),
		State:    state.New(),
		Local:    executor.NewLocal(executor.Options{Bus: bus, Table: table}),
		Remote: executor.NewRemote(executor.Options{
			Bus:       bus,
			Table:     table,
			Transport: &executor.ShellTransport{},
		}),
		Bus: bus,
	}
	return rt, bus
}

func collectEvents(bus *event.Bus, name string) *[]types.Event {
	var mu sync.Mutex
	events := &[]types.Event{}
	bus.On(name, func(ev types.Event) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, ev)
	})
	return events
}
