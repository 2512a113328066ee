package task

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
)

// Sequence runs steps strictly in order on behalf of s. Each step gets a
// fresh done; the next step starts only after it fires. Task references
// resolve against the namespace of s, then as absolute names, then as
// name:default. complete, when not nil, runs once after the last step.
//
// A step that never calls done blocks Sequence until the context of s is
// cancelled; the cancellation cause is returned.
func Sequence(s *Scope, steps []Step, complete func()) error {
	ctx := s.Context()
	for i, step := range steps {
		if step.IsZero() {
			continue
		}
		if err := context.Cause(ctx); err != nil {
			return err
		}

		fn := step.Fn
		if fn == nil {
			entry := s.rt.Registry.resolveRef(s.Namespace(), step.Ref)
			if entry == nil {
				return NewUnknownTaskError(step.Ref)
			}
			fn = s.rt.invoker(entry)
		}

		fired := make(chan struct{})
		var once sync.Once
		done := func() {
			once.Do(func() { close(fired) })
		}
		fn(s, done)

		select {
		case <-fired:
		case <-ctx.Done():
			logger.Debug("sequence interrupted",
				zap.String("namespace", s.Namespace()),
				zap.Int("step", i),
			)
			return context.Cause(ctx)
		}
	}

	if err := context.Cause(ctx); err != nil {
		return err
	}
	if complete != nil {
		complete()
	}
	return nil
}

// invoker wraps a registered task into a step: it emits "task call" and
// runs before hooks, the action and after hooks in a child scope. done
// fires after the last after hook.
func (rt *Runtime) invoker(entry *taskEntry) Func {
	return func(parent *Scope, done Done) {
		s := parent.child(entry.info)
		rt.emit(types.Event{Name: types.EventTaskCall, Task: entry.info})

		steps := rt.Registry.Hooks().Wrap(entry.info, entry.action)
		if err := Sequence(s, steps, done); err != nil {
			s.Fail(err)
		}
	}
}
