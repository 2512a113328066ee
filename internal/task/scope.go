package task

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/internal/executor"
	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
)

// Runtime bundles what task actions reach through their scope.
type Runtime struct {
	Registry *Registry
	State    *state.ExecutionContext
	Local    *executor.Local
	Remote   *executor.Remote
	Bus      *event.Bus
}

func (rt *Runtime) emit(ev types.Event) {
	if rt.Bus != nil {
		rt.Bus.Emit(ev)
	}
}

// Invoke runs task name and blocks until its continuation fires. A failed
// strict dispatch, an Abort or an unresolved reference anywhere in the
// invocation cancels it, and the cause is returned.
func (rt *Runtime) Invoke(ctx context.Context, name string) error {
	root, cancel := NewScope(ctx, rt)
	defer cancel(nil)
	return Sequence(root, []Step{Ref(name)}, nil)
}

// Scope is the view a running task action has of the runner. Scopes of one
// invocation share its context and the execution context.
type Scope struct {
	rt     *Runtime
	ctx    context.Context
	cancel context.CancelCauseFunc
	task   *types.TaskInfo
}

// NewScope returns a root scope bound to ctx. The returned cancel function
// must be called once the scope is no longer used.
func NewScope(ctx context.Context, rt *Runtime) (*Scope, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(ctx)
	return &Scope{rt: rt, ctx: ctx, cancel: cancel}, cancel
}

func (s *Scope) child(info *types.TaskInfo) *Scope {
	return &Scope{rt: s.rt, ctx: s.ctx, cancel: s.cancel, task: info}
}

// Context returns the invocation context.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Task returns the running task, nil for a root scope.
func (s *Scope) Task() *types.TaskInfo {
	return s.task
}

// Namespace returns the namespace of the running task.
func (s *Scope) Namespace() string {
	if s.task == nil {
		return ""
	}
	return s.task.Namespace
}

// Vars returns the execution context.
func (s *Scope) Vars() *state.ExecutionContext {
	return s.rt.State
}

// Get returns the value of key, resolving lazy values.
func (s *Scope) Get(key string) any {
	v, _ := s.rt.State.Get(key)
	return v
}

// GetString returns the value of key formatted as a string.
func (s *Scope) GetString(key string) string {
	return s.rt.State.GetString(key)
}

// Set installs key, overwriting any previous value.
func (s *Scope) Set(key string, v any) {
	s.rt.State.Set(key, v)
}

// Ensure installs key only if it is absent.
func (s *Scope) Ensure(key string, v any) {
	s.rt.State.Ensure(key, v)
}

// Fail cancels the invocation with err as the cause. Only the first cause
// is kept.
func (s *Scope) Fail(err error) {
	if err == nil {
		return
	}
	logger.Debug("invocation failed", zap.String("task", s.taskName()), zap.Error(err))
	s.cancel(err)
}

// Err returns the cause of the invocation failure, nil while it is live.
func (s *Scope) Err() error {
	return context.Cause(s.ctx)
}

// Run runs command as given on every host of the execution context.
// cb receives the per-host results in host order. On failure cb is not
// called and the invocation is cancelled with the error.
func (s *Scope) Run(command string, cb func([]types.HostResult)) error {
	meta, err := s.rt.Remote.Run(s.ctx, s.rt.State.Hosts(), command)
	if err != nil {
		s.Fail(err)
		return err
	}
	if cb != nil {
		cb(meta.Results)
	}
	return nil
}

// LocalRun runs command as given on the controller. cb receives the
// collected stdout. On failure cb is not called and the invocation is
// cancelled with the error.
func (s *Scope) LocalRun(command string, cb func(output string)) error {
	meta, err := s.rt.Local.Run(s.ctx, command)
	if err != nil {
		s.Fail(err)
		return err
	}
	if cb != nil {
		cb(meta.Output)
	}
	return nil
}

// Sequence runs steps in order from this scope and blocks until the last
// one completes.
func (s *Scope) Sequence(steps ...Step) error {
	err := Sequence(s, steps, nil)
	if err != nil {
		s.Fail(err)
	}
	return err
}

// Log emits an "info" event.
func (s *Scope) Log(format string, args ...any) {
	s.rt.emit(types.Event{Name: types.EventInfo, Task: s.task, Message: fmt.Sprintf(format, args...)})
}

// Abort cancels the invocation with a formatted error and returns it.
func (s *Scope) Abort(format string, args ...any) error {
	err := NewAbortError(s.taskName(), fmt.Sprintf(format, args...))
	s.Fail(err)
	return err
}

func (s *Scope) taskName() string {
	if s.task == nil {
		return ""
	}
	return s.task.Name
}
