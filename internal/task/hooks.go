package task

import (
	"sync"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/1602/roco/pkg/types"
)

// HookType distinguishes steps run before and after a task action.
type HookType string

const (
	HookBefore HookType = "before"
	HookAfter  HookType = "after"
)

// Step is one unit of a sequence: either a function or a reference to a
// task resolved when the step runs.
type Step struct {
	Ref string
	Fn  Func
}

// Ref returns a step invoking the task called name.
func Ref(name string) Step {
	return Step{Ref: name}
}

// Fn returns a function step.
func Fn(f Func) Step {
	return Step{Fn: f}
}

// Then returns a function step that runs f and completes immediately.
func Then(f func(s *Scope)) Step {
	if f == nil {
		return Step{}
	}
	return Step{Fn: func(s *Scope, done Done) {
		f(s)
		done()
	}}
}

// IsZero reports whether the step does nothing.
func (s Step) IsZero() bool {
	return s.Fn == nil && s.Ref == ""
}

// hookEntry is a step tagged with its declaration order across all names.
type hookEntry struct {
	seq  uint64
	step Step
}

// Hooks holds the before and after steps per task name. Lists only grow and
// are never deduplicated.
type Hooks struct {
	before map[string][]hookEntry
	after  map[string][]hookEntry
	seq    uint64
	mu     sync.RWMutex
}

// NewHooks creates an empty hook set.
func NewHooks() *Hooks {
	return &Hooks{
		before: make(map[string][]hookEntry),
		after:  make(map[string][]hookEntry),
	}
}

// Add appends step to the hooks of the given type for task name.
func (h *Hooks) Add(hookType HookType, name string, step Step) error {
	if name == "" {
		return NewConfigError("hook task name should be a non-empty string")
	}
	if step.IsZero() {
		return NewConfigError(`empty ` + string(hookType) + ` hook for "` + name + `"`)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var m map[string][]hookEntry
	switch hookType {
	case HookBefore:
		m = h.before
	case HookAfter:
		m = h.after
	default:
		return NewConfigError("unknown hook type " + string(hookType))
	}
	h.seq++
	m[name] = append(m[name], hookEntry{seq: h.seq, step: step})
	return nil
}

// Before appends a step run before task name.
func (h *Hooks) Before(name string, step Step) error {
	return h.Add(HookBefore, name, step)
}

// After appends a step run after task name.
func (h *Hooks) After(name string, step Step) error {
	return h.Add(HookAfter, name, step)
}

// Get returns a copy of the hooks registered for name.
func (h *Hooks) Get(hookType HookType, name string) []Step {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slice.Map(h.entries(hookType, name), func(_ int, e hookEntry) Step { return e.step })
}

func (h *Hooks) entries(hookType HookType, name string) []hookEntry {
	if hookType == HookBefore {
		return h.before[name]
	}
	return h.after[name]
}

// lookup merges the hooks registered under the qualified name and under
// the display name in declaration order.
func (h *Hooks) lookup(hookType HookType, info *types.TaskInfo) []Step {
	h.mu.RLock()
	defer h.mu.RUnlock()
	qualified := h.entries(hookType, info.Name)
	var display []hookEntry
	if info.DisplayName != info.Name {
		display = h.entries(hookType, info.DisplayName)
	}

	steps := make([]Step, 0, len(qualified)+len(display))
	i, j := 0, 0
	for i < len(qualified) || j < len(display) {
		if j == len(display) || (i < len(qualified) && qualified[i].seq < display[j].seq) {
			steps = append(steps, qualified[i].step)
			i++
		} else {
			steps = append(steps, display[j].step)
			j++
		}
	}
	return steps
}

// Wrap returns the sequence executed for a task: before hooks, the action,
// after hooks. Empty steps are dropped.
func (h *Hooks) Wrap(info *types.TaskInfo, action Func) []Step {
	steps := h.lookup(HookBefore, info)
	steps = append(steps, Fn(action))
	steps = append(steps, h.lookup(HookAfter, info)...)
	return slice.Filter(steps, func(_ int, s Step) bool {
		return !s.IsZero()
	})
}

// Before appends a step run before task name.
func (r *Registry) Before(name string, step Step) error {
	return r.hooks.Before(name, step)
}

// After appends a step run after task name.
func (r *Registry) After(name string, step Step) error {
	return r.hooks.After(name, step)
}
