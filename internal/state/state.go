// Package state holds the execution context shared by every task action of
// one run: the environment, the application name, the target hosts and any
// key installed with Set or Ensure.
package state

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/duke-git/lancet/v2/slice"
)

// Well-known keys.
const (
	KeyEnvironment = "environment"
	KeyEnv         = "env"
	KeyApplication = "application"
	KeyHosts       = "hosts"
)

// DefaultEnvironment is used when nothing selects an environment.
const DefaultEnvironment = "development"

// Lazy is a value computed on first access and memoized afterwards.
type Lazy func() any

type entry struct {
	value any
	lazy  Lazy
	once  sync.Once
}

func newEntry(v any) *entry {
	switch fn := v.(type) {
	case Lazy:
		return &entry{lazy: fn}
	case func() any:
		return &entry{lazy: fn}
	}
	return &entry{value: v}
}

func (e *entry) get() any {
	if e.lazy != nil {
		e.once.Do(func() {
			e.value = e.lazy()
		})
	}
	return e.value
}

// ExecutionContext is a concurrency-safe key/value store. Set overwrites,
// Ensure inserts only when the key is absent. Neither fails.
type ExecutionContext struct {
	values map[string]*entry
	mu     sync.RWMutex
}

// New creates a context seeded with the default environment and application.
func New() *ExecutionContext {
	c := &ExecutionContext{values: make(map[string]*entry)}
	c.Set(KeyEnvironment, DefaultEnvironment)
	c.Set(KeyApplication, "")
	return c
}

// Set stores v under key, replacing any previous value.
func (c *ExecutionContext) Set(key string, v any) {
	e := newEntry(v)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = e
}

// Ensure stores v under key only if key is not defined yet.
func (c *ExecutionContext) Ensure(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return
	}
	c.values[key] = newEntry(v)
}

// Has reports whether key is defined.
func (c *ExecutionContext) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[key]
	return ok
}

// Get returns the value of key, evaluating a lazy value once.
func (c *ExecutionContext) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.values[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.get(), true
}

// GetString returns the value of key formatted as a string, or "".
func (c *ExecutionContext) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Keys returns the defined keys sorted.
func (c *ExecutionContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot evaluates every key into a plain map, used to render commands.
func (c *ExecutionContext) Snapshot() map[string]any {
	keys := c.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, _ := c.Get(k)
		out[k] = v
	}
	return out
}

// Environment returns the selected environment.
func (c *ExecutionContext) Environment() string {
	if env := c.GetString(KeyEnvironment); env != "" {
		return env
	}
	if env := c.GetString(KeyEnv); env != "" {
		return env
	}
	return DefaultEnvironment
}

// SetEnvironment selects the environment under both of its keys.
func (c *ExecutionContext) SetEnvironment(env string) {
	c.Set(KeyEnvironment, env)
	c.Set(KeyEnv, env)
}

// Application returns the application name.
func (c *ExecutionContext) Application() string {
	return c.GetString(KeyApplication)
}

// Hosts returns the target hosts, normalized from a single string (comma
// separated), a string slice or a generic slice.
func (c *ExecutionContext) Hosts() []string {
	v, ok := c.Get(KeyHosts)
	if !ok {
		return nil
	}
	return NormalizeHosts(v)
}

// NormalizeHosts turns the accepted host representations into a list.
func NormalizeHosts(v any) []string {
	var hosts []string
	switch h := v.(type) {
	case nil:
		return nil
	case string:
		hosts = strings.Split(h, ",")
	case []string:
		hosts = append(hosts, h...)
	case []any:
		for _, item := range h {
			hosts = append(hosts, fmt.Sprint(item))
		}
	default:
		hosts = []string{fmt.Sprint(h)}
	}
	hosts = slice.Map(hosts, func(_ int, s string) string { return strings.TrimSpace(s) })
	return slice.Filter(hosts, func(_ int, s string) bool { return s != "" })
}
