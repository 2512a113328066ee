// Package task declares namespaced tasks, composes them with before/after
// hooks and runs them through the continuation sequencer.
package task

import (
	"sync"

	"github.com/duke-git/lancet/v2/maputil"
	"go.uber.org/zap"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
)

// Done 续延回调，每个步骤完成时调用一次，多余的调用被忽略
type Done func()

// Func 任务动作或函数步骤
type Func func(s *Scope, done Done)

type taskEntry struct {
	info   *types.TaskInfo
	action Func
}

// Registry 管理任务的声明和查找。
type Registry struct {
	tasks   map[string]*taskEntry
	order   []string
	ns      namespaceStack
	desc    string
	hasDesc bool
	hooks   *Hooks
	bus     *event.Bus
	mu      sync.Mutex
}

// NewRegistry 创建一个新的任务注册表。bus 可以为 nil。
func NewRegistry(bus *event.Bus) *Registry {
	return &Registry{
		tasks: make(map[string]*taskEntry),
		hooks: NewHooks(),
		bus:   bus,
	}
}

// Hooks 返回注册表的钩子集合
func (r *Registry) Hooks() *Hooks {
	return r.hooks
}

// Desc 设置下一个任务的描述，只被紧随其后的 Task 使用一次
func (r *Registry) Desc(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.desc = text
	r.hasDesc = true
}

// Task 在当前命名空间下注册任务。重复声明会静默替换原有任务，
// 但保留其在列表中的位置。
func (r *Registry) Task(name string, options map[string]any, action Func) (*types.TaskInfo, error) {
	if name == "" {
		return nil, NewConfigError("task name should be a non-empty string")
	}
	if action == nil {
		return nil, NewConfigError(`task "` + name + `" has no action`)
	}

	r.mu.Lock()
	info := types.NewTaskInfo(r.ns.path(), name)
	if options != nil {
		info.Options = maputil.Merge(info.Options, options)
	}
	if r.hasDesc {
		info.Description = r.desc
		r.desc, r.hasDesc = "", false
	}
	if _, exists := r.tasks[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	} else {
		logger.Debug("task redeclared", zap.String("task", info.Name))
	}
	r.tasks[info.Name] = &taskEntry{info: info, action: action}
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Emit(types.Event{Name: types.EventTaskDeclaration, Task: info})
	}
	return info, nil
}

// Lookup 按完整名称精确查找任务
func (r *Registry) Lookup(name string) (*types.TaskInfo, bool) {
	entry := r.get(name)
	if entry == nil {
		return nil, false
	}
	return entry.info, true
}

// Has 检查名称是否能解析到任务
func (r *Registry) Has(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// Resolve 先查找 name，再查找 name:default
func (r *Registry) Resolve(name string) (*types.TaskInfo, bool) {
	if info, ok := r.Lookup(name); ok {
		return info, true
	}
	return r.Lookup(types.JoinName(name, types.DefaultTaskName))
}

// Tasks 按声明顺序返回所有任务
func (r *Registry) Tasks() []*types.TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]*types.TaskInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tasks[name].info)
	}
	return infos
}

func (r *Registry) get(name string) *taskEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[name]
}

// resolveRef 按调用者命名空间、绝对名称、name:default 的顺序解析步骤引用
func (r *Registry) resolveRef(ns, ref string) *taskEntry {
	candidates := make([]string, 0, 3)
	if ns != "" {
		candidates = append(candidates, types.JoinName(ns, ref))
	}
	candidates = append(candidates, ref, types.JoinName(ref, types.DefaultTaskName))
	for _, name := range candidates {
		if entry := r.get(name); entry != nil {
			return entry
		}
	}
	return nil
}
