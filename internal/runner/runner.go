// Package runner is the façade the CLI drives: it owns the registry, the
// execution context and the executors of one roco process.
package runner

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/internal/executor"
	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/internal/task"
	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
)

// Options configures a Runner. Zero values get defaults.
type Options struct {
	Bus          *event.Bus
	State        *state.ExecutionContext
	Shell        string
	ShellArgs    []string
	Transport    executor.Transport
	GraceTimeout time.Duration
	// Exit terminates the process on Abort, os.Exit by default.
	Exit func(code int)
}

// Runner 运行器，串联任务注册表、执行上下文与执行器
type Runner struct {
	rt        *task.Runtime
	table     *executor.ProcessTable
	exit      func(code int)
	closeOnce sync.Once
}

// New 创建运行器
func New(opts Options) *Runner {
	bus := opts.Bus
	if bus == nil {
		bus = event.NewBus()
	}
	st := opts.State
	if st == nil {
		st = state.New()
	}
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}

	table := executor.NewProcessTable()
	execOpts := executor.Options{
		Bus:          bus,
		Table:        table,
		Shell:        opts.Shell,
		ShellArgs:    opts.ShellArgs,
		Transport:    opts.Transport,
		GraceTimeout: opts.GraceTimeout,
	}

	return &Runner{
		rt: &task.Runtime{
			Registry: task.NewRegistry(bus),
			State:    st,
			Local:    executor.NewLocal(execOpts),
			Remote:   executor.NewRemote(execOpts),
			Bus:      bus,
		},
		table: table,
		exit:  exit,
	}
}

// Runtime 返回任务运行时
func (r *Runner) Runtime() *task.Runtime {
	return r.rt
}

// Registry 返回任务注册表
func (r *Runner) Registry() *task.Registry {
	return r.rt.Registry
}

// State 返回执行上下文
func (r *Runner) State() *state.ExecutionContext {
	return r.rt.State
}

// Bus 返回事件总线
func (r *Runner) Bus() *event.Bus {
	return r.rt.Bus
}

// Perform 执行任务。args 为 [env] task：当第一个参数不是任务且还有第二个
// 参数时，第一个参数作为环境名。任务名找不到时尝试 name:default。
// 阻塞直到任务的续延触发、ctx 结束或严格模式分发失败。
func (r *Runner) Perform(ctx context.Context, args ...string) error {
	if len(args) == 0 || args[0] == "" {
		return task.NewUnknownCommandError("")
	}

	name := args[0]
	if !r.rt.Registry.Has(name) && len(args) > 1 {
		r.rt.State.SetEnvironment(args[0])
		name = args[1]
	}

	info, ok := r.rt.Registry.Resolve(name)
	if !ok {
		return task.NewUnknownCommandError(name)
	}

	env := r.rt.State.Environment()
	logger.Info("performing task", zap.String("task", info.Name), zap.String("environment", env))
	r.rt.Bus.Emit(types.Event{Name: types.EventInfo, Task: info, Message: "running in " + env + " mode"})

	return r.rt.Invoke(ctx, info.Name)
}

// Abort 记录错误、发出 error 事件并以状态码 1 退出
func (r *Runner) Abort(err error) {
	if err != nil {
		logger.Error("aborting", zap.Error(err))
	}
	r.rt.Bus.Emit(types.Event{Name: types.EventError, Err: err})
	r.exit(1)
}

// Close 发出 close 事件并释放仍在运行的子进程，只生效一次
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		r.rt.Bus.Emit(types.Event{Name: types.EventClose})
		if n := r.table.Release(); n > 0 {
			logger.Debug("released running children", zap.Int("count", n))
		}
	})
}
