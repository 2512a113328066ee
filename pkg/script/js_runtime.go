package script

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/internal/task"
	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
	"github.com/1602/roco/pkg/utils"
)

// JSRuntime JavaScript rocofile 运行时封装。
// goja 运行时不是并发安全的：所有回调都在调用方 goroutine 上同步执行。
type JSRuntime struct {
	vm     *goja.Runtime
	engine *Engine
	// scope 当前正在执行的任务作用域，声明阶段为 nil
	scope *task.Scope
}

// NewJSRuntime 创建新的 JS 运行时
func NewJSRuntime(engine *Engine) *JSRuntime {
	r := &JSRuntime{
		vm:     goja.New(),
		engine: engine,
	}

	// 初始化运行时环境
	r.setupConsole()
	r.setupDeclarations()
	r.setupExecution()
	r.setupContext()

	return r
}

// RunFile 执行 rocofile 源码，filename 用于错误信息与 __dirname
func (r *JSRuntime) RunFile(src, filename string) error {
	r.vm.Set("__filename", filename)
	r.vm.Set("__dirname", filepath.Dir(filename))

	if _, err := r.vm.RunScript(filename, src); err != nil {
		return unwrapJSError(err)
	}
	return nil
}

// RunString 执行一段脚本并返回导出的结果
func (r *JSRuntime) RunString(src string) (any, error) {
	val, err := r.vm.RunString(src)
	if err != nil {
		return nil, unwrapJSError(err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

// unwrapJSError 还原通过 NewGoError 抛出的 Go 错误
func unwrapJSError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if inner := ex.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}

// throw 以 JS 异常的形式抛出 Go 错误
func (r *JSRuntime) throw(err error) {
	panic(r.vm.NewGoError(err))
}

// setupConsole 设置 console 对象
func (r *JSRuntime) setupConsole() {
	console := r.vm.NewObject()

	console.Set("log", func(call goja.FunctionCall) goja.Value {
		logger.Info(r.join(call.Arguments), zap.String("source", "rocofile"))
		return goja.Undefined()
	})
	console.Set("info", func(call goja.FunctionCall) goja.Value {
		logger.Info(r.join(call.Arguments), zap.String("source", "rocofile"))
		return goja.Undefined()
	})
	console.Set("warn", func(call goja.FunctionCall) goja.Value {
		logger.Warn(r.join(call.Arguments), zap.String("source", "rocofile"))
		return goja.Undefined()
	})
	console.Set("error", func(call goja.FunctionCall) goja.Value {
		logger.Error(r.join(call.Arguments), zap.String("source", "rocofile"))
		return goja.Undefined()
	})

	r.vm.Set("console", console)
}

func (r *JSRuntime) join(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = r.formatValue(arg)
	}
	return strings.Join(parts, " ")
}

// formatValue 格式化值为字符串
func (r *JSRuntime) formatValue(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) {
		return "undefined"
	}
	if goja.IsNull(val) {
		return "null"
	}

	exported := val.Export()
	switch v := exported.(type) {
	case string:
		return v
	case map[string]any, []any:
		s, err := utils.ToJSONString(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// format 按 printf 风格格式化第一个参数
func (r *JSRuntime) format(args []goja.Value) string {
	if len(args) == 0 {
		return ""
	}
	if len(args) == 1 {
		return r.formatValue(args[0])
	}
	rest := make([]any, len(args)-1)
	for i, arg := range args[1:] {
		rest[i] = arg.Export()
	}
	return fmt.Sprintf(args[0].String(), rest...)
}

// setupDeclarations 设置声明 API：namespace、desc、task、before、after、load
func (r *JSRuntime) setupDeclarations() {
	reg := r.engine.rt.Registry

	r.vm.Set("namespace", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0)
		body, ok := goja.AssertFunction(call.Argument(1))
		if goja.IsUndefined(name) || !ok {
			r.throw(task.NewConfigError("invalid namespace declaration"))
		}
		err := reg.Namespace(name.String(), func() error {
			_, err := body(goja.Undefined())
			return err
		})
		if err != nil {
			r.throw(unwrapJSError(err))
		}
		return goja.Undefined()
	})

	r.vm.Set("desc", func(call goja.FunctionCall) goja.Value {
		reg.Desc(call.Argument(0).String())
		return goja.Undefined()
	})

	// task(name, [options], action)
	r.vm.Set("task", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		optsArg, actionArg := goja.Undefined(), call.Argument(1)
		if len(call.Arguments) > 2 {
			optsArg, actionArg = call.Argument(1), call.Argument(2)
		}

		var options map[string]any
		if !goja.IsUndefined(optsArg) && !goja.IsNull(optsArg) {
			m, ok := optsArg.Export().(map[string]any)
			if !ok {
				r.throw(task.NewConfigError(`invalid options for task "` + name + `"`))
			}
			options = m
		}

		fn, ok := goja.AssertFunction(actionArg)
		if !ok {
			r.throw(task.NewConfigError(`action of task "` + name + `" should be a function`))
		}
		info, err := reg.Task(name, options, r.action(fn))
		if err != nil {
			r.throw(err)
		}
		return r.vm.ToValue(info.Name)
	})

	r.vm.Set("before", func(call goja.FunctionCall) goja.Value {
		if err := reg.Before(call.Argument(0).String(), r.step(call.Argument(1))); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})

	r.vm.Set("after", func(call goja.FunctionCall) goja.Value {
		if err := reg.After(call.Argument(0).String(), r.step(call.Argument(1))); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})

	// load(file) 同步加载另一个 rocofile，文件不存在时忽略
	r.vm.Set("load", func(call goja.FunctionCall) goja.Value {
		file := call.Argument(0)
		if goja.IsUndefined(file) || file.String() == "" {
			r.throw(task.NewConfigError("file not specified"))
		}
		path := r.engine.resolve(file.String())
		if !fileExists(path) {
			return goja.Undefined()
		}
		filename := r.engine.current()
		err := r.engine.LoadFile(path)
		r.vm.Set("__filename", filename)
		r.vm.Set("__dirname", filepath.Dir(filename))
		if err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
}

// action 将 JS 函数包装为任务动作，函数参数为 done
func (r *JSRuntime) action(fn goja.Callable) task.Func {
	return func(s *task.Scope, done task.Done) {
		prev := r.scope
		r.scope = s
		defer func() { r.scope = prev }()

		doneFn := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
			done()
			return goja.Undefined()
		})
		if _, err := fn(goja.Undefined(), doneFn); err != nil {
			s.Fail(unwrapJSError(err))
		}
	}
}

// step 字符串为任务引用，函数为函数步骤
func (r *JSRuntime) step(v goja.Value) task.Step {
	if fn, ok := goja.AssertFunction(v); ok {
		return task.Fn(r.action(fn))
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return task.Step{}
	}
	return task.Ref(v.String())
}

type remoteRunFunc func(s *task.Scope, command string, cb func([]types.HostResult)) error

type localRunFunc func(s *task.Scope, command string, cb func(output string)) error

func (r *JSRuntime) remoteRun(name string, dispatch remoteRunFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		s := r.current(name)
		cb, hasCb := goja.AssertFunction(call.Argument(1))
		var cbErr error
		err := dispatch(s, call.Argument(0).String(), func(results []types.HostResult) {
			if hasCb {
				_, cbErr = cb(goja.Undefined(), r.vm.ToValue(exportResults(results)))
			}
		})
		if err == nil {
			err = cbErr
		}
		if err != nil {
			r.throw(unwrapJSError(err))
		}
		return goja.Undefined()
	}
}

func (r *JSRuntime) localRun(name string, dispatch localRunFunc) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		s := r.current(name)
		cb, hasCb := goja.AssertFunction(call.Argument(1))
		var cbErr error
		err := dispatch(s, call.Argument(0).String(), func(output string) {
			if hasCb {
				_, cbErr = cb(goja.Undefined(), r.vm.ToValue(output))
			}
		})
		if err == nil {
			err = cbErr
		}
		if err != nil {
			r.throw(unwrapJSError(err))
		}
		return goja.Undefined()
	}
}

// current 返回当前任务作用域，声明阶段调用执行 API 时抛出异常
func (r *JSRuntime) current(fn string) *task.Scope {
	if r.scope == nil {
		r.throw(task.NewConfigError(fn + " can only be called from a task action"))
	}
	return r.scope
}

// setupExecution 设置执行 API：run、localRun、sequence、log、abort
func (r *JSRuntime) setupExecution() {
	// run(cmd, [callback(results)]) 命令原样分发；runTemplate 先按执行上下文渲染
	r.vm.Set("run", r.remoteRun("run", (*task.Scope).Run))
	r.vm.Set("runTemplate", r.remoteRun("runTemplate", (*task.Scope).RunTemplate))

	// localRun(cmd, [callback(output)])
	r.vm.Set("localRun", r.localRun("localRun", (*task.Scope).LocalRun))
	r.vm.Set("localRunTemplate", r.localRun("localRunTemplate", (*task.Scope).LocalRunTemplate))

	// sequence(...steps) 字符串为任务名，函数接收 next。
	// 最后一个函数参数作为完成回调，在所有步骤完成后调用一次。
	r.vm.Set("sequence", func(call goja.FunctionCall) goja.Value {
		s := r.current("sequence")
		args := call.Arguments
		var complete func()
		var completeErr error
		if n := len(args); n > 0 {
			if fn, ok := goja.AssertFunction(args[n-1]); ok {
				args = args[:n-1]
				noop := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() })
				complete = func() {
					_, completeErr = fn(goja.Undefined(), noop)
				}
			}
		}

		steps := make([]task.Step, 0, len(args))
		for _, arg := range args {
			steps = append(steps, r.step(arg))
		}
		err := task.Sequence(s, steps, complete)
		if err == nil {
			err = completeErr
		}
		if err != nil {
			s.Fail(unwrapJSError(err))
			r.throw(unwrapJSError(err))
		}
		return goja.Undefined()
	})

	r.vm.Set("log", func(call goja.FunctionCall) goja.Value {
		msg := r.format(call.Arguments)
		if r.scope != nil {
			r.scope.Log("%s", msg)
			return goja.Undefined()
		}
		if bus := r.engine.rt.Bus; bus != nil {
			bus.Emit(types.Event{Name: types.EventInfo, Message: msg})
		}
		return goja.Undefined()
	})

	r.vm.Set("abort", func(call goja.FunctionCall) goja.Value {
		msg := r.format(call.Arguments)
		if msg == "" {
			r.throw(task.NewConfigError("error not specified"))
		}
		if r.scope != nil {
			r.throw(r.scope.Abort("%s", msg))
		}
		r.throw(task.NewAbortError("", msg))
		return goja.Undefined()
	})
}

// setupContext 设置执行上下文 API：set、ensure、get 以及常用键的访问器
func (r *JSRuntime) setupContext() {
	st := r.engine.rt.State

	r.vm.Set("set", func(call goja.FunctionCall) goja.Value {
		st.Set(call.Argument(0).String(), r.contextValue(call.Argument(1)))
		return goja.Undefined()
	})
	r.vm.Set("ensure", func(call goja.FunctionCall) goja.Value {
		st.Ensure(call.Argument(0).String(), r.contextValue(call.Argument(1)))
		return goja.Undefined()
	})
	r.vm.Set("get", func(call goja.FunctionCall) goja.Value {
		v, ok := st.Get(call.Argument(0).String())
		if !ok {
			return goja.Undefined()
		}
		return r.vm.ToValue(v)
	})

	global := r.vm.GlobalObject()
	for _, key := range []string{state.KeyEnvironment, state.KeyEnv, state.KeyApplication, state.KeyHosts} {
		key := key
		getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
			if key == state.KeyHosts {
				return r.vm.ToValue(st.Hosts())
			}
			return r.vm.ToValue(st.GetString(key))
		})
		setter := r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			v := call.Argument(0).Export()
			switch key {
			case state.KeyEnvironment, state.KeyEnv:
				st.SetEnvironment(fmt.Sprint(v))
			default:
				st.Set(key, v)
			}
			return goja.Undefined()
		})
		if err := global.DefineAccessorProperty(key, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			logger.Warn("cannot define context accessor", zap.String("key", key), zap.Error(err))
		}
	}
}

// contextValue 函数值转换为惰性值，首次读取时调用一次
func (r *JSRuntime) contextValue(v goja.Value) any {
	if fn, ok := goja.AssertFunction(v); ok {
		return state.Lazy(func() any {
			res, err := fn(goja.Undefined())
			if err != nil {
				logger.Warn("lazy value failed", zap.Error(err))
				return nil
			}
			return res.Export()
		})
	}
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v.Export()
}

func exportResults(results []types.HostResult) []any {
	out := make([]any, len(results))
	for i, res := range results {
		out[i] = map[string]any{
			"host":     res.Host.String(),
			"out":      res.Output,
			"exitCode": res.ExitCode,
		}
	}
	return out
}
