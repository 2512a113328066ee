// Package script 加载 rocofile：声明式 YAML 与 JavaScript 两种格式，
// 在同一个运行时中向任务注册表声明命名空间、任务与钩子。
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/1602/roco/internal/task"
)

// Engine 在共享的执行上下文中依次执行 rocofile
type Engine struct {
	rt      *task.Runtime
	js      *JSRuntime
	loading []string
}

// NewEngine 创建脚本引擎
func NewEngine(rt *task.Runtime) *Engine {
	return &Engine{rt: rt}
}

// Runtime 返回任务运行时
func (e *Engine) Runtime() *task.Runtime {
	return e.rt
}

// JS 返回 JavaScript 运行时，首次调用时创建
func (e *Engine) JS() *JSRuntime {
	if e.js == nil {
		e.js = NewJSRuntime(e)
	}
	return e.js
}

// LoadFile 按扩展名加载 rocofile。同一文件在加载过程中再次被引用视为循环引用。
func (e *Engine) LoadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if slices.Contains(e.loading, abs) {
		return task.NewConfigError(fmt.Sprintf("include cycle: %s -> %s", strings.Join(e.loading, " -> "), abs))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}

	e.loading = append(e.loading, abs)
	defer func() { e.loading = e.loading[:len(e.loading)-1] }()

	switch strings.ToLower(filepath.Ext(abs)) {
	case ".yaml", ".yml":
		return e.LoadYAML(data, abs)
	case ".js":
		return e.JS().RunFile(string(data), abs)
	default:
		return task.NewConfigError("unsupported rocofile type: " + abs)
	}
}

// resolve 相对于当前正在加载的文件解析路径
func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) || len(e.loading) == 0 {
		return path
	}
	return filepath.Join(filepath.Dir(e.loading[len(e.loading)-1]), path)
}

// current 返回当前正在加载的文件
func (e *Engine) current() string {
	if len(e.loading) == 0 {
		return ""
	}
	return e.loading[len(e.loading)-1]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
