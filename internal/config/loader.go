// Package config discovers and loads everything a roco run starts from: the
// settings file, the package descriptor and the rocofiles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/internal/task"
	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/script"
	"github.com/1602/roco/pkg/types"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvHosts = "HOSTS"
	EnvApp   = "APP"
	EnvHome  = "HOME"
)

// DefaultPackageFile is looked up from the working directory to the root.
const DefaultPackageFile = "package.json"

var rocofileBases = []string{"/etc/roco", "~/.roco", "./Roco", "./config/Roco"}

var rocofileExts = []string{".yaml", ".yml", ".js"}

// DefaultConfigFiles returns the rocofile search list, lowest precedence
// first.
func DefaultConfigFiles() []string {
	files := make([]string, 0, len(rocofileBases)*len(rocofileExts))
	for _, base := range rocofileBases {
		for _, ext := range rocofileExts {
			files = append(files, base+ext)
		}
	}
	return files
}

// Options 加载选项
type Options struct {
	Cwd         string
	Home        string
	Env         string
	App         string
	Hosts       string
	PackageFile string
	// ConfigFiles replaces the default search list when not empty.
	ConfigFiles []string
	// Extra rocofiles loaded after the search list.
	Extra []string
}

// OptionsFromEnv 从环境变量与当前目录构建加载选项
func OptionsFromEnv() Options {
	cwd, _ := os.Getwd()
	return Options{
		Cwd:   cwd,
		Home:  os.Getenv(EnvHome),
		App:   os.Getenv(EnvApp),
		Hosts: os.Getenv(EnvHosts),
	}
}

// Loader 配置加载器
type Loader struct {
	opts   Options
	rt     *task.Runtime
	engine *script.Engine
}

// NewLoader 创建配置加载器
func NewLoader(rt *task.Runtime, opts Options) *Loader {
	if opts.PackageFile == "" {
		opts.PackageFile = DefaultPackageFile
	}
	if opts.Cwd == "" {
		opts.Cwd, _ = os.Getwd()
	}
	return &Loader{opts: opts, rt: rt, engine: script.NewEngine(rt)}
}

// Engine 返回执行 rocofile 的脚本引擎
func (l *Loader) Engine() *script.Engine {
	return l.engine
}

// ResolvePath expands a leading "~" with home and makes p absolute
// relative to cwd.
func ResolvePath(cwd, home, p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		p = home + p[1:]
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(cwd, p)
}

// Files 返回按加载顺序排列的 rocofile 路径
func (l *Loader) Files() []string {
	files := l.opts.ConfigFiles
	if len(files) == 0 {
		files = DefaultConfigFiles()
	}
	files = append(append([]string{}, files...), l.opts.Extra...)

	resolved := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		resolved = append(resolved, ResolvePath(l.opts.Cwd, l.opts.Home, f))
	}
	return resolved
}

// Load 填充执行上下文默认值，读取项目描述文件并依次执行存在的 rocofile。
// 成功时发出 ready 事件，失败时发出 error 事件并返回错误。
func (l *Loader) Load() error {
	if err := l.load(); err != nil {
		l.emit(types.Event{Name: types.EventError, Err: err})
		return err
	}
	l.emit(types.Event{Name: types.EventReady})
	return nil
}

func (l *Loader) load() error {
	ctx := l.rt.State
	if l.opts.Env != "" {
		ctx.SetEnvironment(l.opts.Env)
	}
	if l.opts.Hosts != "" {
		ctx.Set(state.KeyHosts, state.NormalizeHosts(l.opts.Hosts))
	} else {
		ctx.Ensure(state.KeyHosts, []string{})
	}

	pkg, err := FindPackage(l.opts.Cwd, l.opts.PackageFile)
	switch {
	case err == nil:
		pkg.Apply(ctx)
		logger.Debug("package descriptor loaded", zap.String("path", pkg.Path), zap.String("application", pkg.Name))
	case errors.Is(err, fs.ErrNotExist):
	default:
		logger.Warn("cannot read package descriptor", zap.Error(err))
	}
	if l.opts.App != "" {
		ctx.Set(state.KeyApplication, l.opts.App)
	}

	for _, path := range l.Files() {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("rocofile %s: %w", path, err)
		}
		logger.Debug("loading rocofile", zap.String("path", path))
		if err := l.engine.LoadFile(path); err != nil {
			return fmt.Errorf("rocofile %s: %w", path, err)
		}
	}
	return nil
}

func (l *Loader) emit(ev types.Event) {
	if l.rt.Bus != nil {
		l.rt.Bus.Emit(ev)
	}
}
