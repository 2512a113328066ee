// Package executor runs shell commands locally and fans them out to remote
// hosts over ssh, reporting progress on the event bus.
package executor

import (
	"errors"
	"os/exec"
	"time"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/pkg/types"
)

// DefaultGraceTimeout 尽力模式下等待 stdout 结束的最长时间
const DefaultGraceTimeout = 5 * time.Second

// BestEffortPrefix 命令前缀，表示忽略退出码的尽力执行
const BestEffortPrefix = "-"

// Options 执行器公共配置
type Options struct {
	Bus          *event.Bus
	Table        *ProcessTable
	Shell        string
	ShellArgs    []string
	Transport    Transport
	GraceTimeout time.Duration
}

// base 本地与远程执行器共享的事件发送逻辑
type base struct {
	bus   *event.Bus
	table *ProcessTable
}

func newBase(opts Options) base {
	table := opts.Table
	if table == nil {
		table = NewProcessTable()
	}
	return base{bus: opts.Bus, table: table}
}

// Table 返回执行器使用的子进程表
func (b *base) Table() *ProcessTable {
	return b.table
}

func (b *base) emitRun(name string, meta *types.RunMeta) {
	if b.bus == nil {
		return
	}
	b.bus.Emit(types.Event{Name: name, Run: meta, Err: meta.Error})
}

func (b *base) emitChunk(chunk *types.OutputChunk) {
	if b.bus == nil {
		return
	}
	b.bus.Emit(types.Event{Name: types.EventRunOutput, Chunk: chunk})
}

// classify 将 Wait 返回的错误转换为 ExecError
func classify(host string, err error) *ExecError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewProcessError(host, exitErr.ExitCode())
	}
	return NewTransportError(host, err)
}
