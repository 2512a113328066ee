package executor

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
)

// Local 本地命令执行器
type Local struct {
	base
	shell     string
	shellArgs []string
}

// NewLocal 创建本地执行器
func NewLocal(opts Options) *Local {
	shell, args := resolveShell(opts.Shell, opts.ShellArgs)
	return &Local{base: newBase(opts), shell: shell, shellArgs: args}
}

// Run 在本地 shell 中执行命令并等待结束。stdout 按行收集到 RunMeta.Output，
// 非零退出返回 ProcessError。ctx 结束时立即返回，子进程不会被终止。
func (l *Local) Run(ctx context.Context, command string) (*types.RunMeta, error) {
	meta := &types.RunMeta{
		ID:        uuid.NewString(),
		Command:   command,
		Local:     true,
		StartedAt: time.Now(),
	}
	l.emitRun(types.EventRun, meta)

	if err := context.Cause(ctx); err != nil {
		return l.finish(meta, err)
	}

	args := make([]string, 0, len(l.shellArgs)+1)
	args = append(args, l.shellArgs...)
	args = append(args, command)
	cmd := exec.Command(l.shell, args...)
	detach(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return l.finish(meta, NewTransportError("", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return l.finish(meta, NewTransportError("", err))
	}
	if err := cmd.Start(); err != nil {
		return l.finish(meta, NewTransportError("", err))
	}
	id := l.table.Track(cmd)
	logger.Debug("local command started", zap.String("run", meta.ID), zap.String("command", command))
	l.emitRun(types.EventRunStart, meta)

	out := &collector{}
	done := make(chan error, 1)
	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			pump(stdout, meta.ID, "", types.StreamStdout, out, l.emitChunk)
		}()
		go func() {
			defer wg.Done()
			pump(stderr, meta.ID, "", types.StreamStderr, nil, l.emitChunk)
		}()
		wg.Wait()
		err := cmd.Wait()
		l.table.Untrack(id)
		done <- err
	}()

	var runErr error
	select {
	case err := <-done:
		if err != nil {
			runErr = classify("", err)
		}
	case <-ctx.Done():
		runErr = context.Cause(ctx)
	}
	meta.Output = out.Lines()
	return l.finish(meta, runErr)
}

func (l *Local) finish(meta *types.RunMeta, err error) (*types.RunMeta, error) {
	meta.Error = err
	if err != nil {
		meta.ExitCode = ExitCode(err)
	}
	meta.Finish(time.Now())
	l.emitRun(types.EventRunStop, meta)
	l.emitRun(types.EventRunEnd, meta)
	return meta, err
}
