package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1602/roco/internal/state"
	"github.com/1602/roco/pkg/logger"
	"github.com/1602/roco/pkg/types"
	"github.com/1602/roco/pkg/utils"
)

// Remote 多主机并行执行器。每台主机一个 ssh 子进程，全部同时启动，
// 所有主机返回后才汇总结果。
type Remote struct {
	base
	transport Transport
	grace     time.Duration
}

// NewRemote 创建远程执行器，未指定传输层时使用 ssh
func NewRemote(opts Options) *Remote {
	transport := opts.Transport
	if transport == nil {
		transport = &SSHTransport{}
	}
	grace := opts.GraceTimeout
	if grace <= 0 {
		grace = DefaultGraceTimeout
	}
	return &Remote{base: newBase(opts), transport: transport, grace: grace}
}

// ParseCommand strips the best-effort sentinel from command.
func ParseCommand(command string) (string, bool) {
	trimmed := strings.TrimLeft(command, " \t")
	if strings.HasPrefix(trimmed, BestEffortPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, BestEffortPrefix)), true
	}
	return command, false
}

// Run 在所有主机上并行执行命令。hosts 可以是字符串、逗号分隔的字符串或
// 字符串切片。Results 与输入主机顺序一致；第一个完成的失败主机的错误
// 作为返回值。ctx 结束时立即返回，未完成的主机记录取消原因。
func (r *Remote) Run(ctx context.Context, hosts any, command string) (*types.RunMeta, error) {
	command, bestEffort := ParseCommand(command)
	specs := types.ParseHosts(state.NormalizeHosts(hosts))
	meta := &types.RunMeta{
		ID:         uuid.NewString(),
		Command:    command,
		Hosts:      specs,
		BestEffort: bestEffort,
		StartedAt:  time.Now(),
	}
	r.emitRun(types.EventRun, meta)

	if len(specs) == 0 {
		return r.finish(meta, nil, NewNoHostsError())
	}
	if err := context.Cause(ctx); err != nil {
		return r.finish(meta, nil, err)
	}

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	results := make([]types.HostResult, len(specs))
	reported := make([]bool, len(specs))
	record := func(i int, res types.HostResult) {
		mu.Lock()
		defer mu.Unlock()
		if reported[i] {
			return
		}
		results[i] = res
		reported[i] = true
		// 尽力模式下主机失败只保留在各自的结果中
		if res.Error != nil && firstErr == nil && !bestEffort {
			firstErr = res.Error
		}
	}

	wg.Add(len(specs))
	for i, spec := range specs {
		utils.SafeGoWithCallback("remote "+spec.String(), func() {
			record(i, r.runHost(meta, spec, command, bestEffort))
			wg.Done()
		}, func(p any) {
			record(i, types.HostResult{
				Host:     spec,
				ExitCode: -1,
				Error:    NewTransportError(spec.String(), fmt.Errorf("panic: %v", p)),
			})
			wg.Done()
		})
	}

	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
	case <-ctx.Done():
	}

	mu.Lock()
	collected := make([]types.HostResult, len(results))
	copy(collected, results)
	for i := range collected {
		if reported[i] {
			continue
		}
		cause := context.Cause(ctx)
		collected[i] = types.HostResult{Host: specs[i], ExitCode: -1, Error: cause}
		if firstErr == nil {
			firstErr = cause
		}
	}
	err := firstErr
	mu.Unlock()

	return r.finish(meta, collected, err)
}

// runHost 在单台主机上执行命令并返回结果
func (r *Remote) runHost(parent *types.RunMeta, spec types.HostSpec, command string, bestEffort bool) types.HostResult {
	host := spec.String()
	hostMeta := &types.RunMeta{
		ID:         parent.ID,
		Command:    command,
		Host:       host,
		Hosts:      []types.HostSpec{spec},
		BestEffort: bestEffort,
		StartedAt:  time.Now(),
	}
	result := types.HostResult{Host: spec}

	name, args := r.transport.Command(spec, command)
	cmd := exec.Command(name, args...)
	detach(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return r.stopHost(hostMeta, result, "", NewTransportError(host, err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return r.stopHost(hostMeta, result, "", NewTransportError(host, err))
	}
	if err := cmd.Start(); err != nil {
		return r.stopHost(hostMeta, result, "", NewTransportError(host, err))
	}
	id := r.table.Track(cmd)
	logger.Debug("remote command started",
		zap.String("run", parent.ID),
		zap.String("host", host),
		zap.Int("pid", cmd.Process.Pid),
	)
	r.emitRun(types.EventRunStart, hostMeta)

	out := &collector{}
	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})
	go func() {
		defer close(stdoutDone)
		pump(stdout, parent.ID, host, types.StreamStdout, out, r.emitChunk)
	}()
	go func() {
		defer close(stderrDone)
		pump(stderr, parent.ID, host, types.StreamStderr, nil, r.emitChunk)
	}()

	if bestEffort {
		timer := time.NewTimer(r.grace)
		select {
		case <-stdoutDone:
		case <-timer.C:
			logger.Debug("grace timeout reached, accepting host",
				zap.String("run", parent.ID),
				zap.String("host", host),
			)
		}
		timer.Stop()
		utils.SafeGo("reap "+host, func() {
			<-stdoutDone
			<-stderrDone
			_ = cmd.Wait()
			r.table.Untrack(id)
		})
		return r.stopHost(hostMeta, result, out.Lines(), nil)
	}

	<-stdoutDone
	<-stderrDone
	waitErr := cmd.Wait()
	r.table.Untrack(id)
	if waitErr != nil {
		return r.stopHost(hostMeta, result, out.Lines(), classify(host, waitErr))
	}
	return r.stopHost(hostMeta, result, out.Lines(), nil)
}

func (r *Remote) stopHost(meta *types.RunMeta, result types.HostResult, output string, err *ExecError) types.HostResult {
	meta.Finish(time.Now())
	meta.Output = output
	result.Output = output
	result.Elapsed = meta.Elapsed
	if err != nil {
		meta.Error = err
		meta.ExitCode = err.ExitCode
		result.Error = err
		result.ExitCode = err.ExitCode
	}
	r.emitRun(types.EventRunStop, meta)
	return result
}

func (r *Remote) finish(meta *types.RunMeta, results []types.HostResult, err error) (*types.RunMeta, error) {
	meta.Results = results
	meta.Error = err
	if err != nil {
		meta.ExitCode = ExitCode(err)
	}
	meta.Finish(time.Now())
	r.emitRun(types.EventRunEnd, meta)
	return meta, err
}
