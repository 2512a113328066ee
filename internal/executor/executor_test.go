package executor

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/pkg/types"
)

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) handle(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, ev := range r.events {
		if ev.Name != types.EventRunOutput {
			names = append(names, ev.Name)
		}
	}
	return names
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func newRecordedBus() (*event.Bus, *recorder) {
	bus := event.NewBus()
	rec := &recorder{}
	bus.OnAny(rec.handle)
	return bus, rec
}

func newShellRemote(bus *event.Bus, grace time.Duration) *Remote {
	return NewRemote(Options{
		Bus:          bus,
		Transport:    &ShellTransport{},
		GraceTimeout: grace,
	})
}

func TestLocalRunEcho(t *testing.T) {
	bus, rec := newRecordedBus()
	local := NewLocal(Options{Bus: bus})

	meta, err := local.Run(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", meta.Output)
	assert.True(t, meta.Local)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, 0, meta.ExitCode)
	assert.Equal(t, []string{
		types.EventRun, types.EventRunStart, types.EventRunStop, types.EventRunEnd,
	}, rec.names())
	assert.GreaterOrEqual(t, rec.count(types.EventRunOutput), 1)
	assert.Equal(t, 0, local.Table().Len())
}

func TestLocalRunJoinsLines(t *testing.T) {
	local := NewLocal(Options{})

	meta, err := local.Run(context.Background(), "printf 'a\\nb\\n'; echo oops >&2")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", meta.Output)
}

func TestLocalRunNonzeroExit(t *testing.T) {
	local := NewLocal(Options{})

	meta, err := local.Run(context.Background(), "echo partial; exit 3")
	require.Error(t, err)
	assert.True(t, IsProcessError(err))
	assert.Equal(t, 3, ExitCode(err))
	assert.Equal(t, 3, meta.ExitCode)
	assert.Equal(t, "partial", meta.Output)
}

func TestLocalRunMissingShell(t *testing.T) {
	local := NewLocal(Options{Shell: "/nonexistent/roco-shell"})

	_, err := local.Run(context.Background(), "true")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestLocalRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	boom := errors.New("boom")
	cancel(boom)

	_, err := NewLocal(Options{}).Run(ctx, "echo never")
	assert.ErrorIs(t, err, boom)
}

func TestSSHTransportCommand(t *testing.T) {
	tests := []struct {
		name      string
		transport *SSHTransport
		host      string
		wantName  string
		wantArgs  []string
	}{
		{
			name:      "default port",
			transport: &SSHTransport{},
			host:      "web1",
			wantName:  "ssh",
			wantArgs:  []string{"web1", "uptime"},
		},
		{
			name:      "alternate port",
			transport: &SSHTransport{},
			host:      "example.com:2222",
			wantName:  "ssh",
			wantArgs:  []string{"-p", "2222", "example.com", "uptime"},
		},
		{
			name:      "options before host",
			transport: &SSHTransport{Binary: "/usr/bin/ssh", Options: []string{"-o", "BatchMode=yes"}},
			host:      "deploy@10.0.0.1:22",
			wantName:  "/usr/bin/ssh",
			wantArgs:  []string{"-o", "BatchMode=yes", "-p", "22", "deploy@10.0.0.1", "uptime"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := tt.transport.Command(types.ParseHost(tt.host), "uptime")
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestShellTransportPassesHost(t *testing.T) {
	name, args := (&ShellTransport{}).Command(types.ParseHost("web1:2222"), "echo $1")
	assert.Equal(t, "/bin/sh", name)
	assert.Equal(t, []string{"-c", "echo $1", "roco", "web1:2222"}, args)
}

func TestParseCommand(t *testing.T) {
	cmd, best := ParseCommand("- rm -rf /tmp/cache")
	assert.True(t, best)
	assert.Equal(t, "rm -rf /tmp/cache", cmd)

	cmd, best = ParseCommand("ls -la")
	assert.False(t, best)
	assert.Equal(t, "ls -la", cmd)
}

func TestRemoteRunStrictOrderedResults(t *testing.T) {
	bus, rec := newRecordedBus()
	remote := newShellRemote(bus, 0)
	hosts := []string{"c", "a", "b"}

	// 最先启动的主机最后结束，结果顺序仍与输入一致
	meta, err := remote.Run(context.Background(), hosts,
		`if [ "$1" = c ]; then sleep 0.3; fi; echo "host $1"`)
	require.NoError(t, err)
	require.Len(t, meta.Results, 3)
	for i, h := range hosts {
		assert.Equal(t, h, meta.Results[i].Host.String())
		assert.Equal(t, "host "+h, meta.Results[i].Output)
		assert.NoError(t, meta.Results[i].Error)
	}
	assert.Equal(t, 1, rec.count(types.EventRun))
	assert.Equal(t, 3, rec.count(types.EventRunStart))
	assert.Equal(t, 3, rec.count(types.EventRunStop))
	assert.Equal(t, 1, rec.count(types.EventRunEnd))
	assert.Equal(t, 0, remote.Table().Len())
}

func TestRemoteRunAcceptsCommaSeparatedHosts(t *testing.T) {
	meta, err := newShellRemote(nil, 0).Run(context.Background(), "a, b", `echo "$1"`)
	require.NoError(t, err)
	require.Len(t, meta.Results, 2)
	assert.Equal(t, "b", meta.Results[1].Output)
}

func TestRemoteRunFailingHost(t *testing.T) {
	meta, err := newShellRemote(nil, 0).Run(context.Background(), []string{"a", "b", "c"},
		`if [ "$1" = b ]; then exit 4; fi; echo ok`)
	require.Error(t, err)
	assert.True(t, IsProcessError(err))
	assert.Equal(t, 4, ExitCode(err))

	require.Len(t, meta.Results, 3)
	assert.NoError(t, meta.Results[0].Error)
	assert.Equal(t, 4, meta.Results[1].ExitCode)
	assert.NoError(t, meta.Results[2].Error)
	assert.Equal(t, "ok", meta.Results[2].Output)
}

func TestRemoteRunBestEffortIgnoresExitCode(t *testing.T) {
	meta, err := newShellRemote(nil, time.Second).Run(context.Background(), []string{"a", "b"}, "- echo done; exit 7")
	require.NoError(t, err)
	assert.True(t, meta.BestEffort)
	assert.Equal(t, "echo done; exit 7", meta.Command)
	for _, res := range meta.Results {
		assert.NoError(t, res.Error)
		assert.Equal(t, "done", res.Output)
	}
}

func TestRemoteRunBestEffortGraceTimeout(t *testing.T) {
	remote := newShellRemote(nil, 100*time.Millisecond)

	start := time.Now()
	meta, err := remote.Run(context.Background(), []string{"a"}, "-echo early; sleep 2")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
	require.Len(t, meta.Results, 1)
	assert.Equal(t, "early", meta.Results[0].Output)
}

func TestRemoteRunNoHosts(t *testing.T) {
	bus, rec := newRecordedBus()
	_, err := newShellRemote(bus, 0).Run(context.Background(), nil, "uptime")
	require.Error(t, err)

	var execErr *ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, ErrCodeNoHosts, execErr.Code)
	assert.Equal(t, []string{types.EventRun, types.EventRunEnd}, rec.names())
}

func TestRemoteRunTransportError(t *testing.T) {
	remote := NewRemote(Options{Transport: &SSHTransport{Binary: "/nonexistent/roco-ssh"}})

	meta, err := remote.Run(context.Background(), []string{"a", "b"}, "uptime")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	require.Len(t, meta.Results, 2)
	assert.True(t, IsTransportError(meta.Results[0].Error))
	assert.True(t, IsTransportError(meta.Results[1].Error))
}

func TestRemoteRunBestEffortTransportError(t *testing.T) {
	remote := NewRemote(Options{Transport: &SSHTransport{Binary: "/nonexistent/roco-ssh"}})

	meta, err := remote.Run(context.Background(), []string{"a", "b"}, "-uptime")
	require.NoError(t, err)
	assert.NoError(t, meta.Error)
	assert.Equal(t, 0, meta.ExitCode)
	require.Len(t, meta.Results, 2)
	assert.True(t, IsTransportError(meta.Results[0].Error))
	assert.True(t, IsTransportError(meta.Results[1].Error))
}

func TestRemoteRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	remote := newShellRemote(nil, 0)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	meta, err := remote.Run(ctx, []string{"slow"}, "sleep 2")
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
	require.Len(t, meta.Results, 1)
	assert.ErrorIs(t, meta.Results[0].Error, context.Canceled)
}

func TestProcessTableRelease(t *testing.T) {
	table := NewProcessTable()
	cmd := exec.Command("sleep", "1")
	require.NoError(t, cmd.Start())

	table.Track(cmd)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 1, table.Release())
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, table.Release())
}

func TestExecErrorMessage(t *testing.T) {
	err := NewProcessError("web1", 2)
	assert.Equal(t, "[PROCESS_ERROR web1] command exited with code 2", err.Error())
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))

	cause := errors.New("not found")
	transport := NewTransportError("", cause)
	assert.ErrorIs(t, transport, cause)
	assert.Equal(t, 1, ExitCode(transport))
}
