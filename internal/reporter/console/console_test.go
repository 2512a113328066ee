package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/internal/executor"
	"github.com/1602/roco/pkg/types"
)

func newTestReporter(quiet bool) (*Reporter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	r := New(&Config{Summary: true, Quiet: quiet, Writer: buf})
	return r, buf
}

func chunk(host string, stream types.Stream, data string) types.Event {
	return types.Event{
		Name:  types.EventRunOutput,
		Chunk: &types.OutputChunk{RunID: "r1", Host: host, Stream: stream, Data: []byte(data)},
	}
}

func TestNew(t *testing.T) {
	r := New(nil)
	assert.NotNil(t, r)
	assert.Equal(t, "console", r.Name())
	assert.NotNil(t, r.writer)
}

func TestReporter_OutputLinesArePrefixed(t *testing.T) {
	r, buf := newTestReporter(false)

	r.Handle(chunk("web1", types.StreamStdout, "hello\nwor"))
	r.Handle(chunk("web1", types.StreamStdout, "ld\n"))
	r.Handle(chunk("web1", types.StreamStderr, "oops\n"))

	assert.Equal(t,
		"  ** [web1 :: out] hello\n"+
			"  ** [web1 :: out] world\n"+
			" *** [web1 :: err] oops\n",
		buf.String())
}

func TestReporter_FlushesPartialLineOnStop(t *testing.T) {
	r, buf := newTestReporter(false)

	r.Handle(chunk("web1", types.StreamStdout, "no newline"))
	r.Handle(chunk("web2", types.StreamStdout, "other"))
	assert.Empty(t, buf.String())

	r.Handle(types.Event{Name: types.EventRunStop, Run: &types.RunMeta{ID: "r1", Host: "web1", Elapsed: time.Millisecond}})
	assert.Equal(t, "  ** [web1 :: out] no newline\n", buf.String())

	r.Handle(types.Event{Name: types.EventRunEnd, Run: &types.RunMeta{ID: "r1", Elapsed: 2 * time.Second}})
	assert.Contains(t, buf.String(), "  ** [web2 :: out] other\n")
	assert.Contains(t, buf.String(), "   * ok in 2.00s\n")
}

func TestReporter_OutputAfterRunEndIsWrittenAtOnce(t *testing.T) {
	r, buf := newTestReporter(false)

	r.Handle(types.Event{Name: types.EventRunEnd, Run: &types.RunMeta{ID: "r1", Elapsed: time.Millisecond}})
	buf.Reset()

	r.Handle(chunk("web1", types.StreamStdout, "late"))
	r.Handle(chunk("web1", types.StreamStdout, "a\nb\n"))

	assert.Equal(t,
		"  ** [web1 :: out] late\n"+
			"  ** [web1 :: out] a\n"+
			"  ** [web1 :: out] b\n",
		buf.String())
	assert.Empty(t, r.pending)
}

func TestReporter_QuietHidesOutput(t *testing.T) {
	r, buf := newTestReporter(true)

	r.Handle(chunk("web1", types.StreamStdout, "hello\n"))
	assert.Empty(t, buf.String())
}

func TestReporter_RunHeader(t *testing.T) {
	r, buf := newTestReporter(false)

	r.Handle(types.Event{Name: types.EventRun, Run: &types.RunMeta{
		Command: "uptime",
		Hosts:   types.ParseHosts([]string{"web1", "web2:2222"}),
	}})
	r.Handle(types.Event{Name: types.EventRunStart, Run: &types.RunMeta{Host: "web1"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `* executing "uptime"`, strings.TrimSpace(lines[0]))
	assert.Equal(t, `* servers: ["web1" "web2:2222"]`, strings.TrimSpace(lines[1]))
	assert.Equal(t, "   * [web1] executing command", lines[2])
}

func TestReporter_ErrorsAndInfo(t *testing.T) {
	r, buf := newTestReporter(false)

	r.Handle(types.Event{Name: types.EventInfo, Message: "running in staging mode"})
	r.Handle(types.Event{Name: types.EventError, Err: errors.New("Unknown command test")})
	r.Handle(types.Event{Name: types.EventTaskCall, Task: types.NewTaskInfo("deploy", "default")})

	assert.Equal(t,
		"     running in staging mode\n"+
			"     Unknown command test\n"+
			"     task deploy\n",
		buf.String())
}

func TestReporter_Colorize(t *testing.T) {
	r := New(&Config{ColorOutput: true, Writer: &bytes.Buffer{}})
	assert.Equal(t, colorRed+"x"+colorReset, r.colorize("x", colorRed))
	assert.Equal(t, "", r.colorize("", colorRed))

	r = New(&Config{ColorOutput: false, Writer: &bytes.Buffer{}})
	assert.Equal(t, "x", r.colorize("x", colorRed))
}

func TestReporter_SummaryOnClose(t *testing.T) {
	r, buf := newTestReporter(false)

	for _, d := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond} {
		r.Handle(types.Event{Name: types.EventRunStop, Run: &types.RunMeta{ID: "r", Host: "web1", Elapsed: d}})
	}
	r.Handle(types.Event{Name: types.EventClose})

	out := buf.String()
	assert.Contains(t, out, "=== Command Timings ===")
	assert.Contains(t, out, "web1")
	assert.Contains(t, out, "runs=3")
}

func TestReporter_AttachedToLocalRun(t *testing.T) {
	bus := event.NewBus()
	r, buf := newTestReporter(false)
	detach := r.Attach(bus)
	defer detach()

	local := executor.NewLocal(executor.Options{Bus: bus})
	_, err := local.Run(context.Background(), "echo hi")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `executing "echo hi"`)
	assert.Contains(t, out, "locally")
	assert.Contains(t, out, "  ** [local :: out] hi\n")
	assert.Contains(t, out, "ok in")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500µs", formatDuration(500*time.Microsecond))
	assert.Equal(t, "1.50ms", formatDuration(1500*time.Microsecond))
	assert.Equal(t, "2.00s", formatDuration(2*time.Second))
}
