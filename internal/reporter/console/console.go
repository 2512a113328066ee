// Package console prints runner events to a terminal: task calls, command
// dispatch, host output prefixed by host and stream, and a timing summary.
package console

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/1602/roco/internal/event"
	"github.com/1602/roco/pkg/types"
)

// Config holds configuration for the console reporter.
type Config struct {
	// ColorOutput enables colored output.
	ColorOutput bool `yaml:"color_output"`
	// Summary prints per-host timing percentiles on close.
	Summary bool `yaml:"summary"`
	// Quiet hides host output, keeping dispatch lines and errors.
	Quiet bool `yaml:"quiet"`
	// Writer is the output writer (defaults to os.Stdout).
	Writer io.Writer `yaml:"-"`
}

// DefaultConfig returns the default console reporter configuration.
// Colors are enabled when stdout is a terminal.
func DefaultConfig() *Config {
	fd := os.Stdout.Fd()
	return &Config{
		ColorOutput: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		Summary:     true,
		Writer:      os.Stdout,
	}
}

// streamKey identifies a partially written line.
type streamKey struct {
	run    string
	host   string
	stream types.Stream
}

// Reporter implements the console reporter.
type Reporter struct {
	config  *Config
	writer  io.Writer
	pending map[streamKey]*bytes.Buffer
	ended   map[string]struct{}
	timings *timings
	mu      sync.Mutex
}

// New creates a new console reporter.
func New(config *Config) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	return &Reporter{
		config:  config,
		writer:  config.Writer,
		pending: make(map[streamKey]*bytes.Buffer),
		ended:   make(map[string]struct{}),
		timings: newTimings(),
	}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "console"
}

// Attach subscribes the reporter to bus and returns a function detaching it.
func (r *Reporter) Attach(bus *event.Bus) func() {
	return bus.OnAny(r.Handle)
}

// Handle prints one event.
func (r *Reporter) Handle(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Name {
	case types.EventInfo:
		r.log(0, "", ev.Message)
	case types.EventError:
		if ev.Err != nil {
			r.log(0, "", r.colorize(ev.Err.Error(), colorRed))
		}
	case types.EventTaskCall:
		if ev.Task != nil {
			r.log(0, "", "task "+r.colorize(ev.Task.DisplayName, colorCyan))
		}
	case types.EventRun:
		r.printRun(ev.Run)
	case types.EventRunStart:
		if !ev.Run.Local {
			r.log(1, ev.Run.Host, "executing command")
		}
	case types.EventRunOutput:
		if !r.config.Quiet {
			r.printChunk(ev.Chunk)
		}
	case types.EventRunStop:
		r.printStop(ev.Run)
	case types.EventRunEnd:
		r.flushRun(ev.Run.ID)
		r.ended[ev.Run.ID] = struct{}{}
		r.printEnd(ev.Run)
	case types.EventClose:
		if r.config.Summary {
			r.printSummary()
		}
	}
}

func (r *Reporter) printRun(meta *types.RunMeta) {
	r.log(1, "", "executing "+r.colorize(fmt.Sprintf("%q", meta.Command), colorYellow))
	if meta.Local {
		r.log(1, "", "locally")
		return
	}
	r.log(1, "", "servers: "+r.colorize(fmt.Sprintf("%q", meta.HostNames()), colorBlue))
}

func (r *Reporter) printStop(meta *types.RunMeta) {
	host := hostTag(meta.Host)
	r.flushHost(meta.ID, meta.Host)
	r.timings.record(host, meta.Elapsed)
	if meta.Error != nil && !meta.Local {
		r.log(1, meta.Host, r.colorize(meta.Error.Error(), colorRed))
	}
}

func (r *Reporter) printEnd(meta *types.RunMeta) {
	status := r.colorize("ok", colorGreen)
	if meta.Error != nil {
		status = r.colorize("failed", colorRed)
	}
	r.log(1, "", fmt.Sprintf("%s in %s", status, formatDuration(meta.Elapsed)))
}

// printChunk writes every complete line of the chunk and keeps the rest
// until the next chunk of the same host and stream. Output of a run that
// already ended is written at once.
func (r *Reporter) printChunk(chunk *types.OutputChunk) {
	key := streamKey{run: chunk.RunID, host: chunk.Host, stream: chunk.Stream}
	if _, done := r.ended[chunk.RunID]; done {
		data := strings.TrimRight(string(chunk.Data), "\r\n")
		if data == "" {
			return
		}
		for _, line := range strings.Split(data, "\n") {
			r.outputLine(key, strings.TrimRight(line, "\r"))
		}
		return
	}
	buf, ok := r.pending[key]
	if !ok {
		buf = &bytes.Buffer{}
		r.pending[key] = buf
	}
	buf.Write(chunk.Data)

	for {
		i := bytes.IndexByte(buf.Bytes(), '\n')
		if i < 0 {
			return
		}
		line := string(buf.Next(i + 1))
		r.outputLine(key, strings.TrimRight(line, "\r\n"))
	}
}

func (r *Reporter) flushHost(run, host string) {
	for key, buf := range r.pending {
		if key.run != run || key.host != host {
			continue
		}
		if buf.Len() > 0 {
			r.outputLine(key, buf.String())
		}
		delete(r.pending, key)
	}
}

func (r *Reporter) flushRun(run string) {
	for key, buf := range r.pending {
		if key.run != run {
			continue
		}
		if buf.Len() > 0 {
			r.outputLine(key, buf.String())
		}
		delete(r.pending, key)
	}
}

func (r *Reporter) outputLine(key streamKey, line string) {
	stars := 2
	if key.stream == types.StreamStderr {
		stars = 3
	}
	tag := r.colorize(fmt.Sprintf("[%s :: %s]", hostTag(key.host), key.stream), colorGray)
	r.writeLine(r.indent(stars) + tag + " " + line)
}

// log prints every line of msg behind the star gutter and an optional
// host prefix.
func (r *Reporter) log(stars int, host, msg string) {
	prefix := r.indent(stars)
	if host != "" {
		prefix += r.colorize("["+host+"]", colorGray) + " "
	}
	for _, line := range strings.Split(msg, "\n") {
		r.writeLine(prefix + line)
	}
}

// indent builds the four column gutter, right-aligned stars then a space.
func (r *Reporter) indent(stars int) string {
	stars = max(0, min(4, stars))
	return r.colorize(strings.Repeat(" ", 4-stars)+strings.Repeat("*", stars), colorGray) + " "
}

func hostTag(host string) string {
	if host == "" {
		return "local"
	}
	return host
}

// Helper methods

func (r *Reporter) writeLine(s string) {
	fmt.Fprintln(r.writer, s)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (r *Reporter) colorize(s string, color string) string {
	if !r.config.ColorOutput || s == "" {
		return s
	}
	return color + s + colorReset
}
