package types

import "time"

// Stream identifies which pipe a chunk came from.
type Stream string

const (
	StreamStdout Stream = "out"
	StreamStderr Stream = "err"
)

// OutputChunk 主机输出片段，按到达顺序实时转发
type OutputChunk struct {
	RunID  string
	Host   string
	Stream Stream
	Data   []byte
}

// HostResult 单台主机的执行结果
type HostResult struct {
	Host     HostSpec      `json:"host"`
	Output   string        `json:"output"`
	ExitCode int           `json:"exit_code"`
	Error    error         `json:"-"`
	Elapsed  time.Duration `json:"elapsed"`
}

// RunMeta 一次命令分发的元数据。由执行器创建并独占写入，
// "run end" 事件发出后不再修改。
type RunMeta struct {
	ID         string        `json:"id"`
	Command    string        `json:"command"`
	Host       string        `json:"host,omitempty"` // per-host records only; empty for local and aggregate records
	Hosts      []HostSpec    `json:"hosts,omitempty"`
	Local      bool          `json:"local"`
	BestEffort bool          `json:"best_effort"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
	ExitCode   int           `json:"exit_code"`
	Error      error         `json:"-"`
	Output     string        `json:"output,omitempty"`
	Results    []HostResult  `json:"results,omitempty"`
}

// HostNames returns the raw host strings of the dispatch.
func (m *RunMeta) HostNames() []string {
	names := make([]string, len(m.Hosts))
	for i, h := range m.Hosts {
		names[i] = h.String()
	}
	return names
}

// Finish stamps the end time and elapsed duration.
func (m *RunMeta) Finish(now time.Time) {
	m.FinishedAt = now
	m.Elapsed = now.Sub(m.StartedAt)
}
