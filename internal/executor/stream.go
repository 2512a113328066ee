package executor

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/1602/roco/pkg/types"
)

const readBufferSize = 32 * 1024

// collector accumulates stdout while pumps may still be writing to it.
type collector struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (c *collector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Lines 返回按行拼接的输出，去掉末尾换行
func (c *collector) Lines() string {
	c.mu.Lock()
	s := c.buf.String()
	c.mu.Unlock()
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// pump forwards everything read from r as output chunks and copies it to
// sink when sink is not nil. It returns on EOF or a read error.
func pump(r io.Reader, runID, host string, stream types.Stream, sink io.Writer, emit func(*types.OutputChunk)) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if sink != nil {
				_, _ = sink.Write(data)
			}
			emit(&types.OutputChunk{RunID: runID, Host: host, Stream: stream, Data: data})
		}
		if err != nil {
			return
		}
	}
}
