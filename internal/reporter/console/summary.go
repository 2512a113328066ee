package console

import (
	"fmt"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minTrackedMicros = 1
	maxTrackedMicros = int64(24 * time.Hour / time.Microsecond)
	sigFigs          = 3
)

// timings keeps one latency histogram per host, in microseconds.
type timings struct {
	hosts map[string]*hdrhistogram.Histogram
}

func newTimings() *timings {
	return &timings{hosts: make(map[string]*hdrhistogram.Histogram)}
}

func (t *timings) record(host string, d time.Duration) {
	h, ok := t.hosts[host]
	if !ok {
		h = hdrhistogram.New(minTrackedMicros, maxTrackedMicros, sigFigs)
		t.hosts[host] = h
	}
	v := max(d.Microseconds(), minTrackedMicros)
	_ = h.RecordValue(min(v, maxTrackedMicros))
}

func (t *timings) names() []string {
	names := make([]string, 0, len(t.hosts))
	for name := range t.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// printSummary prints the per-host command timings.
func (r *Reporter) printSummary() {
	names := r.timings.names()
	if len(names) == 0 {
		return
	}

	r.writeLine("")
	r.writeLine(r.colorize("=== Command Timings ===", colorCyan))
	for _, name := range names {
		h := r.timings.hosts[name]
		r.writeLine(fmt.Sprintf("%-24s runs=%d p50=%s p90=%s max=%s",
			name,
			h.TotalCount(),
			formatDuration(micros(h.ValueAtQuantile(50))),
			formatDuration(micros(h.ValueAtQuantile(90))),
			formatDuration(micros(h.Max())),
		))
	}
	r.writeLine(r.colorize("=======================", colorCyan))
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
