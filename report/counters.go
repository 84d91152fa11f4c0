package report

import (
	"fmt"
	"os"
	"sort"

	"github.com/segmentio/encoding/json"
)

// Counters maps counter names to 64-bit totals.
type Counters map[string]uint64

// Reporter accumulates counters across a pipeline run and serializes them
// to the configured sink.  It is scoped to one run and threaded through the
// passes rather than held in process-global state, so concurrent runs in
// one process cannot interleave their statistics.
type Reporter struct {
	// Path of the JSON sink; empty means standard out.
	path string

	totals Counters
}

// NewReporter creates a reporter writing to path, or to standard out when
// path is empty.
func NewReporter(path string) *Reporter {
	return &Reporter{
		path:   path,
		totals: make(Counters),
	}
}

// Add increments the named counter.
func (r *Reporter) Add(name string, n uint64) {
	r.totals[name] += n
}

// Merge folds a pass's counter map into the run totals.  Counters only ever
// grow; a pass cannot retract another pass's statistics.
func (r *Reporter) Merge(c Counters) {
	for name, n := range c {
		r.totals[name] += n
	}
}

// Total returns the current value of the named counter.
func (r *Reporter) Total(name string) uint64 {
	return r.totals[name]
}

// Snapshot returns a copy of the current totals.
func (r *Reporter) Snapshot() Counters {
	out := make(Counters, len(r.totals))
	for name, n := range r.totals {
		out[name] = n
	}
	return out
}

// Emit serializes the current totals to the configured sink.  The document
// is rewritten from scratch on every call; the last writer wins.  Keys are
// emitted in sorted order so identical runs produce identical bytes.
func (r *Reporter) Emit() error {
	data, err := MarshalCounters(r.totals)
	if err != nil {
		return err
	}

	if r.path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(r.path, data, 0o644)
}

// MarshalCounters renders a counter map as a JSON object with sorted keys
// and a trailing newline.
func MarshalCounters(c Counters) ([]byte, error) {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := []byte("{\n")
	for i, name := range names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf = append(buf, "  "...)
		buf = append(buf, key...)
		buf = append(buf, fmt.Sprintf(": %d", c[name])...)
		if i < len(names)-1 {
			buf = append(buf, ',')
		}
		buf = append(buf, '\n')
	}
	buf = append(buf, "}\n"...)
	return buf, nil
}

// UnmarshalCounters parses a counter JSON document.  Consumers tolerate
// both absent keys and keys present with value zero.
func UnmarshalCounters(data []byte) (Counters, error) {
	var c Counters
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = make(Counters)
	}
	return c, nil
}
