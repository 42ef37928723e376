// Package report builds the human readable list of problems added during a run.
package report

import (
	"strings"
)

const header = "added problems:\n"

// Report is an append-only log of added records. A record id is logged at most once, so the
// crawler and the merger can share one Report in a single run.
type Report struct {
	seen  map[int]bool
	lines []string
}

func New() *Report {
	return &Report{seen: make(map[int]bool)}
}

// Add appends line for id. It reports false if id was already logged.
func (r *Report) Add(id int, line string) bool {
	if r.seen[id] {
		return false
	}
	r.seen[id] = true
	r.lines = append(r.lines, line)
	return true
}

func (r *Report) Len() int {
	return len(r.lines)
}

// Lines returns a copy of the logged lines in insertion order.
func (r *Report) Lines() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// String renders the report with the lines wrapped in a fenced block.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("```\n")
	for _, l := range r.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("```\n")
	return b.String()
}

func (r *Report) Bytes() []byte {
	return []byte(r.String())
}
