package render

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler backs r_speeds: named CPU scopes in insertion order plus counters
// (surfaces drawn, entities, dlight relights).
type Profiler struct {
	scopes map[string]time.Duration
	starts map[string]time.Time
	counts map[string]int
	order  []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]time.Duration),
		starts: make(map[string]time.Time),
		counts: make(map[string]int),
	}
}

func (p *Profiler) Begin(name string) {
	p.starts[name] = time.Now()
	if _, ok := p.scopes[name]; !ok {
		p.order = append(p.order, name)
		p.scopes[name] = 0
	}
}

func (p *Profiler) End(name string) {
	if start, ok := p.starts[name]; ok {
		p.scopes[name] = time.Since(start)
	}
}

func (p *Profiler) SetCount(name string, n int) {
	p.counts[name] = n
}

func (p *Profiler) Reset() {
	for k := range p.scopes {
		p.scopes[k] = 0
	}
	for k := range p.counts {
		delete(p.counts, k)
	}
}

// Stats renders the r_speeds console block.
func (p *Profiler) Stats() string {
	var sb strings.Builder
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		fmt.Fprintf(&sb, "%-12s %6.2f ms\n", name, ms)
	}
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%-12s %6d\n", k, p.counts[k])
	}
	return sb.String()
}
