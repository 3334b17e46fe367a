package graph

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/GoCodeAlone/switchboard/provider"
)

// LoopStatus is the verdict of a LoopGuard check.
type LoopStatus int

const (
	LoopOK LoopStatus = iota
	LoopWarning
	LoopBreak
)

func (s LoopStatus) String() string {
	switch s {
	case LoopWarning:
		return "warning"
	case LoopBreak:
		return "break"
	default:
		return "ok"
	}
}

// LoopConfig holds the thresholds of a LoopGuard. Zero fields take the
// defaults noted on each.
type LoopConfig struct {
	// MaxConsecutive identical calls in a row (default 3).
	MaxConsecutive int `yaml:"max_consecutive"`
	// MaxErrors identical calls failing with the same error (default 2).
	MaxErrors int `yaml:"max_errors"`
	// MaxAlternating A/B call cycles (default 3).
	MaxAlternating int `yaml:"max_alternating"`
	// MaxNoProgress identical calls returning the same result (default 3).
	MaxNoProgress int `yaml:"max_no_progress"`
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxConsecutive <= 0 {
		c.MaxConsecutive = 3
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = 2
	}
	if c.MaxAlternating <= 0 {
		c.MaxAlternating = 3
	}
	if c.MaxNoProgress <= 0 {
		c.MaxNoProgress = 3
	}
	return c
}

type callRecord struct {
	tool   string
	args   string
	result string
	failed bool
}

// LoopGuard watches one agent's tool sub-loop for a model that keeps
// issuing the same calls without getting anywhere.
type LoopGuard struct {
	cfg     LoopConfig
	history []callRecord
}

// NewLoopGuard creates a guard with cfg.
func NewLoopGuard(cfg LoopConfig) *LoopGuard {
	return &LoopGuard{cfg: cfg.withDefaults()}
}

// Record notes a tool call and the tool-result message it produced.
func (g *LoopGuard) Record(call provider.ToolCall, result provider.Message) {
	args, _ := json.Marshal(call.Arguments)
	g.history = append(g.history, callRecord{
		tool:   call.Name,
		args:   digest(string(args)),
		result: digest(result.Content),
		failed: result.IsError,
	})
}

// Reset forgets every recorded call.
func (g *LoopGuard) Reset() { g.history = g.history[:0] }

// Check inspects the recorded calls. Break verdicts take precedence over
// warnings.
func (g *LoopGuard) Check() (LoopStatus, string) {
	if len(g.history) == 0 {
		return LoopOK, ""
	}
	for _, check := range []func() (LoopStatus, string){
		g.repeatedErrors,
		g.noProgress,
		g.consecutive,
		g.alternating,
	} {
		if status, msg := check(); status != LoopOK {
			return status, msg
		}
	}
	return LoopOK, ""
}

func (g *LoopGuard) last() callRecord { return g.history[len(g.history)-1] }

func sameCall(a, b callRecord) bool { return a.tool == b.tool && a.args == b.args }

func (g *LoopGuard) consecutive() (LoopStatus, string) {
	last := g.last()
	count := 0
	for i := len(g.history) - 1; i >= 0 && sameCall(g.history[i], last); i-- {
		count++
	}
	switch {
	case count >= g.cfg.MaxConsecutive:
		return LoopBreak, fmt.Sprintf("tool %q called with the same arguments %d times in a row", last.tool, count)
	case count >= 2 && count >= g.cfg.MaxConsecutive-1:
		return LoopWarning, fmt.Sprintf("tool %q called with the same arguments %d times in a row", last.tool, count)
	}
	return LoopOK, ""
}

func (g *LoopGuard) repeatedErrors() (LoopStatus, string) {
	last := g.last()
	if !last.failed {
		return LoopOK, ""
	}
	count := 0
	for _, r := range g.history {
		if sameCall(r, last) && r.failed && r.result == last.result {
			count++
		}
	}
	if count >= g.cfg.MaxErrors {
		return LoopBreak, fmt.Sprintf("tool %q returned the same error %d times", last.tool, count)
	}
	return LoopOK, ""
}

func (g *LoopGuard) noProgress() (LoopStatus, string) {
	last := g.last()
	if last.failed {
		return LoopOK, ""
	}
	count := 0
	for _, r := range g.history {
		if sameCall(r, last) && !r.failed && r.result == last.result {
			count++
		}
	}
	if count >= g.cfg.MaxNoProgress {
		return LoopBreak, fmt.Sprintf("tool %q returned identical results %d times", last.tool, count)
	}
	return LoopOK, ""
}

// alternating counts trailing A/B pairs.
func (g *LoopGuard) alternating() (LoopStatus, string) {
	n := len(g.history)
	if n < 4 {
		return LoopOK, ""
	}
	b, a := g.history[n-1], g.history[n-2]
	if sameCall(a, b) {
		return LoopOK, ""
	}
	cycles := 0
	for i := n - 1; i >= 1; i -= 2 {
		if !sameCall(g.history[i], b) || !sameCall(g.history[i-1], a) {
			break
		}
		cycles++
	}
	if cycles >= g.cfg.MaxAlternating {
		return LoopBreak, fmt.Sprintf("tools %q and %q alternated %d times", a.tool, b.tool, cycles)
	}
	return LoopOK, ""
}

func digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
