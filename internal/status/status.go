// Package status reports the phase of long-running shell operations
// (loading, saving, compiling) to the user.
package status

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Phase is a user-visible processing phase.
type Phase string

const (
	FirstRun    Phase = "first-run"
	Idle        Phase = "idle"
	Loading     Phase = "loading"
	Saving      Phase = "saving"
	SavingDraft Phase = "saving-draft"
	Compiling   Phase = "compiling"
	Saved       Phase = "saved"
	Deleting    Phase = "deleting"
	Deleted     Phase = "deleted"
	Error       Phase = "error"
)

var messages = map[Phase]string{
	FirstRun:    "Preparing storage for first use...",
	Idle:        "Waiting.",
	Loading:     "Loading script...",
	Saving:      "Saving in DB...",
	SavingDraft: "Saving draft json...",
	Compiling:   "Compiling texts...",
	Saved:       "Saved.",
	Deleting:    "Deleting DB...",
	Deleted:     "DB deleted.",
	Error:       "Something happened.",
}

// Message returns the user-facing message for a phase.
func (p Phase) Message() string {
	if m, ok := messages[p]; ok {
		return m
	}
	return string(p)
}

// settles reports whether the phase ends an operation and should fall
// back to Idle after a while.
func (p Phase) settles() bool {
	switch p {
	case FirstRun, Saved, Deleted, Error:
		return true
	}
	return false
}

// Reporter receives phase transitions.
type Reporter interface {
	Set(p Phase)
}

// LogReporter logs every transition and returns to Idle a fixed delay
// after a terminal phase.
type LogReporter struct {
	mu      sync.Mutex
	current Phase
	delay   time.Duration
	timer   *time.Timer
	gen     int
}

// NewLogReporter creates a reporter that resets to Idle after delay.
// A zero delay disables the reset.
func NewLogReporter(delay time.Duration) *LogReporter {
	return &LogReporter{current: Idle, delay: delay}
}

// Set records p as the current phase.
func (r *LogReporter) Set(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.current = p
	r.gen++

	ev := log.Info()
	if p == Error {
		ev = log.Error()
	}
	ev.Str("status", string(p)).Msg(p.Message())

	if p.settles() && r.delay > 0 {
		gen := r.gen
		r.timer = time.AfterFunc(r.delay, func() { r.reset(gen) })
	}
}

// Current returns the current phase.
func (r *LogReporter) Current() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *LogReporter) reset(gen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	r.current = Idle
	r.timer = nil
	log.Debug().Str("status", string(Idle)).Msg(Idle.Message())
}

// Recorder keeps every phase it receives.
type Recorder struct {
	mu     sync.Mutex
	phases []Phase
}

// Set appends p to the history.
func (r *Recorder) Set(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
}

// Phases returns a copy of the recorded history.
func (r *Recorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// Fanout forwards each phase to every reporter.
type Fanout []Reporter

// Set forwards p.
func (f Fanout) Set(p Phase) {
	for _, r := range f {
		r.Set(p)
	}
}
