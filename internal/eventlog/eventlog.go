// Package eventlog implements the event log sink (C2): an append-only,
// bounded ring of structured decision records, mirrored both to a process
// logger and to a durable append-only writer. It never blocks the tick loop.
package eventlog

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ringCapacity is the minimum retained in-memory entry count (spec §4.2: >= 100).
const ringCapacity = 128

// durableCapacity bounds the durable mirror (spec §6: at most 500 entries retained).
const durableCapacity = 500

// Entry is one structured decision or informational record.
type Entry struct {
	Time      string  `json:"time"`
	Actor     string  `json:"agent"`
	Action    string  `json:"action"`
	TTC       float64 `json:"ttc"`
	Reason    string  `json:"reason"`
	Timestamp float64 `json:"timestamp"`
}

// Sink is the event log: a bounded ring for readers plus a durable mirror.
type Sink struct {
	mu      sync.Mutex
	ring    []Entry
	durable []Entry
	writer  io.Writer
	log     *logrus.Logger
	now     func() time.Time
}

// Option configures a Sink at construction.
type Option func(*Sink)

// WithWriter sets the durable append-only mirror. When unset, the durable
// mirror is kept only in memory (capped at durableCapacity) and never
// flushed to an external writer — callers that need persistence across
// process restarts must supply one explicitly.
func WithWriter(w io.Writer) Option {
	return func(s *Sink) { s.writer = w }
}

// WithLogger overrides the process-wide logger used for console mirroring.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Sink) { s.log = l }
}

// New returns an empty Sink.
func New(opts ...Option) *Sink {
	s := &Sink{
		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogDecision records an agent or arbiter decision. action is an upper-case
// tag such as GO, YIELD, BRAKE, CLEARANCE, CLEARANCE_SPEED, YIELD_SPEED_OVERRIDE,
// STOP, HOLD. ttc is a scalar metric (seconds), not always time-to-collision.
func (s *Sink) LogDecision(actor, action string, ttc float64, reason string) Entry {
	e := Entry{
		Time:      s.now().Format("15:04:05"),
		Actor:     actor,
		Action:    action,
		TTC:       round2(ttc),
		Reason:    reason,
		Timestamp: float64(s.now().UnixNano()) / 1e9,
	}
	s.append(e)

	level := logrus.InfoLevel
	switch action {
	case "BRAKE", "YIELD", "YIELD_SPEED_OVERRIDE":
		level = logrus.WarnLevel
	}
	s.log.WithFields(logrus.Fields{"actor": actor, "action": action, "ttc": e.TTC}).Log(level, reason)
	return e
}

// LogInfo records an informational, non-decision entry (e.g. scenario load,
// signal phase transition).
func (s *Sink) LogInfo(msg string) {
	e := Entry{
		Time:      s.now().Format("15:04:05"),
		Actor:     "",
		Action:    "INFO",
		Reason:    msg,
		Timestamp: float64(s.now().UnixNano()) / 1e9,
	}
	s.append(e)
	s.log.Info(msg)
}

// LogCollision records a physical collision between two vehicles.
func (s *Sink) LogCollision(a, b string) Entry {
	e := Entry{
		Time:      s.now().Format("15:04:05"),
		Actor:     a + "+" + b,
		Action:    "COLLISION",
		Reason:    "no cooperation — physical collision",
		Timestamp: float64(s.now().UnixNano()) / 1e9,
	}
	s.append(e)
	s.log.WithFields(logrus.Fields{"a": a, "b": b}).Error("collision")
	return e
}

func (s *Sink) append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring = append(s.ring, e)
	if len(s.ring) > ringCapacity {
		s.ring = s.ring[len(s.ring)-ringCapacity:]
	}

	s.durable = append(s.durable, e)
	if len(s.durable) > durableCapacity {
		s.durable = s.durable[len(s.durable)-durableCapacity:]
	}
	if s.writer != nil {
		// Best effort: a durable-write failure must never stop the tick loop.
		if data, err := json.Marshal(s.durable); err == nil {
			_, _ = s.writer.Write(data)
		}
	}
}

// GetRecent returns the last n entries, most recent last.
func (s *Sink) GetRecent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.ring) {
		n = len(s.ring)
	}
	out := make([]Entry, n)
	copy(out, s.ring[len(s.ring)-n:])
	return out
}

// Clear empties the ring (and the in-memory durable mirror) at scenario reset.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = nil
	s.durable = nil
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
