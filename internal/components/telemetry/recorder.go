package telemetry

import (
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelWarning
	LevelBroken
	LevelCount
)

// Event is a single call recorded by Recorder.
type Event struct {
	Level  Level
	Id     string
	Params []any
	Count  int64
}

// Recorder keeps every event in memory, it is used to assert on reports in tests.
type Recorder struct {
	mutex  sync.Mutex
	events []Event
}

func (r *Recorder) push(e Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.push(Event{Level: LevelBroken, Id: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.push(Event{Level: LevelWarning, Id: id, Params: params})
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.push(Event{Level: LevelDebug, Id: msg, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.push(Event{Level: LevelCount, Id: id, Count: count})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Has reports whether an event with the given level has an id ending in suffix.
func (r *Recorder) Has(level Level, suffix string) bool {
	for _, e := range r.Events() {
		if e.Level == level && strings.HasSuffix(e.Id, suffix) {
			return true
		}
	}
	return false
}
