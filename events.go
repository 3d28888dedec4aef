package main

// EventKind names a simulation event
type EventKind string

const (
	EvtVirusSpawn     EventKind = "virus_spawn"
	EvtVirusSplit     EventKind = "virus_split"
	EvtVirusEaten     EventKind = "virus_eaten"
	EvtPelletFired    EventKind = "pellet_fired"
	EvtPelletAbsorbed EventKind = "pellet_absorbed"
	EvtPelletEaten    EventKind = "pellet_eaten"
)

// Event describes something that happened during a tick. Managers return
// events from their read pass; the World applies them and notifies listeners.
type Event struct {
	Kind      EventKind
	Tick      uint64
	ArenaID   string
	PlayerID  string
	AccountID int64     // account behind PlayerID, 0 for guests
	Virus     *Virus    // spawned, split-off or eaten virus
	Source    *Virus    // virus that absorbed a pellet or split
	Pellet    *MassFood // fired, absorbed or eaten pellet
}

// Listener observes simulation events. Called with the world lock held, so
// implementations must not block or call back into the World.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Listeners fans an event out to every listener
type Listeners []Listener

func (ls Listeners) OnEvent(e Event) {
	for _, l := range ls {
		l.OnEvent(e)
	}
}

// SplitViruses returns the split-off viruses carried by events
func SplitViruses(events []Event) []*Virus {
	var out []*Virus
	for _, e := range events {
		if e.Kind == EvtVirusSplit && e.Virus != nil {
			out = append(out, e.Virus)
		}
	}
	return out
}

// removeIndexes returns data without the entries at the given indexes.
// Duplicate and out of range indexes are ignored.
func removeIndexes[T any](data []T, indexes []int) []T {
	if len(indexes) == 0 {
		return data
	}
	drop := make(map[int]struct{}, len(indexes))
	for _, i := range indexes {
		if i >= 0 && i < len(data) {
			drop[i] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return data
	}
	out := data[:0]
	for i, v := range data {
		if _, ok := drop[i]; !ok {
			out = append(out, v)
		}
	}
	var zero T
	for i := len(out); i < len(data); i++ {
		data[i] = zero
	}
	return out
}
