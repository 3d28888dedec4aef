package main

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// AnalyticsEvent is a flattened simulation event ready for persistence
type AnalyticsEvent struct {
	Type      EventKind
	ArenaID   string
	Tick      uint64
	PlayerID  string
	AccountID int64
	VirusID   string
	Mass      float64
	X, Y      float64
	Timestamp time.Time
}

// Analytics records simulation events with batched background writes.
// It is a Listener, so the simulation core never knows about it.
type Analytics struct {
	db      *DB
	events  chan AnalyticsEvent
	stop    chan struct{}
	wg      sync.WaitGroup
	dropped int64 // guarded by mu

	mu     sync.RWMutex
	counts map[EventKind]int
}

// NewAnalytics creates and starts the analytics background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, 1024),
		stop:   make(chan struct{}),
		counts: make(map[EventKind]int),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// OnEvent implements Listener. Non-blocking: drops when the queue is full.
func (a *Analytics) OnEvent(e Event) {
	evt := AnalyticsEvent{
		Type:      e.Kind,
		ArenaID:   e.ArenaID,
		Tick:      e.Tick,
		PlayerID:  e.PlayerID,
		AccountID: e.AccountID,
		Timestamp: time.Now().UTC(),
	}
	switch {
	case e.Virus != nil:
		evt.VirusID = e.Virus.ID
		evt.Mass = e.Virus.Mass
		evt.X, evt.Y = e.Virus.X, e.Virus.Y
	case e.Pellet != nil:
		evt.Mass = e.Pellet.Mass
		evt.X, evt.Y = e.Pellet.X, e.Pellet.Y
		if e.Source != nil {
			evt.VirusID = e.Source.ID
		}
	}

	a.mu.Lock()
	a.counts[e.Kind]++
	a.mu.Unlock()

	select {
	case a.events <- evt:
	default:
		// Queue full, drop the event
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

// LiveCounts returns in-memory event counts since start
func (a *Analytics) LiveCounts() map[EventKind]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[EventKind]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// Dropped returns how many events were dropped on a full queue
func (a *Analytics) Dropped() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dropped
}

// Stop flushes pending events and shuts down the writer
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= 50 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
		drain:
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				a.flush(batch)
			}
			return
		}
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		log.Printf("analytics: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO arena_events (event_type, arena_id, tick, player_id, account_id, virus_id, mass, x, y, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		aid := sql.NullString{String: evt.ArenaID, Valid: evt.ArenaID != ""}
		pid := sql.NullString{String: evt.PlayerID, Valid: evt.PlayerID != ""}
		acct := sql.NullInt64{Int64: evt.AccountID, Valid: evt.AccountID != 0}
		vid := sql.NullString{String: evt.VirusID, Valid: evt.VirusID != ""}
		_, err := stmt.Exec(string(evt.Type), aid, int64(evt.Tick), pid, acct, vid, evt.Mass, evt.X, evt.Y,
			evt.Timestamp.Format(time.RFC3339))
		if err != nil {
			log.Printf("analytics: insert error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("analytics: commit error: %v", err)
	}
}

// EventCounts returns persisted counts of each event type, optionally for one arena
func (a *Analytics) EventCounts(arenaID string) (map[EventKind]int, error) {
	return a.countEvents(`WHERE ? = '' OR arena_id = ?`, arenaID, arenaID)
}

// AccountCounts returns persisted counts of each event type caused by an account
func (a *Analytics) AccountCounts(accountID int64) (map[EventKind]int, error) {
	return a.countEvents(`WHERE account_id = ?`, accountID)
}

func (a *Analytics) countEvents(where string, args ...interface{}) (map[EventKind]int, error) {
	if a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`SELECT event_type, COUNT(*) FROM arena_events `+where+` GROUP BY event_type`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[EventKind]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			return nil, err
		}
		result[EventKind(evtType)] = count
	}
	return result, rows.Err()
}
