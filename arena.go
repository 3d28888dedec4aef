package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	maxArenas          = 100
	arenaSweepInterval = 5 * time.Second
)

// ArenaIdleTimeout is how long a created arena may stay empty before it is
// dropped. Variable so tests can shorten it.
var ArenaIdleTimeout = 60 * time.Second

var (
	ErrArenaNotFound = errors.New("arena not found")
	ErrTooManyArenas = errors.New("too many active arenas")
)

// Arena is a named world that players can join
type Arena struct {
	ID    string
	Name  string
	World *World

	emptySince time.Time // zero while players are present; guarded by ArenaManager.mu
}

// ArenaManager handles creation and lookup of arenas
type ArenaManager struct {
	mu        sync.RWMutex
	ctx       context.Context
	cfg       Config
	listener  Listener
	arenas    map[string]*Arena
	defaultID string
}

// NewArenaManager creates a manager with a running default arena. Every arena
// it creates ticks until ctx is cancelled or it is dropped.
func NewArenaManager(ctx context.Context, cfg Config, listener Listener) *ArenaManager {
	am := &ArenaManager{
		ctx:      ctx,
		cfg:      cfg,
		listener: listener,
		arenas:   make(map[string]*Arena),
	}
	def, _ := am.CreateArena("Main Arena")
	am.defaultID = def.ID
	go am.sweepLoop()
	return am
}

func (am *ArenaManager) sweepLoop() {
	ticker := time.NewTicker(arenaSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			am.sweep(now)
		case <-am.ctx.Done():
			return
		}
	}
}

// sweep drops arenas other than the default that have been empty for
// ArenaIdleTimeout. An empty arena is first marked, then dropped on a later
// sweep, so a fresh arena gets the full timeout to be joined.
func (am *ArenaManager) sweep(now time.Time) {
	am.mu.Lock()
	defer am.mu.Unlock()
	for id, a := range am.arenas {
		if id == am.defaultID {
			continue
		}
		if a.World.PlayerCount() > 0 {
			a.emptySince = time.Time{}
			continue
		}
		if a.emptySince.IsZero() {
			a.emptySince = now
			continue
		}
		if now.Sub(a.emptySince) >= ArenaIdleTimeout && a.World.StopIfEmpty() {
			delete(am.arenas, id)
		}
	}
}

// CreateArena opens a new arena and starts its tick loop
func (am *ArenaManager) CreateArena(name string) (*Arena, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	if len(am.arenas) >= maxArenas {
		return nil, ErrTooManyArenas
	}

	id := GenerateUUID()
	opts := []WorldOption{WithID(id)}
	if am.listener != nil {
		opts = append(opts, WithListener(am.listener))
	}
	arena := &Arena{
		ID:    id,
		Name:  name,
		World: NewWorld(am.cfg, opts...),
	}
	am.arenas[id] = arena
	go arena.World.Run(am.ctx)
	return arena, nil
}

// GetArena returns an arena by ID; an empty ID selects the default arena
func (am *ArenaManager) GetArena(id string) (*Arena, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()
	if id == "" {
		id = am.defaultID
	}
	arena, ok := am.arenas[id]
	if !ok {
		return nil, ErrArenaNotFound
	}
	return arena, nil
}

// Default returns the arena that is never dropped
func (am *ArenaManager) Default() *Arena {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.arenas[am.defaultID]
}

// RemovePlayer removes a player from an arena and drops the arena once empty.
// A join racing with the last leave either lands before the drop, keeping the
// arena alive, or gets ErrArenaClosed from the stopped world.
func (am *ArenaManager) RemovePlayer(arenaID, playerID string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	arena, ok := am.arenas[arenaID]
	if !ok {
		return
	}
	arena.World.RemovePlayer(playerID)

	if arenaID != am.defaultID && arena.World.StopIfEmpty() {
		delete(am.arenas, arenaID)
	}
}

// ListArenas returns info about all active arenas
func (am *ArenaManager) ListArenas() []ArenaInfo {
	am.mu.RLock()
	defer am.mu.RUnlock()

	list := make([]ArenaInfo, 0, len(am.arenas))
	for _, a := range am.arenas {
		list = append(list, ArenaInfo{
			ID:      a.ID,
			Name:    a.Name,
			Players: a.World.PlayerCount(),
			Viruses: a.World.VirusCount(),
		})
	}
	return list
}

// Count returns the number of active arenas
func (am *ArenaManager) Count() int {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return len(am.arenas)
}
