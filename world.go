package main

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrArenaFull    = errors.New("arena full")
	ErrNoSuchPlayer = errors.New("no such player")
	ErrArenaClosed  = errors.New("arena closed")
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// WorldOption configures a World
type WorldOption func(*World)

// WithListener attaches an event listener
func WithListener(l Listener) WorldOption {
	return func(w *World) { w.listener = l }
}

// WithID sets the arena id stamped on events
func WithID(id string) WorldOption {
	return func(w *World) { w.id = id }
}

// World holds the authoritative state of one arena and drives its ticks
type World struct {
	mu       sync.RWMutex
	id       string
	cfg      Config
	rng      Rand
	spawner  *Spawner
	viruses  *VirusManager
	pellets  *MassFoodManager
	players  []*Player
	clients  map[string]Broadcaster // playerID -> client
	grid     *SpatialGrid
	queryBuf []EntityRef
	listener Listener
	tick     uint64
	stopped  bool
	stop     chan struct{}
}

// NewWorld creates a world and seeds its initial viruses
func NewWorld(cfg Config, opts ...WorldOption) *World {
	rng := NewRand(cfg.Seed)
	w := &World{
		cfg:     cfg,
		rng:     rng,
		spawner: NewSpawner(rng, cfg.Width, cfg.Height),
		viruses: NewVirusManager(cfg, rng),
		pellets: NewMassFoodManager(cfg),
		clients: make(map[string]Broadcaster),
		grid:    NewSpatialGrid(cfg.Width, cfg.Height),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, v := range w.viruses.AddNew(cfg.Virus.InitialCount) {
		w.emit(Event{Kind: EvtVirusSpawn, Virus: v})
	}
	return w
}

// Run ticks the world until ctx is done or Stop is called
func (w *World) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.TickDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Tick()
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.stop:
			return
		}
	}
}

// Stop terminates the tick loop. Safe to call more than once, or before Run.
func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shutdown()
}

// StopIfEmpty stops the world only if it has no players, atomically with
// respect to AddPlayer. Reports whether the world is stopped.
func (w *World) StopIfEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.players) > 0 {
		return false
	}
	w.shutdown()
	return true
}

func (w *World) shutdown() {
	if !w.stopped {
		w.stopped = true
		close(w.stop)
	}
}

// Tick advances the world by one simulation step
func (w *World) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.update()
}

func (w *World) update() {
	w.tick++

	for _, p := range w.players {
		p.Update(w.cfg)
		if p.Firing {
			w.fire(p)
			p.Firing = false
		}
	}

	// Pellets read the virus set, viruses move, then splits join the set
	events := w.pellets.Step(w.cfg.Width, w.cfg.Height, w.viruses.All())
	w.viruses.Move(w.cfg.Width, w.cfg.Height)
	for _, e := range events {
		if e.Kind == EvtVirusSplit {
			w.viruses.PushNew(e.Virus)
			w.broadcastSplit(e)
		}
		w.emit(e)
	}

	w.consume()

	if missing := w.cfg.Virus.MinCount - w.viruses.Len(); missing > 0 {
		for _, v := range w.viruses.AddNew(missing) {
			w.emit(Event{Kind: EvtVirusSpawn, Virus: v})
		}
	}

	if w.tick%uint64(w.cfg.BroadcastEvery) == 0 {
		w.broadcastState()
	}
}

// fire ejects one pellet from every cell heavy enough to spare the mass
func (w *World) fire(p *Player) {
	ev := p.FiringEvent()
	for i, c := range p.Cells {
		if w.pellets.Len() >= w.cfg.Pellet.Max {
			return
		}
		if c.Mass < w.cfg.Pellet.MinCellMass {
			continue
		}
		pellet := w.pellets.AddNew(ev, i, w.cfg.Pellet.FireMass)
		if pellet == nil {
			continue
		}
		c.SetMass(c.Mass - w.cfg.Pellet.FireMass)
		w.emit(Event{Kind: EvtPelletFired, PlayerID: p.ID, Pellet: pellet})
	}
}

// consume lets player cells eat pellets and viruses they cover
func (w *World) consume() {
	if len(w.players) == 0 {
		return
	}
	w.grid.Clear()
	for i, f := range w.pellets.All() {
		w.grid.InsertCircle(f.X, f.Y, f.Radius, EntityRef{Kind: RefPellet, Idx: i})
	}
	for i, v := range w.viruses.All() {
		w.grid.InsertCircle(v.X, v.Y, v.Radius, EntityRef{Kind: RefVirus, Idx: i})
	}

	eatenPellets := make(map[int]bool)
	eatenViruses := make(map[int]bool)
	for _, p := range w.players {
		for _, c := range p.Cells {
			w.queryBuf = w.grid.QueryBuf(c.X, c.Y, c.Radius, w.queryBuf[:0])
			for _, ref := range w.queryBuf {
				switch ref.Kind {
				case RefPellet:
					f := w.pellets.At(ref.Idx)
					if eatenPellets[ref.Idx] || (f.OwnerID == p.ID && f.Speed > 0) {
						continue
					}
					if c.Mass <= f.Mass || !Colliding(c, f) {
						continue
					}
					eatenPellets[ref.Idx] = true
					c.SetMass(c.Mass + f.Mass)
					p.Eaten++
					w.emit(Event{Kind: EvtPelletEaten, PlayerID: p.ID, Pellet: f})
				case RefVirus:
					v := w.viruses.At(ref.Idx)
					if eatenViruses[ref.Idx] {
						continue
					}
					if c.Mass <= v.Mass*w.cfg.Player.EatRatio || !Colliding(c, v) {
						continue
					}
					eatenViruses[ref.Idx] = true
					c.SetMass(c.Mass + v.Mass)
					p.Eaten++
					w.emit(Event{Kind: EvtVirusEaten, PlayerID: p.ID, Virus: v})
				}
			}
		}
	}

	w.pellets.Remove(mapKeys(eatenPellets))

	doomed := mapKeys(eatenViruses)
	slices.SortFunc(doomed, func(a, b int) int { return b - a })
	for _, i := range doomed {
		w.viruses.Delete(i)
	}
}

func (w *World) emit(e Event) {
	if w.listener == nil {
		return
	}
	e.Tick = w.tick
	e.ArenaID = w.id
	if e.PlayerID != "" {
		if p := w.player(e.PlayerID); p != nil {
			e.AccountID = p.AccountID
		}
	}
	w.listener.OnEvent(e)
}

// AddPlayer spawns a new player away from existing bodies
func (w *World) AddPlayer(name string, opts ...PlayerOption) (*Player, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil, ErrArenaClosed
	}
	if len(w.players) >= w.cfg.Player.MaxPlayers {
		return nil, ErrArenaFull
	}

	// Uniform placement may settle on an occupied spot; fall back to the
	// free-spot search so a player does not start inside a virus
	radius := MassToRadius(w.cfg.Player.StartMass)
	bodies := w.bodies()
	pos := w.spawner.GetPosition(true, radius, bodies)
	if overlapsAny(pos, radius, bodies) {
		pos = w.spawner.GetPosition(false, radius, bodies)
	}
	hue := int(w.rng.Float64() * 360)
	p := NewPlayer(GenerateID(4), name, hue, pos, w.cfg.Player.StartMass)
	for _, opt := range opts {
		opt(p)
	}
	w.players = append(w.players, p)
	return p, nil
}

// RemovePlayer removes a player and its client
func (w *World) RemovePlayer(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.players = slices.DeleteFunc(w.players, func(p *Player) bool { return p.ID == id })
	delete(w.clients, id)
}

// SetClient associates a broadcaster with a player
func (w *World) SetClient(playerID string, client Broadcaster) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[playerID] = client
}

// HandleInput updates a player's aim target
func (w *World) HandleInput(playerID string, input ClientInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.player(playerID)
	if p == nil {
		return ErrNoSuchPlayer
	}
	p.Target = Vec(input.TX, input.TY)
	return nil
}

// Fire queues a mass ejection for the player's next tick
func (w *World) Fire(playerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.player(playerID)
	if p == nil {
		return ErrNoSuchPlayer
	}
	p.Firing = true
	return nil
}

// PlayerCount returns the number of players
func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// VirusCount returns the number of live viruses
func (w *World) VirusCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.viruses.Len()
}

// Config returns the world's configuration
func (w *World) Config() Config {
	return w.cfg
}

// Snapshot returns the current state
func (w *World) Snapshot() WorldState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot()
}

func (w *World) snapshot() WorldState {
	state := WorldState{
		Players: make([]PlayerState, 0, len(w.players)),
		Viruses: make([]VirusState, 0, w.viruses.Len()),
		Pellets: make([]PelletState, 0, w.pellets.Len()),
		Tick:    w.tick,
	}
	for _, p := range w.players {
		state.Players = append(state.Players, p.ToState())
	}
	for _, v := range w.viruses.All() {
		state.Viruses = append(state.Viruses, v.ToState())
	}
	for _, f := range w.pellets.All() {
		state.Pellets = append(state.Pellets, f.ToState())
	}
	return state
}

// broadcastState sends a msgpack snapshot to all clients
func (w *World) broadcastState() {
	if len(w.clients) == 0 {
		return
	}
	data, err := msgpack.Marshal(w.snapshot())
	if err != nil {
		log.Printf("world %s: marshal state: %v", w.id, err)
		return
	}
	for _, client := range w.clients {
		client.SendBinary(data)
	}
}

func (w *World) broadcastSplit(e Event) {
	msg := Envelope{T: MsgSplit, Data: SplitMsg{
		VirusID: e.Source.ID,
		NewID:   e.Virus.ID,
		X:       round1(e.Virus.X),
		Y:       round1(e.Virus.Y),
	}}
	for _, client := range w.clients {
		client.SendJSON(msg)
	}
}

func (w *World) player(id string) *Player {
	for _, p := range w.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (w *World) bodies() []Body {
	out := w.viruses.bodies()
	for _, p := range w.players {
		for _, c := range p.Cells {
			out = append(out, c)
		}
	}
	return out
}

func mapKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
