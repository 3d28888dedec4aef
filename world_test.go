package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

type recordingClient struct {
	mu     sync.Mutex
	json   []interface{}
	frames [][]byte
}

func (c *recordingClient) SendJSON(msg interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.json = append(c.json, msg)
}

func (c *recordingClient) SendBinary(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds(kind EventKind) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func testWorldConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 2000, 2000
	cfg.Seed = 1
	cfg.BroadcastEvery = 1
	cfg.Virus.InitialCount = 0
	cfg.Virus.MinCount = 0
	return cfg
}

// placePlayer moves a player's only cell and centre to pos
func placePlayer(p *Player, pos Vector2, mass float64) *Cell {
	c := p.Cells[0]
	c.SetPos(pos)
	c.SetMass(mass)
	p.X, p.Y = pos.X, pos.Y
	return c
}

func TestWorldTickCounter(t *testing.T) {
	w := NewWorld(testWorldConfig())
	for i := 0; i < 3; i++ {
		w.Tick()
	}
	if tick := w.Snapshot().Tick; tick != 3 {
		t.Errorf("expected tick 3, got %d", tick)
	}
}

func TestWorldSeedsInitialViruses(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Virus.InitialCount, cfg.Virus.MinCount = 10, 10
	log := &eventLog{}
	w := NewWorld(cfg, WithID("arena-1"), WithListener(log))

	if w.VirusCount() != 10 {
		t.Fatalf("expected 10 viruses, got %d", w.VirusCount())
	}
	spawns := log.kinds(EvtVirusSpawn)
	if len(spawns) != 10 {
		t.Fatalf("expected 10 spawn events, got %d", len(spawns))
	}
	if spawns[0].ArenaID != "arena-1" || spawns[0].Virus == nil {
		t.Errorf("spawn event not stamped: %+v", spawns[0])
	}
}

func TestWorldFire(t *testing.T) {
	log := &eventLog{}
	w := NewWorld(testWorldConfig(), WithListener(log))
	p, err := w.AddPlayer("alice")
	if err != nil {
		t.Fatal(err)
	}
	c := placePlayer(p, Vec(1000, 1000), 100)

	if err := w.HandleInput(p.ID, ClientInput{TX: 10, TY: 0}); err != nil {
		t.Fatal(err)
	}
	if err := w.Fire(p.ID); err != nil {
		t.Fatal(err)
	}
	w.Tick()

	if w.pellets.Len() != 1 {
		t.Fatalf("expected 1 pellet, got %d", w.pellets.Len())
	}
	if c.Mass != 90 {
		t.Errorf("cell should lose fired mass, got %f", c.Mass)
	}
	pellet := w.pellets.At(0)
	if pellet.OwnerID != p.ID || pellet.Direction != Vec(1, 0) {
		t.Errorf("unexpected pellet %+v", pellet)
	}
	if len(log.kinds(EvtPelletFired)) != 1 {
		t.Error("expected a pellet_fired event")
	}

	// Firing is one-shot and the owner does not eat its moving pellet
	w.Tick()
	if w.pellets.Len() != 1 || c.Mass != 90 {
		t.Errorf("second tick changed pellets=%d mass=%f", w.pellets.Len(), c.Mass)
	}
}

func TestWorldFireNeedsMinCellMass(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Pellet.MinCellMass = 50
	w := NewWorld(cfg)
	p, _ := w.AddPlayer("bob")

	w.Fire(p.ID)
	w.Tick()
	if w.pellets.Len() != 0 {
		t.Error("light cell should not fire")
	}
	if p.TotalMass() != cfg.Player.StartMass {
		t.Errorf("mass changed to %f", p.TotalMass())
	}
}

func TestWorldFireRespectsPelletCap(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Pellet.Max = 1
	w := NewWorld(cfg)
	p, _ := w.AddPlayer("carol")
	placePlayer(p, Vec(1000, 1000), 100)
	w.HandleInput(p.ID, ClientInput{TX: 10})

	w.Fire(p.ID)
	w.Tick()
	w.Fire(p.ID)
	w.Tick()
	if w.pellets.Len() != 1 {
		t.Errorf("pellet cap ignored, %d pellets", w.pellets.Len())
	}
	if p.TotalMass() != 90 {
		t.Errorf("only one shot should cost mass, got %f", p.TotalMass())
	}
}

func TestWorldPelletSplitsVirus(t *testing.T) {
	cfg := testWorldConfig()
	log := &eventLog{}
	w := NewWorld(cfg, WithID("arena-2"), WithListener(log))
	client := &recordingClient{}
	w.SetClient("watcher", client)

	parent := NewVirus(Vec(1000, 1000), 175, cfg.Virus)
	w.viruses.PushNew(parent)
	w.pellets.AddNew(fireFrom(900, 1000, 10, 0), 0, 10)

	w.Tick()

	if w.VirusCount() != 2 {
		t.Fatalf("expected split to add a virus, got %d", w.VirusCount())
	}
	if w.pellets.Len() != 0 {
		t.Error("absorbed pellet should be gone")
	}
	splits := log.kinds(EvtVirusSplit)
	if len(splits) != 1 {
		t.Fatalf("expected 1 split event, got %d", len(splits))
	}
	if splits[0].Tick != 1 || splits[0].ArenaID != "arena-2" || splits[0].Source != parent {
		t.Errorf("split event = %+v", splits[0])
	}
	if len(log.kinds(EvtPelletAbsorbed)) != 1 {
		t.Error("expected a pellet_absorbed event")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	var sawSplit bool
	for _, m := range client.json {
		if env, ok := m.(Envelope); ok && env.T == MsgSplit {
			msg := env.Data.(SplitMsg)
			sawSplit = msg.VirusID == parent.ID && msg.NewID == w.viruses.At(1).ID
		}
	}
	if !sawSplit {
		t.Error("clients should be told about the split")
	}
}

func TestWorldPlayerEatsVirus(t *testing.T) {
	cfg := testWorldConfig()
	log := &eventLog{}
	w := NewWorld(cfg, WithListener(log))
	p, _ := w.AddPlayer("dave")
	c := placePlayer(p, Vec(1000, 1000), 200)
	w.viruses.PushNew(NewVirus(Vec(1000, 1000), 100, cfg.Virus))

	w.Tick()
	if w.VirusCount() != 0 {
		t.Fatal("virus should be eaten")
	}
	if c.Mass != 300 {
		t.Errorf("cell mass = %f, want 300", c.Mass)
	}
	if c.Radius != MassToRadius(300) {
		t.Error("radius should follow mass")
	}
	eaten := log.kinds(EvtVirusEaten)
	if len(eaten) != 1 || eaten[0].PlayerID != p.ID {
		t.Errorf("expected one virus_eaten event for %s, got %+v", p.ID, eaten)
	}
}

func TestWorldCellTooSmallForVirus(t *testing.T) {
	cfg := testWorldConfig()
	w := NewWorld(cfg)
	p, _ := w.AddPlayer("erin")
	c := placePlayer(p, Vec(1000, 1000), 105)
	w.viruses.PushNew(NewVirus(Vec(1000, 1000), 100, cfg.Virus))

	w.Tick()
	if w.VirusCount() != 1 || c.Mass != 105 {
		t.Errorf("cell below eat ratio should not eat: viruses=%d mass=%f", w.VirusCount(), c.Mass)
	}
}

func TestWorldPlayerEatsRestingPellet(t *testing.T) {
	cfg := testWorldConfig()
	w := NewWorld(cfg)
	p, _ := w.AddPlayer("frank")
	c := placePlayer(p, Vec(1000, 1000), 50)
	pellet := w.pellets.AddNew(fireFrom(1000, 1000, 10, 0), 0, 10)
	pellet.Speed = 0

	w.Tick()
	if w.pellets.Len() != 0 {
		t.Fatal("resting pellet should be eaten")
	}
	if c.Mass != 60 || p.Eaten != 1 {
		t.Errorf("mass=%f eaten=%d", c.Mass, p.Eaten)
	}
}

func TestWorldTopsUpViruses(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Virus.InitialCount, cfg.Virus.MinCount = 5, 5
	w := NewWorld(cfg)
	w.viruses.Delete(0)
	w.viruses.Delete(0)

	w.Tick()
	if w.VirusCount() != 5 {
		t.Errorf("expected top-up to 5, got %d", w.VirusCount())
	}
}

func TestWorldBroadcastsMsgpackState(t *testing.T) {
	w := NewWorld(testWorldConfig())
	p, _ := w.AddPlayer("gina")
	client := &recordingClient{}
	w.SetClient(p.ID, client)

	w.Tick()

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.frames) != 1 {
		t.Fatalf("expected 1 state frame, got %d", len(client.frames))
	}
	var state WorldState
	if err := msgpack.Unmarshal(client.frames[0], &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Tick != 1 || len(state.Players) != 1 || state.Players[0].ID != p.ID {
		t.Errorf("unexpected state %+v", state)
	}
	if state.Players[0].Name != "gina" || len(state.Players[0].Cells) != 1 {
		t.Errorf("player state incomplete: %+v", state.Players[0])
	}
}

func TestWorldBroadcastInterval(t *testing.T) {
	cfg := testWorldConfig()
	cfg.BroadcastEvery = 2
	w := NewWorld(cfg)
	p, _ := w.AddPlayer("hank")
	client := &recordingClient{}
	w.SetClient(p.ID, client)

	w.Tick()
	w.Tick()
	w.Tick()

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.frames) != 1 {
		t.Errorf("expected 1 frame over 3 ticks, got %d", len(client.frames))
	}
}

func TestWorldDeterministicWithSeed(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Seed = 99
	cfg.Virus.InitialCount, cfg.Virus.MinCount = 20, 20
	a, b := NewWorld(cfg), NewWorld(cfg)

	sa, sb := a.Snapshot(), b.Snapshot()
	for i := range sa.Viruses {
		va, vb := sa.Viruses[i], sb.Viruses[i]
		if va.X != vb.X || va.Y != vb.Y || va.Mass != vb.Mass {
			t.Fatalf("virus %d differs: %+v vs %+v", i, va, vb)
		}
	}
}

func TestWorldAddPlayerFull(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Player.MaxPlayers = 1
	w := NewWorld(cfg)
	if _, err := w.AddPlayer("one"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddPlayer("two"); !errors.Is(err, ErrArenaFull) {
		t.Errorf("expected ErrArenaFull, got %v", err)
	}
}

func TestWorldUnknownPlayer(t *testing.T) {
	w := NewWorld(testWorldConfig())
	if err := w.HandleInput("nope", ClientInput{}); !errors.Is(err, ErrNoSuchPlayer) {
		t.Errorf("HandleInput: expected ErrNoSuchPlayer, got %v", err)
	}
	if err := w.Fire("nope"); !errors.Is(err, ErrNoSuchPlayer) {
		t.Errorf("Fire: expected ErrNoSuchPlayer, got %v", err)
	}
}

func TestWorldRemovePlayer(t *testing.T) {
	w := NewWorld(testWorldConfig())
	p, _ := w.AddPlayer("ivy")
	client := &recordingClient{}
	w.SetClient(p.ID, client)
	w.RemovePlayer(p.ID)

	if w.PlayerCount() != 0 {
		t.Fatal("player not removed")
	}
	w.Tick()
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.frames) != 0 {
		t.Error("removed player's client should get no frames")
	}
}

func TestWorldRunStopsOnCancel(t *testing.T) {
	w := NewWorld(testWorldConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if w.Snapshot().Tick == 0 {
		t.Error("world should have ticked while running")
	}
	w.Stop() // second stop is a no-op
}

func TestWorldStopBeforeRun(t *testing.T) {
	w := NewWorld(testWorldConfig())
	w.Stop()
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run should return when already stopped")
	}
}

func TestWorldAddPlayerAfterStop(t *testing.T) {
	w := NewWorld(testWorldConfig())
	w.Stop()
	if _, err := w.AddPlayer("late"); !errors.Is(err, ErrArenaClosed) {
		t.Errorf("expected ErrArenaClosed, got %v", err)
	}
}

func TestWorldStopIfEmpty(t *testing.T) {
	w := NewWorld(testWorldConfig())
	p, _ := w.AddPlayer("kim")
	if w.StopIfEmpty() {
		t.Fatal("world with a player must not stop")
	}
	q, err := w.AddPlayer("lee")
	if err != nil {
		t.Fatalf("world should still accept players: %v", err)
	}

	w.RemovePlayer(p.ID)
	w.RemovePlayer(q.ID)
	if !w.StopIfEmpty() {
		t.Fatal("empty world should stop")
	}
	if _, err := w.AddPlayer("max"); !errors.Is(err, ErrArenaClosed) {
		t.Errorf("expected ErrArenaClosed, got %v", err)
	}
	if !w.StopIfEmpty() {
		t.Error("stopping twice should still report stopped")
	}
}

func TestWorldSpawnsPlayersClearOfViruses(t *testing.T) {
	cfg := testWorldConfig()
	cfg.Virus.InitialCount = 40
	w := NewWorld(cfg)
	viruses := w.viruses.bodies()

	for i := 0; i < 20; i++ {
		p, err := w.AddPlayer("p")
		if err != nil {
			t.Fatal(err)
		}
		c := p.Cells[0]
		for _, v := range viruses {
			if Colliding(c, v) {
				t.Fatalf("player %d spawned inside virus at %v", i, v.Pos())
			}
		}
	}
}

func TestWorldAccountPlayers(t *testing.T) {
	log := &eventLog{}
	w := NewWorld(testWorldConfig(), WithListener(log))
	guest, _ := w.AddPlayer("guest")
	member, err := w.AddPlayer("Ace", WithAccount(7, "pilot"))
	if err != nil {
		t.Fatal(err)
	}
	placePlayer(guest, Vec(300, 300), 100)
	placePlayer(member, Vec(1000, 1000), 100)

	for _, ps := range w.Snapshot().Players {
		switch ps.ID {
		case member.ID:
			if ps.Name != "Ace" || ps.Account != "pilot" {
				t.Errorf("member state = %+v", ps)
			}
		case guest.ID:
			if ps.Account != "" {
				t.Errorf("guest should have no account, got %q", ps.Account)
			}
		}
	}

	w.HandleInput(member.ID, ClientInput{TX: 10, TY: 0})
	w.HandleInput(guest.ID, ClientInput{TX: 0, TY: 10})
	w.Fire(member.ID)
	w.Fire(guest.ID)
	w.Tick()
	fired := log.kinds(EvtPelletFired)
	if len(fired) != 2 {
		t.Fatalf("expected 2 pellet_fired events, got %d", len(fired))
	}
	for _, e := range fired {
		want := int64(0)
		if e.PlayerID == member.ID {
			want = 7
		}
		if e.AccountID != want {
			t.Errorf("event for %s has account %d, want %d", e.PlayerID, e.AccountID, want)
		}
	}
}
