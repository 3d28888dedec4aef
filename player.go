package main

import "math"

// Cell is one body of a player
type Cell struct {
	X, Y   float64
	Mass   float64
	Radius float64
}

func (c *Cell) Pos() Vector2     { return Vector2{X: c.X, Y: c.Y} }
func (c *Cell) SetPos(p Vector2) { c.X, c.Y = p.X, p.Y }
func (c *Cell) Size() float64    { return c.Radius }

// SetMass updates mass and radius together
func (c *Cell) SetMass(mass float64) {
	c.Mass = mass
	c.Radius = MassToRadius(mass)
}

// Player represents a player in the arena
type Player struct {
	ID     string
	Name   string
	Hue    int
	X, Y   float64 // mean of the cell positions
	Target Vector2 // aim offset from the player centre (mouse)
	Cells  []*Cell
	Firing bool
	Eaten  int // pellets and viruses consumed

	AccountID int64  // 0 for guests
	Account   string // account username, "" for guests
}

// PlayerOption configures a joining player
type PlayerOption func(*Player)

// WithAccount ties the player to a registered account
func WithAccount(id int64, username string) PlayerOption {
	return func(p *Player) {
		p.AccountID = id
		p.Account = username
	}
}

// NewPlayer creates a player with one cell of startMass at pos
func NewPlayer(id, name string, hue int, pos Vector2, startMass float64) *Player {
	c := &Cell{X: pos.X, Y: pos.Y}
	c.SetMass(startMass)
	return &Player{
		ID:    id,
		Name:  name,
		Hue:   hue,
		X:     pos.X,
		Y:     pos.Y,
		Cells: []*Cell{c},
	}
}

// Update steers every cell toward the aim target. Bigger cells are slower.
func (p *Player) Update(cfg Config) {
	for _, c := range p.Cells {
		aim := Vec(p.X+p.Target.X-c.X, p.Y+p.Target.Y-c.Y)
		dist := aim.Len()
		if dist < 1 {
			continue
		}
		speed := cfg.Player.Speed * math.Sqrt(cfg.Player.StartMass/math.Max(c.Mass, cfg.Player.StartMass))
		step := math.Min(speed, dist)
		dir := aim.Scale(1 / dist)
		c.X += dir.X * step
		c.Y += dir.Y * step
		AdjustForBoundaries(c, c.Radius, cfg.Margin, cfg.Width, cfg.Height)
	}
	p.recenter()
}

func (p *Player) recenter() {
	if len(p.Cells) == 0 {
		return
	}
	var sx, sy float64
	for _, c := range p.Cells {
		sx += c.X
		sy += c.Y
	}
	n := float64(len(p.Cells))
	p.X, p.Y = sx/n, sy/n
}

// TotalMass sums the mass of all cells
func (p *Player) TotalMass() float64 {
	total := 0.0
	for _, c := range p.Cells {
		total += c.Mass
	}
	return total
}

// FiringEvent snapshots the player for mass ejection
func (p *Player) FiringEvent() FiringEvent {
	cells := make([]Vector2, len(p.Cells))
	for i, c := range p.Cells {
		cells[i] = c.Pos()
	}
	return FiringEvent{
		PlayerID: p.ID,
		Hue:      p.Hue,
		X:        p.X,
		Y:        p.Y,
		Target:   p.Target,
		Cells:    cells,
	}
}

// ToState converts to protocol state
func (p *Player) ToState() PlayerState {
	cells := make([]CellState, len(p.Cells))
	for i, c := range p.Cells {
		cells[i] = CellState{X: round1(c.X), Y: round1(c.Y), Mass: round1(c.Mass), R: round1(c.Radius)}
	}
	return PlayerState{
		ID:      p.ID,
		Name:    p.Name,
		Hue:     p.Hue,
		X:       round1(p.X),
		Y:       round1(p.Y),
		Mass:    round1(p.TotalMass()),
		Cells:   cells,
		Account: p.Account,
	}
}
