package main

import "math"

// FiringEvent is the read-only view of a player ejecting mass
type FiringEvent struct {
	PlayerID string
	Hue      int
	X, Y     float64   // player centre
	Target   Vector2   // aim target, relative to the player
	Cells    []Vector2 // cell positions by cell index
}

// MassFood is a pellet of mass ejected by a player cell
type MassFood struct {
	ID        string
	OwnerID   string
	CellIndex int
	Hue       int
	Mass      float64
	X, Y      float64
	Radius    float64
	Direction Vector2
	Speed     float64
}

// NewMassFood ejects a pellet from the given cell. The direction keeps the
// cell's offset from the player centre and adds the aim target; a zero result
// leaves the pellet without a heading instead of carrying NaN.
func NewMassFood(f FiringEvent, cellIndex int, mass float64, speed float64) *MassFood {
	cell := f.Cells[cellIndex]
	dir := NormalizeXY(f.X-cell.X+f.Target.X, f.Y-cell.Y+f.Target.Y)
	if !dir.IsFinite() {
		dir = Vector2{}
	}
	return &MassFood{
		ID:        GenerateID(4),
		OwnerID:   f.PlayerID,
		CellIndex: cellIndex,
		Hue:       f.Hue,
		Mass:      mass,
		X:         cell.X,
		Y:         cell.Y,
		Radius:    MassToRadius(mass),
		Direction: dir,
		Speed:     speed,
	}
}

func (m *MassFood) Pos() Vector2     { return Vector2{X: m.X, Y: m.Y} }
func (m *MassFood) SetPos(p Vector2) { m.X, m.Y = p.X, p.Y }
func (m *MassFood) Size() float64    { return m.Radius }

// Move advances the pellet one tick. Non-finite deltas are skipped per axis.
func (m *MassFood) Move(decel, width, height, margin float64) {
	dx := m.Speed * m.Direction.X
	dy := m.Speed * m.Direction.Y

	m.Speed = math.Max(0, m.Speed-decel)
	if !math.IsNaN(dy) && !math.IsInf(dy, 0) {
		m.Y += dy
	}
	if !math.IsNaN(dx) && !math.IsInf(dx, 0) {
		m.X += dx
	}

	AdjustForBoundaries(m, m.Radius, margin, width, height)
}

// ToState converts to protocol state
func (m *MassFood) ToState() PelletState {
	return PelletState{
		ID:    m.ID,
		X:     round1(m.X),
		Y:     round1(m.Y),
		R:     round1(m.Radius),
		Hue:   m.Hue,
		Owner: m.OwnerID,
	}
}

// MassFoodManager owns the live pellets of one arena. Not safe for concurrent
// use; the owning World serialises access.
type MassFoodManager struct {
	data   []*MassFood
	cfg    PelletConfig
	margin float64
}

// NewMassFoodManager creates an empty manager for the given arena config
func NewMassFoodManager(cfg Config) *MassFoodManager {
	return &MassFoodManager{cfg: cfg.Pellet, margin: cfg.Margin}
}

// AddNew ejects a pellet of mass from the firing player's cell. Returns nil
// when the cell index does not exist.
func (mm *MassFoodManager) AddNew(f FiringEvent, cellIndex int, mass float64) *MassFood {
	if cellIndex < 0 || cellIndex >= len(f.Cells) {
		return nil
	}
	p := NewMassFood(f, cellIndex, mass, mm.cfg.InitialSpeed)
	mm.data = append(mm.data, p)
	return p
}

// Step moves every pellet that still has speed and feeds it to any virus it
// hits. Hit pellets are removed once the scan is done. The virus set is only
// read and mass-mutated; split-off viruses come back as EvtVirusSplit events.
func (mm *MassFoodManager) Step(width, height float64, viruses []*Virus) []Event {
	var events []Event
	var toRemove []int

	for i, p := range mm.data {
		if p.Speed <= 0 {
			continue
		}
		p.Move(mm.cfg.Deceleration, width, height, mm.margin)

		hit := false
		for _, v := range viruses {
			if !v.IsColliding(p) {
				continue
			}
			hit = true
			events = append(events, Event{Kind: EvtPelletAbsorbed, PlayerID: p.OwnerID, Pellet: p, Source: v})

			recoil := v.Pos().Sub(p.Pos()).Normalize()
			if !recoil.IsFinite() {
				recoil = p.Direction
			}
			if split := v.AddMass(p.Mass, recoil); split != nil {
				events = append(events, Event{Kind: EvtVirusSplit, PlayerID: p.OwnerID, Virus: split, Source: v})
			}
		}
		if hit {
			toRemove = append(toRemove, i)
		}
	}

	mm.data = removeIndexes(mm.data, toRemove)
	return events
}

// Move is Step followed by handing split-off viruses to vm
func (mm *MassFoodManager) Move(width, height float64, vm *VirusManager) {
	for _, v := range SplitViruses(mm.Step(width, height, vm.All())) {
		vm.PushNew(v)
	}
}

// Remove drops the pellets at the given indexes
func (mm *MassFoodManager) Remove(indexes []int) {
	if len(indexes) > 0 {
		mm.data = removeIndexes(mm.data, indexes)
	}
}

// Len returns the number of live pellets
func (mm *MassFoodManager) Len() int { return len(mm.data) }

// At returns the pellet at index
func (mm *MassFoodManager) At(index int) *MassFood { return mm.data[index] }

// All returns the live pellets. The slice is owned by the manager.
func (mm *MassFoodManager) All() []*MassFood { return mm.data }
