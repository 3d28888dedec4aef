package main

import "math"

// Virus is a hazard body that absorbs ejected mass and splits when overfed
type Virus struct {
	ID          string
	X, Y        float64
	Mass        float64
	Radius      float64
	Direction   *Vector2 // nil until the virus has been pushed
	Speed       float64
	Fill        string
	Stroke      string
	StrokeWidth float64

	cfg   *VirusConfig
	newID func() string
}

func newVirus(pos Vector2, mass float64, cfg *VirusConfig, newID func() string, dir *Vector2, speed float64) *Virus {
	return &Virus{
		ID:          newID(),
		X:           pos.X,
		Y:           pos.Y,
		Mass:        mass,
		Radius:      MassToRadius(mass),
		Direction:   dir,
		Speed:       speed,
		Fill:        cfg.Fill,
		Stroke:      cfg.Stroke,
		StrokeWidth: cfg.StrokeWidth,
		cfg:         cfg,
		newID:       newID,
	}
}

// NewVirus creates an idle virus with a fresh UUID
func NewVirus(pos Vector2, mass float64, cfg VirusConfig) *Virus {
	return newVirus(pos, mass, &cfg, GenerateUUID, nil, 0)
}

func (v *Virus) Pos() Vector2     { return Vector2{X: v.X, Y: v.Y} }
func (v *Virus) SetPos(p Vector2) { v.X, v.Y = p.X, p.Y }
func (v *Virus) Size() float64    { return v.Radius }

// Moving reports whether the virus will translate on its next move
func (v *Virus) Moving() bool {
	return v.Direction != nil && v.Speed > 0
}

// AddMass feeds the virus. When the result goes above the configured maximum
// the virus resets to the default mass and the split-off virus is returned,
// heading along direction at the default speed. Returns nil otherwise.
func (v *Virus) AddMass(mass float64, direction Vector2) *Virus {
	var split *Virus
	v.Mass += mass

	if v.Mass > v.cfg.MaxMass {
		v.Mass = v.cfg.DefaultMass.From
		dir := direction
		split = newVirus(v.Pos(), v.Mass, v.cfg, v.newID, &dir, v.cfg.DefaultSpeed)
	}

	v.Radius = MassToRadius(v.Mass)
	return split
}

// Move advances the virus one tick and applies friction
func (v *Virus) Move(width, height, margin float64) {
	if !v.Moving() {
		return
	}
	v.X += v.Direction.X * v.Speed
	v.Y += v.Direction.Y * v.Speed
	v.Speed = math.Max(0, v.Speed-v.cfg.Friction)

	AdjustForBoundaries(v, v.Radius, margin, width, height)
}

// IsColliding reports whether b overlaps the virus
func (v *Virus) IsColliding(b Body) bool {
	return Colliding(v, b)
}

// ToState converts to protocol state
func (v *Virus) ToState() VirusState {
	return VirusState{
		ID:   v.ID,
		X:    round1(v.X),
		Y:    round1(v.Y),
		Mass: round1(v.Mass),
		R:    round1(v.Radius),
	}
}

// VirusManager owns the live viruses of one arena. It is not safe for
// concurrent use; the owning World serialises access.
type VirusManager struct {
	data    []*Virus
	cfg     VirusConfig
	margin  float64
	rng     Rand
	spawner *Spawner
	newID   func() string
}

// NewVirusManager creates an empty manager for the given arena config
func NewVirusManager(cfg Config, rng Rand) *VirusManager {
	return &VirusManager{
		cfg:     cfg.Virus,
		margin:  cfg.Margin,
		rng:     rng,
		spawner: NewSpawner(rng, cfg.Width, cfg.Height),
		newID:   GenerateUUID,
	}
}

// PushNew appends a virus to the live set
func (m *VirusManager) PushNew(v *Virus) {
	m.data = append(m.data, v)
}

// AddNew spawns n idle viruses with random default mass and returns them
func (m *VirusManager) AddNew(n int) []*Virus {
	added := make([]*Virus, 0, n)
	for ; n > 0; n-- {
		mass := RandomInRange(m.rng, m.cfg.DefaultMass.From, m.cfg.DefaultMass.To)
		radius := MassToRadius(mass)
		pos := m.spawner.GetPosition(m.cfg.UniformDisposition, radius, m.bodies())
		v := newVirus(pos, mass, &m.cfg, m.newID, nil, 0)
		m.PushNew(v)
		added = append(added, v)
	}
	return added
}

// Move advances every virus one tick
func (m *VirusManager) Move(width, height float64) {
	for _, v := range m.data {
		v.Move(width, height, m.margin)
	}
}

// Delete removes the virus at index; out of range is a no-op
func (m *VirusManager) Delete(index int) {
	if index < 0 || index >= len(m.data) {
		return
	}
	m.data = append(m.data[:index], m.data[index+1:]...)
}

// Len returns the number of live viruses
func (m *VirusManager) Len() int { return len(m.data) }

// At returns the virus at index
func (m *VirusManager) At(index int) *Virus { return m.data[index] }

// All returns the live viruses. The slice is owned by the manager.
func (m *VirusManager) All() []*Virus { return m.data }

func (m *VirusManager) bodies() []Body {
	out := make([]Body, len(m.data))
	for i, v := range m.data {
		out[i] = v
	}
	return out
}
