package main

import "math"

const (
	spawnCandidates = 10 // best-candidate samples in uniform mode
	spawnAttempts   = 16 // free-spot retries before accepting overlap
)

// Spawner picks positions for new bodies inside a width x height arena
type Spawner struct {
	rng    Rand
	width  float64
	height float64
}

// NewSpawner creates a Spawner
func NewSpawner(rng Rand, width, height float64) *Spawner {
	return &Spawner{rng: rng, width: width, height: height}
}

// RandomPosition returns a position keeping a body of radius inside the arena
func (s *Spawner) RandomPosition(radius float64) Vector2 {
	return Vector2{
		X: RandomInRange(s.rng, radius, s.width-radius),
		Y: RandomInRange(s.rng, radius, s.height-radius),
	}
}

// GetPosition returns a spawn point for a body of radius. Uniform mode spreads
// bodies out with best-candidate sampling; otherwise a random free spot is
// searched for a bounded number of attempts and the last one is accepted.
func (s *Spawner) GetPosition(uniform bool, radius float64, existing []Body) Vector2 {
	if len(existing) == 0 {
		return s.RandomPosition(radius)
	}
	if uniform {
		return s.uniformPosition(radius, existing)
	}

	var pos Vector2
	for i := 0; i < spawnAttempts; i++ {
		pos = s.RandomPosition(radius)
		if !overlapsAny(pos, radius, existing) {
			return pos
		}
	}
	return pos
}

// uniformPosition keeps the candidate whose nearest neighbour is farthest away
func (s *Spawner) uniformPosition(radius float64, existing []Body) Vector2 {
	var best Vector2
	maxDistance := 0.0
	for i := 0; i < spawnCandidates; i++ {
		candidate := s.RandomPosition(radius)
		minDistance := math.Inf(1)
		for _, b := range existing {
			p := b.Pos()
			d := Distance(candidate.X, candidate.Y, p.X, p.Y) - radius - b.Size()
			if d < minDistance {
				minDistance = d
			}
		}
		if minDistance <= maxDistance {
			return s.RandomPosition(radius)
		}
		best = candidate
		maxDistance = minDistance
	}
	return best
}

func overlapsAny(pos Vector2, radius float64, existing []Body) bool {
	for _, b := range existing {
		p := b.Pos()
		if CheckCollision(pos.X, pos.Y, radius, p.X, p.Y, b.Size()) {
			return true
		}
	}
	return false
}
