package main

import "math"

// SpatialCellSize is ~2x the radius of a full-size virus
const SpatialCellSize = 180.0

const (
	RefPellet byte = 'p'
	RefVirus  byte = 'v'
)

// EntityRef identifies an entity in the grid
type EntityRef struct {
	Kind byte // RefPellet or RefVirus
	Idx  int  // index into the corresponding manager
}

// SpatialGrid is a fixed-size grid for broad-phase collision queries
type SpatialGrid struct {
	cols, rows int
	cells      [][]EntityRef
}

// NewSpatialGrid sizes a grid to cover a width x height arena
func NewSpatialGrid(width, height float64) *SpatialGrid {
	cols := int(math.Ceil(width/SpatialCellSize)) + 1
	rows := int(math.Ceil(height/SpatialCellSize)) + 1
	return &SpatialGrid{
		cols:  cols,
		rows:  rows,
		cells: make([][]EntityRef, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// bounds returns the clamped cell range covering a circle's bounding box
func (g *SpatialGrid) bounds(x, y, radius float64) (minCX, minCY, maxCX, maxCY int) {
	minCX = clampInt(int((x-radius)/SpatialCellSize), 0, g.cols-1)
	maxCX = clampInt(int((x+radius)/SpatialCellSize), 0, g.cols-1)
	minCY = clampInt(int((y-radius)/SpatialCellSize), 0, g.rows-1)
	maxCY = clampInt(int((y+radius)/SpatialCellSize), 0, g.rows-1)
	return
}

// InsertCircle adds an entity reference to all cells overlapping its bounding box
func (g *SpatialGrid) InsertCircle(x, y, radius float64, ref EntityRef) {
	minCX, minCY, maxCX, maxCY := g.bounds(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], ref)
		}
	}
}

// Insert adds an entity reference at a point
func (g *SpatialGrid) Insert(x, y float64, ref EntityRef) {
	g.InsertCircle(x, y, 0, ref)
}

// QueryBuf appends refs in cells overlapping the box to buf. A ref inserted
// as a circle may appear more than once.
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []EntityRef) []EntityRef {
	minCX, minCY, maxCX, maxCY := g.bounds(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}

// Query is QueryBuf with a fresh slice
func (g *SpatialGrid) Query(x, y, radius float64) []EntityRef {
	return g.QueryBuf(x, y, radius, nil)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
