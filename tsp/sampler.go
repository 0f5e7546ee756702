package tsp

import "math"

// Sentinel is the color produced when a fragment references a slot outside
// the catalog. Opaque red is visually unmistakable, so a bad array index in
// the vertex stream shows up on screen instead of crashing the pipeline.
var Sentinel = [4]float32{1.0, 0.0, 0.0, 1.0}

// Catalog is a CPU-side mirror of the eight fixed-size texture arrays,
// used as the reference for the shader's sampling behavior. Texels are
// RGBA quads in row-major order; a layer of slot s holds exactly
// SlotSize(s)^2 of them.
type Catalog struct {
	layers [SlotCount]map[uint32][][4]float32
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{}
	for i := range c.layers {
		c.layers[i] = make(map[uint32][][4]float32)
	}
	return c
}

// SetLayer stores the texels for one array layer. Short or oversized texel
// slices are ignored rather than partially applied.
func (c *Catalog) SetLayer(slot, layer uint32, texels [][4]float32) {
	if slot >= SlotCount || layer >= LayersPerSlot {
		return
	}
	size := SlotSize(slot)
	if uint32(len(texels)) != size*size {
		return
	}
	c.layers[slot][layer] = texels
}

// Sample fetches the nearest texel at (u, v) from the given slot and layer,
// with UV clamped to the edge. A slot outside the catalog returns Sentinel;
// a layer that was never written samples as transparent black, matching an
// uninitialized GPU array layer.
func (c *Catalog) Sample(slot, layer uint32, u, v float32) [4]float32 {
	if slot >= SlotCount {
		return Sentinel
	}
	texels, ok := c.layers[slot][layer]
	if !ok {
		return [4]float32{}
	}
	size := SlotSize(slot)
	x := texelCoord(u, size)
	y := texelCoord(v, size)
	return texels[y*size+x]
}

// texelCoord converts a normalized coordinate to a texel index with
// clamp-to-edge addressing.
func texelCoord(t float32, size uint32) uint32 {
	i := int32(t * float32(size))
	if i < 0 {
		return 0
	}
	if i >= int32(size) {
		return size - 1
	}
	return uint32(i)
}

// SelectLevel picks a detail level from screen-space UV derivatives the way
// gradient sampling does: the footprint of one pixel is measured in texels
// of the slot's size class and the level is the floor of log2 of the larger
// axis. Magnified or 1:1 sampling selects level 0. The result is clamped to
// maxLevel, the highest level the bound texture actually has.
func SelectLevel(dudx, dvdx, dudy, dvdy float32, slot, maxLevel uint32) uint32 {
	size := float64(SlotSize(slot))
	rx := math.Hypot(float64(dudx)*size, float64(dvdx)*size)
	ry := math.Hypot(float64(dudy)*size, float64(dvdy)*size)
	rho := math.Max(rx, ry)
	if rho <= 1.0 {
		return 0
	}
	level := uint32(math.Log2(rho))
	if level > maxLevel {
		return maxLevel
	}
	return level
}
