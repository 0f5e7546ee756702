package gpu

import (
	"errors"
	"fmt"

	"github.com/ncarrillo/emerald/tsp"
)

// Texture cache errors.
var (
	// ErrSlotFull is returned when a size class has no free layer and
	// nothing stale enough to evict.
	ErrSlotFull = errors.New("emerald: texture size class is full")

	// ErrBadTextureSize is returned when a texture's padded size is not one
	// of the eight catalog classes.
	ErrBadTextureSize = errors.New("emerald: texture size is not a catalog class")
)

// evictionAge is how many generations an entry may go untouched before it
// becomes a candidate for eviction.
const evictionAge = 10000

// TextureID identifies an emulated texture as named by the display list
// decoder.
type TextureID uint32

// freeList tracks layer occupancy for one catalog slot as a 256-bit set.
type freeList struct {
	bits [tsp.LayersPerSlot / 8]byte
}

func (f *freeList) set(index int)   { f.bits[index/8] |= 1 << (index % 8) }
func (f *freeList) unset(index int) { f.bits[index/8] &^= 1 << (index % 8) }

func (f *freeList) isSet(index int) bool {
	return f.bits[index/8]&(1<<(index%8)) != 0
}

func (f *freeList) clear() {
	for i := range f.bits {
		f.bits[i] = 0
	}
}

// findFree returns the lowest unoccupied layer, or false when the slot is
// fully resident.
func (f *freeList) findFree() (int, bool) {
	for byteIndex, b := range f.bits {
		if b == 0xff {
			continue
		}
		for bitIndex := 0; bitIndex < 8; bitIndex++ {
			if b&(1<<bitIndex) == 0 {
				return byteIndex*8 + bitIndex, true
			}
		}
	}
	return 0, false
}

// cacheEntry records where a texture lives and when it was last referenced.
type cacheEntry struct {
	layer      int
	generation uint64
}

// TextureCache maps texture IDs onto layers of the eight fixed-size texture
// arrays. Each slot has its own free list and residency map. Entries age by
// generation: Advance bumps the clock once per frame, Lookup and Insert
// touch entries, and layers untouched for evictionAge generations are
// reclaimed when a slot runs out of space (and opportunistically on
// Advance).
type TextureCache struct {
	free       [tsp.SlotCount]freeList
	entries    [tsp.SlotCount]map[TextureID]*cacheEntry
	generation uint64
}

// NewTextureCache returns an empty cache.
func NewTextureCache() *TextureCache {
	c := &TextureCache{}
	for i := range c.entries {
		c.entries[i] = make(map[TextureID]*cacheEntry)
	}
	return c
}

// Generation returns the current generation counter.
func (c *TextureCache) Generation() uint64 { return c.generation }

// Advance bumps the generation clock and reclaims layers whose entries have
// aged out. Called once per frame before uploads.
func (c *TextureCache) Advance() {
	c.generation++
	threshold := c.staleThreshold()
	for slot := range c.entries {
		for id, e := range c.entries[slot] {
			if e.generation < threshold {
				slogger().Debug("evicting stale texture",
					"texture", uint32(id), "slot", slot, "layer", e.layer)
				c.free[slot].unset(e.layer)
				delete(c.entries[slot], id)
			}
		}
	}
}

func (c *TextureCache) staleThreshold() uint64 {
	if c.generation < evictionAge {
		return 0
	}
	return c.generation - evictionAge
}

// Lookup returns the resident layer for a texture and touches the entry so
// it survives eviction.
func (c *TextureCache) Lookup(slot uint32, id TextureID) (int, bool) {
	if slot >= tsp.SlotCount {
		return 0, false
	}
	e, ok := c.entries[slot][id]
	if !ok {
		return 0, false
	}
	e.generation = c.generation
	return e.layer, true
}

// Insert allocates a layer for a texture in the given slot. When the slot
// is fully resident, entries that have aged out are evicted first; if every
// layer is still fresh the insert fails with ErrSlotFull wrapped with the
// slot in question.
func (c *TextureCache) Insert(slot uint32, id TextureID) (int, error) {
	if slot >= tsp.SlotCount {
		return 0, fmt.Errorf("%w: slot %d", ErrBadTextureSize, slot)
	}
	if e, ok := c.entries[slot][id]; ok {
		e.generation = c.generation
		return e.layer, nil
	}

	layer, ok := c.free[slot].findFree()
	if !ok {
		c.evictStale(slot)
		layer, ok = c.free[slot].findFree()
	}
	if !ok {
		return 0, fmt.Errorf("%w: slot %d (%dx%d)", ErrSlotFull, slot,
			tsp.SlotSize(slot), tsp.SlotSize(slot))
	}

	c.free[slot].set(layer)
	c.entries[slot][id] = &cacheEntry{layer: layer, generation: c.generation}
	return layer, nil
}

// Remove drops a texture from the cache and frees its layer.
func (c *TextureCache) Remove(slot uint32, id TextureID) {
	if slot >= tsp.SlotCount {
		return
	}
	if e, ok := c.entries[slot][id]; ok {
		c.free[slot].unset(e.layer)
		delete(c.entries[slot], id)
	}
}

// Clear empties every slot.
func (c *TextureCache) Clear() {
	for slot := range c.entries {
		c.free[slot].clear()
		c.entries[slot] = make(map[TextureID]*cacheEntry)
	}
}

// evictStale frees layers in one slot whose entries have aged out.
func (c *TextureCache) evictStale(slot uint32) {
	threshold := c.staleThreshold()
	for id, e := range c.entries[slot] {
		if e.generation < threshold {
			c.free[slot].unset(e.layer)
			delete(c.entries[slot], id)
		}
	}
}
