package tsp

// SlotCount is the number of texture size classes the hardware supports.
// Each class is one 2D-array texture in the catalog.
const SlotCount = 8

// LayersPerSlot is the number of array layers in each catalog slot.
const LayersPerSlot = 256

// SlotSize returns the square texel size of a catalog slot: index 0 is 8x8,
// each step doubles, index 7 is 1024x1024. The class boundaries are part of
// the hardware's texture encoding and must not change. An index outside the
// catalog returns the smallest size.
func SlotSize(index uint32) uint32 {
	if index >= SlotCount {
		return 8
	}
	return 8 << index
}

// SlotFor returns the catalog slot whose size class matches the given texel
// size. ok is false when the size is not one of the eight classes; textures
// are padded to a power-of-two class before they reach the catalog, so a
// miss here means corrupt upstream state.
func SlotFor(size uint32) (slot uint32, ok bool) {
	for i := uint32(0); i < SlotCount; i++ {
		if size == 8<<i {
			return i, true
		}
	}
	return 0, false
}
