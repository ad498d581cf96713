package memmap

// RAM is a flat-memory handler: a contiguous byte-addressable backing
// store, little-endian, with no access restrictions of its own. It is
// the expected configuration for guest physical memory: one instance
// of 128 MiB registered at base 0x80000000.
//
// Grounded on the teacher's emu/memory package (a flat backing array
// indexed by word), adapted to the narrow per-handler byte interface
// the spec's memory map expects instead of being a package-level
// singleton serving the whole address space directly.
type RAM struct {
	bytes []byte
}

// NewRAM allocates size bytes of backing store.
func NewRAM(size uint32) *RAM {
	return &RAM{bytes: make([]byte, size)}
}

// ReadByte implements Handler.
func (r *RAM) ReadByte(offset uint32) uint8 {
	return r.bytes[offset]
}

// WriteByte implements Handler.
func (r *RAM) WriteByte(offset uint32, value uint8) {
	r.bytes[offset] = value
}

// Load copies data into the RAM starting at offset. Used by the host
// binary to place the kernel image, initramfs, and device tree blob at
// their fixed addresses before starting the hart; it is not part of
// the instruction-accurate core.
func (r *RAM) Load(offset uint32, data []byte) {
	copy(r.bytes[offset:], data)
}

// Size returns the backing store's size in bytes.
func (r *RAM) Size() uint32 {
	return uint32(len(r.bytes))
}
