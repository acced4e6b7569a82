package tensor

// Placement identifies where a tensor's buffer lives. Host tensors
// belong to the reference path; DRAM and L1 are the memory tiers of the
// emulated device.
type Placement int

const (
	Host Placement = iota
	DRAM
	L1
)

// String returns a human-readable placement name.
func (p Placement) String() string {
	switch p {
	case Host:
		return "host"
	case DRAM:
		return "dram"
	case L1:
		return "l1"
	default:
		return "unknown"
	}
}

// Layout describes the in-memory element order.
//
// RowMajor is the host layout. Tiled is the device layout: the last two
// dimensions are padded up to multiples of the tile size and stored
// tile by tile.
type Layout int

const (
	RowMajor Layout = iota
	Tiled
)

// String returns a human-readable layout name.
func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "row_major"
	case Tiled:
		return "tiled"
	default:
		return "unknown"
	}
}

// MemoryConfig describes how a device tensor is stored: which memory
// tier and whether pages are interleaved across banks or sharded onto a
// single region. The emulated device records but does not act on the
// interleaving choice; it exists so cases can be parametrized the same
// way the hardware tests are.
type MemoryConfig struct {
	Placement   Placement
	Interleaved bool
}

// DRAMInterleaved is the default memory configuration for device inputs.
var DRAMInterleaved = MemoryConfig{Placement: DRAM, Interleaved: true}

// L1Sharded places the tensor in on-chip memory, sharded.
var L1Sharded = MemoryConfig{Placement: L1, Interleaved: false}
