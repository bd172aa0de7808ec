package mem

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for amd64 is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// HugePageShift is equal to log2(HugePageSize).
	HugePageShift = 21

	// HugePageSize is the size of a page mapped by a huge entry in a
	// third-level (P2) table.
	HugePageSize = Size(1 << HugePageShift)

	// GiantPageShift is equal to log2(GiantPageSize).
	GiantPageShift = 30

	// GiantPageSize is the size of a page mapped by a huge entry in a
	// second-level (P3) table.
	GiantPageSize = Size(1 << GiantPageShift)
)
