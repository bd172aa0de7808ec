package vmm

import (
	"mxos/kernel"
	"mxos/kernel/mem"
	"unsafe"
)

// testMemory backs the physical address range [0, len) with a word-aligned
// buffer.
type testMemory struct {
	words []uint64
}

func newTestMemory(size mem.Size) *testMemory {
	return &testMemory{words: make([]uint64, size>>3)}
}

func (m *testMemory) Window(addr uintptr, size mem.Size) ([]byte, *kernel.Error) {
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&m.words[0])), len(m.words)<<3)
	if uint64(addr)+uint64(size) > uint64(len(buf)) {
		return nil, mem.ErrOutOfRange
	}
	return buf[addr : addr+uintptr(size)], nil
}

func (m *testMemory) table(addr uintptr) *PageTable {
	table, err := TableAt(m, addr)
	if err != nil {
		panic(err)
	}
	return table
}
