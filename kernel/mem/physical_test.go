package mem

import (
	"testing"
	"unsafe"
)

func bytesOf(words []uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
}

func TestIdentityMappedWindow(t *testing.T) {
	var (
		backing = make([]uint64, 2)
		phys    IdentityMapped
	)

	window, err := phys.Window(uintptr(unsafe.Pointer(&backing[0])), 16)
	if err != nil {
		t.Fatal(err)
	}

	window[8] = 0xaa
	if backing[1] != 0xaa {
		t.Fatalf("expected window writes to land in the backing memory; got 0x%x", backing[1])
	}

	if _, err = phys.Window(0, PageSize); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange for a null window; got %v", err)
	}
}
