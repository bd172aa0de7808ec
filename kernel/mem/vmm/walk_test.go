package vmm

import (
	"mxos/kernel"
	"mxos/kernel/mem"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type visit struct {
	Level     uint8
	TableAddr uintptr
	Index     uintptr
}

func TestWalk(t *testing.T) {
	m := newTestMemory(64 * 4096)

	// p4 @ 0x1000 -> p3 @ 0x2000 -> p2 @ 0x3000 -> p1 @ 0x4000
	virtAddr := uintptr(0x8080604400)
	m.table(0x1000)[1] = NewEntry(0x2000, FlagPresent|FlagRW)
	m.table(0x2000)[2] = NewEntry(0x3000, FlagPresent|FlagRW)
	m.table(0x3000)[3] = NewEntry(0x4000, FlagPresent|FlagRW)
	m.table(0x4000)[4] = NewEntry(0x9000, FlagPresent|FlagRW)

	var got []visit
	err := Walk(m, 0x1000, virtAddr, func(level uint8, tableAddr uintptr, pte *PageTableEntry) bool {
		got = append(got, visit{level, tableAddr, Index(virtAddr, level)})
		return true
	})
	if err != nil {
		t.Fatal(err)
	}

	exp := []visit{
		{LevelP4, 0x1000, 1},
		{LevelP3, 0x2000, 2},
		{LevelP2, 0x3000, 3},
		{LevelP1, 0x4000, 4},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected walk (-want +got):\n%s", diff)
	}
}

func TestWalkAbort(t *testing.T) {
	m := newTestMemory(8 * 4096)

	callCount := 0
	err := Walk(m, 0x1000, 0, func(level uint8, _ uintptr, pte *PageTableEntry) bool {
		callCount++
		return pte.Present()
	})
	if err != nil {
		t.Fatal(err)
	}

	if callCount != 1 {
		t.Fatalf("expected walk to stop after the first non-present entry; got %d calls", callCount)
	}
}

func TestWalkTableLookupError(t *testing.T) {
	defer func() {
		tableAtFn = TableAt
	}()

	expErr := &kernel.Error{Module: "test", Message: "lookup failed"}
	tableAtFn = func(_ mem.Physical, _ uintptr) (*PageTable, *kernel.Error) {
		return nil, expErr
	}

	if err := Walk(newTestMemory(4096), 0, 0, func(uint8, uintptr, *PageTableEntry) bool { return true }); err != expErr {
		t.Fatalf("expected to get %v; got %v", expErr, err)
	}
}
