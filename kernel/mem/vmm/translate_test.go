package vmm

import "testing"

func TestTranslate(t *testing.T) {
	m := newTestMemory(64 * 4096)

	// Identity map the first 2GiB with 1GiB pages.
	m.table(0x1000)[0] = NewEntry(0x2000, FlagPresent|FlagRW)
	m.table(0x2000)[0] = NewEntry(0, FlagPresent|FlagRW|FlagHugePage)
	m.table(0x2000)[1] = NewEntry(0x40000000, FlagPresent|FlagRW|FlagHugePage)

	// Map a 2MiB page at 0xffffffff80200000 and a 4K page at 0xffffffff80000000.
	m.table(0x1000)[511] = NewEntry(0x3000, FlagPresent|FlagRW)
	m.table(0x3000)[510] = NewEntry(0x4000, FlagPresent|FlagRW)
	m.table(0x4000)[1] = NewEntry(0x600000, FlagPresent|FlagRW|FlagHugePage)
	m.table(0x4000)[0] = NewEntry(0x5000, FlagPresent|FlagRW)
	m.table(0x5000)[0] = NewEntry(0xa000, FlagPresent|FlagRW)

	specs := []struct {
		virtAddr uintptr
		expPhys  uintptr
		expErr   bool
	}{
		{0x1234, 0x1234, false},
		{0x40001234, 0x40001234, false},
		{0x7fffffff, 0x7fffffff, false},
		{0x80000000, 0, true},
		{0xffffffff80200010, 0x600010, false},
		{0xffffffff803fffff, 0x7fffff, false},
		{0xffffffff80000123, 0xa123, false},
		{0xffffffff80001000, 0, true},
		{0xffffffff80400000, 0, true},
	}

	for specIndex, spec := range specs {
		got, err := Translate(m, 0x1000, spec.virtAddr)
		switch {
		case spec.expErr && err != ErrInvalidMapping:
			t.Errorf("[spec %d] expected to get ErrInvalidMapping; got %v", specIndex, err)
		case !spec.expErr && err != nil:
			t.Errorf("[spec %d] unexpected error %v", specIndex, err)
		case !spec.expErr && got != spec.expPhys:
			t.Errorf("[spec %d] expected phys addr to be 0x%x; got 0x%x", specIndex, spec.expPhys, got)
		}
	}
}

func TestTableFor(t *testing.T) {
	m := newTestMemory(16 * 4096)
	m.table(0x1000)[0] = NewEntry(0x2000, FlagPresent|FlagRW)
	m.table(0x2000)[0] = NewEntry(0, FlagPresent|FlagRW|FlagHugePage)
	m.table(0x1000)[511] = NewEntry(0x3000, FlagPresent|FlagRW)
	m.table(0x3000)[510] = NewEntry(0x4000, FlagPresent|FlagRW)

	specs := []struct {
		virtAddr uintptr
		level    uint8
		exp      uintptr
		expErr   bool
	}{
		{0xffffffff80000000, LevelP4, 0x1000, false},
		{0xffffffff80000000, LevelP3, 0x3000, false},
		{0xffffffff80000000, LevelP2, 0x4000, false},
		// p2 (placeholder) entries are empty
		{0xffffffff80000000, LevelP1, 0, true},
		// huge p3 entries do not point to a p2 table
		{0x1000, LevelP2, 0, true},
		{0x1000, LevelP3, 0x2000, false},
	}

	for specIndex, spec := range specs {
		got, err := TableFor(m, 0x1000, spec.virtAddr, spec.level)
		switch {
		case spec.expErr && err != ErrInvalidMapping:
			t.Errorf("[spec %d] expected to get ErrInvalidMapping; got %v", specIndex, err)
		case !spec.expErr && err != nil:
			t.Errorf("[spec %d] unexpected error %v", specIndex, err)
		case !spec.expErr && got != spec.exp:
			t.Errorf("[spec %d] expected table at 0x%x; got 0x%x", specIndex, spec.exp, got)
		}
	}
}
