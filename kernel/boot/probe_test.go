package boot

import (
	"mxos/kernel/cpu"
	"mxos/kernel/hal/multiboot"
	"testing"
)

// fakeProber models the flags register and CPUID leaves of a processor.
type fakeProber struct {
	flags     uint64
	idLocked  bool
	leaves    map[uint32][4]uint32
	writes    int
	idQueries []uint32
}

func (p *fakeProber) ReadFlags() uint64 { return p.flags }

func (p *fakeProber) WriteFlags(flags uint64) {
	p.writes++
	if p.idLocked {
		flags = (flags &^ cpu.FlagsID) | (p.flags & cpu.FlagsID)
	}
	p.flags = flags
}

func (p *fakeProber) ID(leaf uint32) (uint32, uint32, uint32, uint32) {
	p.idQueries = append(p.idQueries, leaf)
	r := p.leaves[leaf]
	return r[0], r[1], r[2], r[3]
}

func newFakeProber(maxExt, extEDX uint32) *fakeProber {
	return &fakeProber{
		flags: 0x202,
		leaves: map[uint32][4]uint32{
			cpu.LeafExtendedMax:      {maxExt, 0, 0, 0},
			cpu.LeafExtendedFeatures: {0, 0, 0, extEDX},
		},
	}
}

func TestCheckProtocol(t *testing.T) {
	specs := []struct {
		magic    uint32
		expFault *Fault
	}{
		{multiboot.BootloaderMagic, nil},
		{0, FaultBadMagic},
		{0x2badb002, FaultBadMagic},
		{multiboot.HeaderMagic, FaultBadMagic},
	}

	for specIndex, spec := range specs {
		if got := CheckProtocol(spec.magic); got != spec.expFault {
			t.Errorf("[spec %d] expected fault %v; got %v", specIndex, spec.expFault, got)
		}
	}
}

func TestCPUIDSupported(t *testing.T) {
	specs := []struct {
		flags    uint64
		idLocked bool
		exp      bool
	}{
		{0x202, false, true},
		{0x202 | cpu.FlagsID, false, true},
		{0x202, true, false},
		{0x202 | cpu.FlagsID, true, false},
	}

	for specIndex, spec := range specs {
		p := &fakeProber{flags: spec.flags, idLocked: spec.idLocked}

		if got := CPUIDSupported(p); got != spec.exp {
			t.Errorf("[spec %d] expected %t; got %t", specIndex, spec.exp, got)
		}

		if p.flags != spec.flags {
			t.Errorf("[spec %d] expected flags to be restored to 0x%x; got 0x%x", specIndex, spec.flags, p.flags)
		}

		if p.writes != 2 {
			t.Errorf("[spec %d] expected 2 flag writes; got %d", specIndex, p.writes)
		}
	}
}

func TestCheckLongMode(t *testing.T) {
	specs := []struct {
		maxExt     uint32
		extEDX     uint32
		expFault   *Fault
		expQueries int
	}{
		{0x80000008, cpu.ExtFeatureLongMode, nil, 2},
		{0x80000001, cpu.ExtFeatureLongMode | cpu.ExtFeaturePage1GB, nil, 2},
		{0x80000008, cpu.ExtFeaturePage1GB, FaultNoLongMode, 2},
		{0x80000000, cpu.ExtFeatureLongMode, FaultNoLongMode, 1},
		{0, 0, FaultNoLongMode, 1},
	}

	for specIndex, spec := range specs {
		p := newFakeProber(spec.maxExt, spec.extEDX)

		if got := CheckLongMode(p); got != spec.expFault {
			t.Errorf("[spec %d] expected fault %v; got %v", specIndex, spec.expFault, got)
		}

		if len(p.idQueries) != spec.expQueries {
			t.Errorf("[spec %d] expected %d CPUID queries; got %d", specIndex, spec.expQueries, len(p.idQueries))
		}
	}
}

func TestCheckHandoffPointer(t *testing.T) {
	if got := CheckHandoffPointer(0); got != FaultNullHandoff {
		t.Fatalf("expected FaultNullHandoff; got %v", got)
	}

	if got := CheckHandoffPointer(0x10c000); got != nil {
		t.Fatalf("expected no fault; got %v", got)
	}
}

func TestProbe(t *testing.T) {
	specs := []struct {
		magic    uint32
		prober   *fakeProber
		expFault *Fault
		expFeat  Features
	}{
		{
			multiboot.BootloaderMagic,
			newFakeProber(0x80000008, cpu.ExtFeatureLongMode|cpu.ExtFeaturePage1GB),
			nil,
			Features{CPUID: true, MaxExtendedLeaf: 0x80000008, LongMode: true, Page1GB: true},
		},
		{
			0,
			newFakeProber(0x80000008, cpu.ExtFeatureLongMode),
			FaultBadMagic,
			Features{CPUID: true, MaxExtendedLeaf: 0x80000008, LongMode: true},
		},
		{
			multiboot.BootloaderMagic,
			&fakeProber{flags: 0x202, idLocked: true},
			FaultNoCPUID,
			Features{},
		},
		{
			multiboot.BootloaderMagic,
			newFakeProber(0x80000000, 0),
			FaultNoLongMode,
			Features{CPUID: true, MaxExtendedLeaf: 0x80000000},
		},
	}

	for specIndex, spec := range specs {
		if got := Probe(spec.prober, spec.magic); got != spec.expFault {
			t.Errorf("[spec %d] expected fault %v; got %v", specIndex, spec.expFault, got)
		}

		if got := ProbeFeatures(spec.prober); got != spec.expFeat {
			t.Errorf("[spec %d] expected features %+v; got %+v", specIndex, spec.expFeat, got)
		}
	}
}

// A CPU without CPUID support must never execute the instruction.
func TestProbeFeaturesSkipsCPUID(t *testing.T) {
	p := &fakeProber{flags: 0x202, idLocked: true}
	ProbeFeatures(p)

	if len(p.idQueries) != 0 {
		t.Fatalf("expected no CPUID queries; got %v", p.idQueries)
	}
}
