// Package segment encodes the amd64 segment descriptors and descriptor table
// pointers that the boot code loads before switching to 64-bit code.
package segment

import (
	"encoding/binary"
	"mxos/kernel"
	"mxos/kernel/mem"
	"unsafe"
)

var (
	// ErrMisalignedTable is returned when a descriptor table is not 8-byte aligned.
	ErrMisalignedTable = &kernel.Error{Module: "segment", Message: "descriptor table is not 8-byte aligned"}
)

// DescriptorFlag describes a bit of a segment descriptor.
type DescriptorFlag uint64

// Descriptor flags. In 64-bit mode the base and limit fields of code and data
// descriptors are ignored so only the flags below are meaningful.
const (
	// FlagAccessed is set by the CPU when the segment is loaded.
	FlagAccessed DescriptorFlag = 1 << 40

	// FlagWritable marks a data segment as writable.
	FlagWritable DescriptorFlag = 1 << 41

	// FlagExecutable marks the descriptor as a code segment.
	FlagExecutable DescriptorFlag = 1 << 43

	// FlagCodeData is the S bit; it is set for code and data descriptors
	// and cleared for system descriptors.
	FlagCodeData DescriptorFlag = 1 << 44

	// FlagPresent must be set for the descriptor to be loadable.
	FlagPresent DescriptorFlag = 1 << 47

	// FlagLongMode marks a code segment as 64-bit.
	FlagLongMode DescriptorFlag = 1 << 53

	// FlagDefaultSize selects 32-bit operands; it must be clear when
	// FlagLongMode is set.
	FlagDefaultSize DescriptorFlag = 1 << 54

	// FlagGranularity scales the limit by 4K.
	FlagGranularity DescriptorFlag = 1 << 55

	dplShift = 45
	dplMask  = 3 << dplShift
)

// Descriptor is a single 8-byte segment descriptor.
type Descriptor uint64

// Null is the mandatory first descriptor of every descriptor table.
const Null = Descriptor(0)

// KernelCode64 is a flat, present, ring 0, 64-bit code segment.
const KernelCode64 = Descriptor(FlagExecutable | FlagCodeData | FlagPresent | FlagLongMode)

// HasFlags returns true if all the supplied flags are set.
func (d Descriptor) HasFlags(flags DescriptorFlag) bool {
	return uint64(d)&uint64(flags) == uint64(flags)
}

// Present returns true if the descriptor can be loaded.
func (d Descriptor) Present() bool { return d.HasFlags(FlagPresent) }

// Code returns true for code segment descriptors.
func (d Descriptor) Code() bool { return d.HasFlags(FlagCodeData | FlagExecutable) }

// Long returns true if the descriptor describes a 64-bit code segment.
func (d Descriptor) Long() bool { return d.Code() && d.HasFlags(FlagLongMode) }

// PrivilegeLevel returns the descriptor privilege level.
func (d Descriptor) PrivilegeLevel() uint8 {
	return uint8((uint64(d) & dplMask) >> dplShift)
}

// Selector is a segment selector: a descriptor table index combined with a
// table indicator and a requested privilege level.
type Selector uint16

// NullSelector can be loaded into data segment registers in 64-bit mode.
const NullSelector = Selector(0)

// NewSelector returns a GDT selector for the descriptor at index with the
// supplied requested privilege level.
func NewSelector(index uint16, rpl uint8) Selector {
	return Selector(index<<3 | uint16(rpl&3))
}

// Index returns the descriptor table index that the selector refers to.
func (s Selector) Index() uint16 { return uint16(s) >> 3 }

// RPL returns the requested privilege level.
func (s Selector) RPL() uint8 { return uint8(s & 3) }

// Pointer is the operand of the LGDT instruction. Limit holds the table size
// in bytes minus one.
type Pointer struct {
	Limit uint16
	Base  uint64
}

// PointerSize is the size of an encoded Pointer.
const PointerSize = 10

// Marshal returns the 10-byte in-memory layout of the pointer: a 16-bit
// limit followed by the 64-bit base address.
func (p Pointer) Marshal() [PointerSize]byte {
	var out [PointerSize]byte
	binary.LittleEndian.PutUint16(out[:2], p.Limit)
	binary.LittleEndian.PutUint64(out[2:], p.Base)
	return out
}

// Entries returns the number of descriptors covered by the pointer.
func (p Pointer) Entries() int {
	return (int(p.Limit) + 1) / int(unsafe.Sizeof(Descriptor(0)))
}

// Table is a view of a descriptor table that lives in physical memory.
type Table struct {
	physAddr    uintptr
	descriptors []Descriptor
}

// TableAt returns a view of a descriptor table with room for count entries
// located at physAddr.
func TableAt(phys mem.Physical, physAddr uintptr, count int) (*Table, *kernel.Error) {
	if physAddr&7 != 0 {
		return nil, ErrMisalignedTable
	}

	window, err := phys.Window(physAddr, mem.Size(count)*mem.Size(unsafe.Sizeof(Descriptor(0))))
	if err != nil {
		return nil, err
	}

	return &Table{
		physAddr:    physAddr,
		descriptors: unsafe.Slice((*Descriptor)(unsafe.Pointer(&window[0])), count),
	}, nil
}

// Set stores a descriptor at the requested index.
func (t *Table) Set(index int, d Descriptor) {
	t.descriptors[index] = d
}

// Get returns the descriptor at the requested index.
func (t *Table) Get(index int) Descriptor {
	return t.descriptors[index]
}

// Len returns the number of descriptors in the table.
func (t *Table) Len() int {
	return len(t.descriptors)
}

// Pointer returns the LGDT operand that describes this table.
func (t *Table) Pointer() Pointer {
	return Pointer{
		Limit: uint16(len(t.descriptors)*int(unsafe.Sizeof(Descriptor(0))) - 1),
		Base:  uint64(t.physAddr),
	}
}

// Lookup decodes the descriptor that sel refers to from the table described
// by ptr. It returns false if the selector points past the table limit.
func Lookup(phys mem.Physical, ptr Pointer, sel Selector) (Descriptor, bool) {
	index := int(sel.Index())
	if index >= ptr.Entries() {
		return 0, false
	}

	table, err := TableAt(phys, uintptr(ptr.Base), index+1)
	if err != nil {
		return 0, false
	}

	return table.Get(index), true
}
