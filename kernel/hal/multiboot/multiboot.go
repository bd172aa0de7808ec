// Package multiboot implements the parts of the multiboot2 protocol used
// during boot: the header embedded in the kernel image and read-only access
// to the information structure that the bootloader passes in EBX.
package multiboot

import (
	"encoding/binary"
	"mxos/kernel"
	"mxos/kernel/mem"
	"strings"
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
	tagElfSymbols
	tagApmTable
)

const (
	// infoHeaderSize is the size of the {totalSize, reserved} pair that
	// precedes the first tag.
	infoHeaderSize = 8

	// tagHeaderSize is the size of the {type, size} pair that precedes the
	// contents of each tag.
	tagHeaderSize = 8

	// mmapHeaderSize is the size of the {entrySize, entryVersion} pair
	// that precedes the memory map entries.
	mmapHeaderSize = 8

	// mmapEntrySize is the size of a version 0 memory map entry.
	mmapEntrySize = 24
)

var (
	// ErrNullInfo is returned when the information structure address is zero.
	ErrNullInfo = &kernel.Error{Module: "multiboot", Message: "null information structure pointer"}

	// ErrInfoSize is returned when the information structure reports a
	// total size that cannot hold the end tag.
	ErrInfoSize = &kernel.Error{Module: "multiboot", Message: "invalid information structure size"}
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// MemRegionVisitor defies a visitor function that gets invoked by VisitMemRegions
// for each memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// Info provides access to a multiboot2 information structure located in
// physical memory.
type Info struct {
	phys     mem.Physical
	physAddr uintptr
	data     []byte
}

// InfoAt returns a view of the information structure at physAddr. The
// structure is assumed to live in memory that the supplied mem.Physical can
// reach.
func InfoAt(phys mem.Physical, physAddr uintptr) (*Info, *kernel.Error) {
	if physAddr == 0 {
		return nil, ErrNullInfo
	}

	hdr, err := phys.Window(physAddr, infoHeaderSize)
	if err != nil {
		return nil, err
	}

	totalSize := binary.LittleEndian.Uint32(hdr)
	if totalSize < infoHeaderSize+tagHeaderSize {
		return nil, ErrInfoSize
	}

	data, err := phys.Window(physAddr, mem.Size(totalSize))
	if err != nil {
		return nil, err
	}

	return &Info{phys: phys, physAddr: physAddr, data: data}, nil
}

// Bounds returns the physical address range [start, end) occupied by the
// information structure.
func (i *Info) Bounds() (uintptr, uintptr) {
	return i.physAddr, i.physAddr + uintptr(len(i.data))
}

// VisitMemRegions will invoke the supplied visitor for each memory region that
// is defined by the multiboot info data that we received from the bootloader.
func (i *Info) VisitMemRegions(visitor MemRegionVisitor) {
	tag := i.findTagByType(tagMemoryMap)
	if len(tag) < mmapHeaderSize {
		return
	}

	entrySize := int(binary.LittleEndian.Uint32(tag))
	if entrySize < mmapEntrySize {
		return
	}

	var entry MemoryMapEntry
	for off := mmapHeaderSize; off+mmapEntrySize <= len(tag); off += entrySize {
		entry.PhysAddress = binary.LittleEndian.Uint64(tag[off:])
		entry.Length = binary.LittleEndian.Uint64(tag[off+8:])
		entry.Type = MemoryEntryType(binary.LittleEndian.Uint32(tag[off+16:]))

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}
	}
}

// BootLoaderName returns the name reported by the bootloader or an empty
// string if the tag is missing.
func (i *Info) BootLoaderName() string {
	return cString(i.findTagByType(tagBootLoaderName))
}

// CmdLine returns the raw kernel command line.
func (i *Info) CmdLine() string {
	return cString(i.findTagByType(tagBootCmdLine))
}

// CmdLineArgs returns the command line as key-value pairs. Arguments
// without a value map to themselves.
func (i *Info) CmdLineArgs() map[string]string {
	kv := make(map[string]string)
	for _, pair := range strings.Fields(i.CmdLine()) {
		parts := strings.SplitN(pair, "=", 2)
		switch len(parts) {
		case 2: // foo=bar
			kv[parts[0]] = parts[1]
		case 1: // nofoo
			kv[parts[0]] = parts[0]
		}
	}

	return kv
}

// findTagByType scans the multiboot info data looking for the first tag of
// the specified type. It returns the tag contents excluding the tag header
// or nil if the tag is not present.
func (i *Info) findTagByType(t tagType) []byte {
	for off := infoHeaderSize; off+tagHeaderSize <= len(i.data); {
		curType := tagType(binary.LittleEndian.Uint32(i.data[off:]))
		size := int(binary.LittleEndian.Uint32(i.data[off+4:]))
		if curType == tagMbSectionEnd || size < tagHeaderSize || off+size > len(i.data) {
			return nil
		}

		if curType == t {
			return i.data[off+tagHeaderSize : off+size]
		}

		// Tags are aligned at 8-byte aligned addresses
		off += (size + 7) &^ 7
	}

	return nil
}

// cString returns the contents of a NULL-terminated string.
func cString(b []byte) string {
	for n, c := range b {
		if c == 0 {
			return string(b[:n])
		}
	}

	return string(b)
}
