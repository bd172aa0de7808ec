package multiboot

import (
	"encoding/binary"
	"mxos/kernel/mem"
)

const (
	// elfTagHeaderSize is the size of the {num, entsize, shndx} triple
	// that precedes the section headers.
	elfTagHeaderSize = 12

	elfSection32Size = 40
	elfSection64Size = 64
)

// ElfSectionFlag defines an OR-able flag associated with an ElfSection.
type ElfSectionFlag uint32

const (
	// ElfSectionWritable marks the section as writable.
	ElfSectionWritable ElfSectionFlag = 1 << iota

	// ElfSectionAllocated means that the section is allocated in memory
	// when the image is loaded (e.g .bss sections)
	ElfSectionAllocated

	// ElfSectionExecutable marks the section as executable.
	ElfSectionExecutable
)

// ElfSection describes a section of the loaded kernel image.
type ElfSection struct {
	Name    string
	Type    uint32
	Flags   ElfSectionFlag
	Address uint64
	Size    uint64
}

// ElfSectionVisitor defies a visitor function that gets invoked by VisitElfSections
// for rach ELF section that belongs to the loaded kernel image.
type ElfSectionVisitor func(name string, flags ElfSectionFlag, address uintptr, size uint64)

// elfSectionHeader decodes the section header at index from the ELF symbols
// tag. Both the 32-bit (40 byte) and 64-bit (64 byte) layouts are accepted.
func elfSectionHeader(tag []byte, entSize, index int) (nameIndex uint32, sec ElfSection, ok bool) {
	off := elfTagHeaderSize + index*entSize
	if off+entSize > len(tag) {
		return 0, sec, false
	}

	hdr := tag[off : off+entSize]
	nameIndex = binary.LittleEndian.Uint32(hdr[0:])
	sec.Type = binary.LittleEndian.Uint32(hdr[4:])

	switch entSize {
	case elfSection64Size:
		sec.Flags = ElfSectionFlag(binary.LittleEndian.Uint64(hdr[8:]))
		sec.Address = binary.LittleEndian.Uint64(hdr[16:])
		sec.Size = binary.LittleEndian.Uint64(hdr[32:])
	case elfSection32Size:
		sec.Flags = ElfSectionFlag(binary.LittleEndian.Uint32(hdr[8:]))
		sec.Address = uint64(binary.LittleEndian.Uint32(hdr[12:]))
		sec.Size = uint64(binary.LittleEndian.Uint32(hdr[20:]))
	default:
		return 0, sec, false
	}

	return nameIndex, sec, true
}

// elfSections returns the ELF symbols tag contents together with the
// section count, the section header size and the string table index.
func (i *Info) elfSections() (tag []byte, count, entSize, strIndex int) {
	tag = i.findTagByType(tagElfSymbols)
	if len(tag) < elfTagHeaderSize {
		return nil, 0, 0, 0
	}

	count = int(binary.LittleEndian.Uint32(tag[0:]))
	entSize = int(binary.LittleEndian.Uint32(tag[4:]))
	strIndex = int(binary.LittleEndian.Uint32(tag[8:]))
	return tag, count, entSize, strIndex
}

// sectionName looks up a NULL-terminated name in the section string table.
// The string table lives at the physical address recorded in its section
// header.
func (i *Info) sectionName(strTab ElfSection, nameIndex uint32) string {
	if strTab.Size == 0 || uint64(nameIndex) >= strTab.Size {
		return ""
	}

	window, err := i.phys.Window(uintptr(strTab.Address)+uintptr(nameIndex), mem.Size(strTab.Size-uint64(nameIndex)))
	if err != nil {
		return ""
	}

	return cString(window)
}

// VisitElfSections invokes visitor for each ELF entry that belongs to the
// loaded kernel image. Sections with zero size are skipped.
func (i *Info) VisitElfSections(visitor ElfSectionVisitor) {
	i.visitSections(func(sec *ElfSection) bool {
		visitor(sec.Name, sec.Flags, uintptr(sec.Address), sec.Size)
		return true
	})
}

func (i *Info) visitSections(fn func(*ElfSection) bool) {
	tag, count, entSize, strIndex := i.elfSections()
	if tag == nil {
		return
	}

	_, strTab, _ := elfSectionHeader(tag, entSize, strIndex)

	for index := 0; index < count; index++ {
		nameIndex, sec, ok := elfSectionHeader(tag, entSize, index)
		if !ok {
			return
		}

		if sec.Size == 0 {
			continue
		}

		sec.Name = i.sectionName(strTab, nameIndex)
		if !fn(&sec) {
			return
		}
	}
}

// KernelBounds returns the physical address range [start, end) spanned by
// the sections of the loaded kernel image. It returns false if no ELF
// symbols are available.
func (i *Info) KernelBounds() (start, end uintptr, ok bool) {
	i.visitSections(func(sec *ElfSection) bool {
		secStart, secEnd := uintptr(sec.Address), uintptr(sec.Address+sec.Size)
		if !ok || secStart < start {
			start = secStart
		}
		if !ok || secEnd > end {
			end = secEnd
		}
		ok = true
		return true
	})

	return start, end, ok
}
