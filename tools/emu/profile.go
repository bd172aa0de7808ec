package emu

import (
	"fmt"
	"mxos/kernel/cpu"
	"mxos/kernel/hal/multiboot"
	"mxos/kernel/mem"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile describes the machine that the boot code runs on: the processor
// features it reports, the state the bootloader leaves behind and the
// contents of the multiboot information structure.
type Profile struct {
	Name    string         `toml:"name"`
	CPU     CPUProfile     `toml:"cpu"`
	Handoff HandoffProfile `toml:"handoff"`
	Memory  MemoryProfile  `toml:"memory"`
	Kernel  KernelProfile  `toml:"kernel"`
	Loader  LoaderProfile  `toml:"loader"`
}

// CPUProfile lists the processor capabilities visible through RFLAGS and
// CPUID.
type CPUProfile struct {
	// CPUID controls whether RFLAGS.ID can be toggled and CPUID executed.
	CPUID bool `toml:"cpuid"`

	// MaxExtendedLeaf is reported in EAX for leaf 0x80000000.
	MaxExtendedLeaf uint32 `toml:"max_extended_leaf"`

	LongMode bool `toml:"long_mode"`

	// Huge1G allows 1GiB pages at the P3 level.
	Huge1G bool `toml:"huge_1g"`
}

// HandoffProfile describes the registers loaded by the bootloader.
type HandoffProfile struct {
	Magic uint32 `toml:"magic"`

	// InfoAddr is where the information structure is loaded.
	InfoAddr uint64 `toml:"info_addr"`

	// NullInfo leaves EBX zero while still loading the structure.
	NullInfo bool `toml:"null_info"`
}

// MemoryProfile sizes guest RAM and lists the memory map regions reported
// to the kernel.
type MemoryProfile struct {
	RAMSize uint64          `toml:"ram_size"`
	Regions []RegionProfile `toml:"regions"`
}

// RegionProfile is a single memory map entry.
type RegionProfile struct {
	Base   uint64 `toml:"base"`
	Length uint64 `toml:"length"`

	// Type is one of available, reserved, acpi or nvs.
	Type string `toml:"type"`
}

// KernelProfile describes the loaded kernel image.
type KernelProfile struct {
	// StrTabAddr is where the section name table is loaded.
	StrTabAddr uint64           `toml:"strtab_addr"`
	Sections   []SectionProfile `toml:"sections"`
}

// SectionProfile is a single ELF section of the kernel image.
type SectionProfile struct {
	Name    string `toml:"name"`
	Address uint64 `toml:"address"`
	Size    uint64 `toml:"size"`

	// Flags is a combination of W (writable), A (allocated) and X
	// (executable).
	Flags string `toml:"flags"`
}

// LoaderProfile holds the strings passed by the bootloader.
type LoaderProfile struct {
	Name    string `toml:"name"`
	CmdLine string `toml:"cmdline"`
}

// DefaultProfile returns a 64MiB long mode capable machine booted by a
// multiboot2 loader.
func DefaultProfile() *Profile {
	const ramSize = 64 * mem.Mb

	return &Profile{
		Name: "default",
		CPU: CPUProfile{
			CPUID:           true,
			MaxExtendedLeaf: 0x80000008,
			LongMode:        true,
			Huge1G:          true,
		},
		Handoff: HandoffProfile{
			Magic:    multiboot.BootloaderMagic,
			InfoAddr: 0x10c000,
		},
		Memory: MemoryProfile{
			RAMSize: uint64(ramSize),
			Regions: []RegionProfile{
				{Base: 0, Length: 0x9fc00, Type: "available"},
				{Base: 0x9fc00, Length: 0x400, Type: "reserved"},
				{Base: 0xf0000, Length: 0x10000, Type: "reserved"},
				{Base: 0x100000, Length: uint64(ramSize) - 0x120000, Type: "available"},
				{Base: uint64(ramSize) - 0x20000, Length: 0x20000, Type: "reserved"},
				{Base: 0xfffc0000, Length: 0x40000, Type: "reserved"},
			},
		},
		Kernel: KernelProfile{
			StrTabAddr: 0x10f000,
			Sections: []SectionProfile{
				{Name: ".text", Address: 0x100000, Size: 0x1000, Flags: "AX"},
				{Name: ".bss", Address: 0x101000, Size: 0xa000, Flags: "WA"},
			},
		},
		Loader: LoaderProfile{
			Name:    "mxboot emulator",
			CmdLine: "console=ega",
		},
	}
}

// LoadProfile decodes the profile stored at path. Keys missing from the
// file keep the values of DefaultProfile.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if _, err := toml.DecodeFile(path, p); err != nil {
		return nil, fmt.Errorf("emu: failed to decode profile %q: %w", path, err)
	}
	return p, p.Validate()
}

// ParseProfile decodes a profile from its TOML text. Keys missing from data
// keep the values of DefaultProfile.
func ParseProfile(data string) (*Profile, error) {
	p := DefaultProfile()
	if _, err := toml.Decode(data, p); err != nil {
		return nil, fmt.Errorf("emu: failed to decode profile: %w", err)
	}
	return p, p.Validate()
}

// Validate checks that the profile describes a machine that can be built.
func (p *Profile) Validate() error {
	if p.Memory.RAMSize < uint64(legacyHoleEnd) || !mem.PageSize.Aligned(uintptr(p.Memory.RAMSize)) {
		return fmt.Errorf("emu: profile %q: ram_size must be page-aligned and at least 0x%x", p.Name, legacyHoleEnd)
	}

	if p.Handoff.InfoAddr == 0 || p.Handoff.InfoAddr&7 != 0 || p.Handoff.InfoAddr > uint64(^uint32(0)) {
		return fmt.Errorf("emu: profile %q: info_addr 0x%x must be a non-zero, 8-byte aligned 32-bit address", p.Name, p.Handoff.InfoAddr)
	}

	for _, r := range p.Memory.Regions {
		if _, err := regionType(r.Type); err != nil {
			return fmt.Errorf("emu: profile %q: %w", p.Name, err)
		}
	}

	for _, s := range p.Kernel.Sections {
		if _, err := sectionFlags(s.Flags); err != nil {
			return fmt.Errorf("emu: profile %q: section %q: %w", p.Name, s.Name, err)
		}
	}

	return nil
}

// Features returns the CPUID register values reported for leaf.
func (p *Profile) Features(leaf uint32) (eax, ebx, ecx, edx uint32) {
	switch {
	case leaf == cpu.LeafExtendedMax:
		return p.CPU.MaxExtendedLeaf, 0, 0, 0
	case leaf == cpu.LeafExtendedFeatures && p.CPU.MaxExtendedLeaf >= cpu.LeafExtendedFeatures:
		if p.CPU.LongMode {
			edx |= cpu.ExtFeatureLongMode
		}
		if p.CPU.Huge1G {
			edx |= cpu.ExtFeaturePage1GB
		}
		return 0, 0, 0, edx
	default:
		return 0, 0, 0, 0
	}
}

// CodeAddr returns the address of the first executable kernel section. The
// emulator requires it to stay mapped once paging is enabled.
func (p *Profile) CodeAddr() uintptr {
	for _, s := range p.Kernel.Sections {
		if flags, _ := sectionFlags(s.Flags); flags&multiboot.ElfSectionExecutable != 0 {
			return uintptr(s.Address)
		}
	}
	return 0
}

// InfoPtr returns the value that the bootloader leaves in EBX.
func (p *Profile) InfoPtr() uint32 {
	if p.Handoff.NullInfo {
		return 0
	}
	return uint32(p.Handoff.InfoAddr)
}

// BuildInfo encodes the multiboot information structure and the section
// name table described by the profile.
func (p *Profile) BuildInfo() (info []byte, strTabAddr uint64, strTab []byte) {
	b := multiboot.NewBuilder()
	if p.Loader.CmdLine != "" {
		b.CmdLine(p.Loader.CmdLine)
	}
	if p.Loader.Name != "" {
		b.BootLoaderName(p.Loader.Name)
	}

	entries := make([]multiboot.MemoryMapEntry, 0, len(p.Memory.Regions))
	for _, r := range p.Memory.Regions {
		typ, _ := regionType(r.Type)
		entries = append(entries, multiboot.MemoryMapEntry{PhysAddress: r.Base, Length: r.Length, Type: typ})
	}
	b.MemoryMap(entries...)

	if len(p.Kernel.Sections) != 0 {
		sections := make([]multiboot.ElfSection, 0, len(p.Kernel.Sections))
		for _, s := range p.Kernel.Sections {
			flags, _ := sectionFlags(s.Flags)
			sections = append(sections, multiboot.ElfSection{Name: s.Name, Flags: flags, Address: s.Address, Size: s.Size})
		}
		b.ElfSections(p.Kernel.StrTabAddr, sections...)
	}

	info = b.Build()
	strTabAddr, strTab = b.StringTable()
	return info, strTabAddr, strTab
}

// Install loads the information structure and the section name table into
// m.
func (p *Profile) Install(m *Memory) error {
	info, strTabAddr, strTab := p.BuildInfo()
	if err := m.Load(uintptr(p.Handoff.InfoAddr), info); err != nil {
		return err
	}
	return m.Load(uintptr(strTabAddr), strTab)
}

func regionType(name string) (multiboot.MemoryEntryType, error) {
	switch strings.ToLower(name) {
	case "available", "":
		return multiboot.MemAvailable, nil
	case "reserved":
		return multiboot.MemReserved, nil
	case "acpi":
		return multiboot.MemAcpiReclaimable, nil
	case "nvs":
		return multiboot.MemNvs, nil
	default:
		return 0, fmt.Errorf("unknown memory region type %q", name)
	}
}

func sectionFlags(spec string) (multiboot.ElfSectionFlag, error) {
	var flags multiboot.ElfSectionFlag
	for _, ch := range strings.ToUpper(spec) {
		switch ch {
		case 'W':
			flags |= multiboot.ElfSectionWritable
		case 'A':
			flags |= multiboot.ElfSectionAllocated
		case 'X':
			flags |= multiboot.ElfSectionExecutable
		default:
			return 0, fmt.Errorf("unknown section flag %q", ch)
		}
	}
	return flags, nil
}
