// Package emu emulates the architectural state of an x86-64 processor that
// the boot code touches on its way from 32-bit protected mode into long
// mode. Guest code is ordinary Go code that drives the Machine through the
// same register accessors the kernel uses on hardware; the Machine enforces
// the ordering rules that the processor would and records every register
// write.
package emu

import (
	"errors"
	"fmt"
	"mxos/kernel"
	"mxos/kernel/cpu"
	"mxos/kernel/mem"
	"mxos/kernel/mem/vmm"
	"mxos/kernel/segment"

	"github.com/sirupsen/logrus"
)

// ErrHalted is returned by Run when the guest halts the processor.
var ErrHalted = errors.New("emu: processor halted")

// Exception is an x86 exception vector.
type Exception uint8

// The exceptions raised by the emulator.
const (
	ExcInvalidOpcode     Exception = 6
	ExcGeneralProtection Exception = 13
	ExcPageFault         Exception = 14
)

// String implements fmt.Stringer for Exception.
func (e Exception) String() string {
	switch e {
	case ExcInvalidOpcode:
		return "#UD"
	case ExcGeneralProtection:
		return "#GP"
	case ExcPageFault:
		return "#PF"
	default:
		return fmt.Sprintf("#%d", uint8(e))
	}
}

// TripleFault is returned by Run when the guest raises an exception. No IDT
// is installed while booting so every exception resets the machine.
type TripleFault struct {
	Vector Exception
	Reason string
}

// Error implements the error interface.
func (f *TripleFault) Error() string {
	return fmt.Sprintf("emu: triple fault: %s: %s", f.Vector, f.Reason)
}

// Mode is the operating mode of the processor.
type Mode uint8

// The list of operating modes.
const (
	ModeProtected Mode = iota
	ModeCompatibility
	ModeLong
)

// String implements fmt.Stringer for Mode.
func (m Mode) String() string {
	switch m {
	case ModeProtected:
		return "protected"
	case ModeCompatibility:
		return "compatibility"
	case ModeLong:
		return "long"
	default:
		return "unknown"
	}
}

// Write is a journaled register write.
type Write struct {
	Reg   cpu.Register
	Value uint64
}

const (
	// flagsReserved is bit 1 of RFLAGS which always reads as 1.
	flagsReserved = uint64(1 << 1)

	// bootloaderCS is the flat 32-bit code selector loaded by the
	// bootloader.
	bootloaderCS = segment.Selector(0x10)
)

type haltSignal struct{}

// Machine is an emulated processor attached to a Memory.
type Machine struct {
	profile *Profile
	mem     *Memory
	log     *logrus.Entry

	eax, ebx uint32

	rflags uint64
	cr0    uint64
	cr3    uint64
	cr4    uint64
	efer   uint64

	gdtr      segment.Pointer
	gdtLoaded bool

	cs, ss, ds, es segment.Selector
	rsp            uintptr
	mode           Mode

	journal []Write
	halts   int
}

// NewMachine returns a machine in the state that a multiboot2 bootloader
// leaves it in: flat 32-bit protected mode with paging disabled.
func NewMachine(p *Profile, m *Memory, log *logrus.Entry) *Machine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Machine{
		profile: p,
		mem:     m,
		log:     log.WithField("machine", p.Name),
		eax:     p.Handoff.Magic,
		ebx:     p.InfoPtr(),
		rflags:  flagsReserved,
		cr0:     cpu.CR0ProtectionEnable,
		cs:      bootloaderCS,
		mode:    ModeProtected,
	}
}

// Boot maps guest memory for p, installs the multiboot information
// structure and returns a machine ready to execute the entry point. The
// memory must be released with Close.
func Boot(p *Profile, log *logrus.Entry) (*Machine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	m, err := NewMemory(mem.Size(p.Memory.RAMSize))
	if err != nil {
		return nil, err
	}

	if err := p.Install(m); err != nil {
		m.Close()
		return nil, err
	}

	return NewMachine(p, m, log), nil
}

// Close releases guest memory.
func (m *Machine) Close() error {
	return m.mem.Close()
}

// Memory returns the physical memory of the machine.
func (m *Machine) Memory() *Memory {
	return m.mem
}

// Profile returns the machine profile.
func (m *Machine) Profile() *Profile {
	return m.profile
}

// Journal returns the register writes performed so far.
func (m *Machine) Journal() []Write {
	return append([]Write(nil), m.journal...)
}

// Mode returns the current operating mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// CS returns the current code selector.
func (m *Machine) CS() segment.Selector {
	return m.cs
}

// Halts returns the number of executed HLT instructions.
func (m *Machine) Halts() int {
	return m.halts
}

// Run executes fn as guest code. It returns ErrHalted once the guest halts
// or a *TripleFault if it raises an exception. If fn returns without
// halting Run returns nil.
func (m *Machine) Run(fn func()) (err error) {
	defer func() {
		switch r := recover().(type) {
		case nil:
		case haltSignal:
			err = ErrHalted
		case *TripleFault:
			m.log.WithError(r).Warn("machine reset")
			err = r
		default:
			panic(r)
		}
	}()

	fn()
	return nil
}

func (m *Machine) raise(vector Exception, format string, args ...interface{}) {
	panic(&TripleFault{Vector: vector, Reason: fmt.Sprintf(format, args...)})
}

func (m *Machine) record(reg cpu.Register, value uint64) {
	m.journal = append(m.journal, Write{Reg: reg, Value: value})
	m.log.WithFields(logrus.Fields{
		"reg":   reg.String(),
		"value": fmt.Sprintf("%#x", value),
		"mode":  m.mode.String(),
	}).Debug("register write")
}

// EntryRegisters returns EAX and EBX as loaded by the bootloader.
func (m *Machine) EntryRegisters() (eax, ebx uint32) {
	return m.eax, m.ebx
}

// ReadFlags returns RFLAGS.
func (m *Machine) ReadFlags() uint64 {
	return m.rflags
}

// WriteFlags loads RFLAGS. The ID bit keeps its value unless the processor
// supports CPUID.
func (m *Machine) WriteFlags(flags uint64) {
	if !m.profile.CPU.CPUID {
		flags = (flags &^ cpu.FlagsID) | (m.rflags & cpu.FlagsID)
	}

	m.rflags = flags | flagsReserved
	m.record(cpu.RegFlags, m.rflags)
}

// ID executes CPUID.
func (m *Machine) ID(leaf uint32) (uint32, uint32, uint32, uint32) {
	if !m.profile.CPU.CPUID {
		m.raise(ExcInvalidOpcode, "cpuid 0x%x: instruction not supported", leaf)
	}

	return m.profile.Features(leaf)
}

// ReadCR0 returns CR0.
func (m *Machine) ReadCR0() uint64 {
	return m.cr0
}

// WriteCR0 loads CR0. Setting PG with EFER.LME set activates long mode and
// requires CR4.PAE.
func (m *Machine) WriteCR0(value uint64) {
	var (
		enabling  = m.cr0&cpu.CR0Paging == 0 && value&cpu.CR0Paging != 0
		disabling = m.cr0&cpu.CR0Paging != 0 && value&cpu.CR0Paging == 0
	)

	if value&cpu.CR0Paging != 0 && value&cpu.CR0ProtectionEnable == 0 {
		m.raise(ExcGeneralProtection, "cr0: paging without protection enable")
	}

	switch {
	case enabling && m.efer&cpu.EFERLongModeEnable == 0:
		m.raise(ExcGeneralProtection, "cr0: legacy 32-bit paging is not emulated")
	case enabling && m.cr4&cpu.CR4PAE == 0:
		m.raise(ExcGeneralProtection, "cr0: paging with efer.lme requires cr4.pae")
	case disabling && m.mode == ModeLong:
		m.raise(ExcGeneralProtection, "cr0: cannot disable paging from 64-bit code")
	}

	m.cr0 = value
	m.record(cpu.RegCR0, value)

	switch {
	case enabling:
		m.efer |= cpu.EFERLongModeActive
		m.mode = ModeCompatibility

		// The next instruction is fetched through the new mappings.
		if code := m.profile.CodeAddr(); code != 0 {
			if _, err := m.Translate(code); err != nil {
				m.raise(ExcPageFault, "instruction fetch at 0x%x: %v", code, err)
			}
		}
	case disabling:
		m.efer &^= cpu.EFERLongModeActive
		m.mode = ModeProtected
	}
}

// ReadCR3 returns CR3.
func (m *Machine) ReadCR3() uint64 {
	return m.cr3
}

// WriteCR3 loads the physical address of the top-level page table.
func (m *Machine) WriteCR3(value uint64) {
	if value&^cpu.CR3PageMask != 0 {
		m.raise(ExcGeneralProtection, "cr3: 0x%x is not a page-aligned table address", value)
	}

	m.cr3 = value
	m.record(cpu.RegCR3, value)
}

// ReadCR4 returns CR4.
func (m *Machine) ReadCR4() uint64 {
	return m.cr4
}

// WriteCR4 loads CR4. PAE cannot be cleared while long mode is active.
func (m *Machine) WriteCR4(value uint64) {
	if m.efer&cpu.EFERLongModeActive != 0 && value&cpu.CR4PAE == 0 {
		m.raise(ExcGeneralProtection, "cr4: cannot clear pae in long mode")
	}

	m.cr4 = value
	m.record(cpu.RegCR4, value)
}

// ReadMSR executes RDMSR. Only EFER is implemented.
func (m *Machine) ReadMSR(msr uint32) uint64 {
	if msr != cpu.MSREFER {
		m.raise(ExcGeneralProtection, "rdmsr: unknown msr 0x%x", msr)
	}
	return m.efer
}

// WriteMSR executes WRMSR. Only EFER is implemented; EFER.LMA is read-only
// and EFER.LME cannot change while paging is enabled.
func (m *Machine) WriteMSR(msr uint32, value uint64) {
	if msr != cpu.MSREFER {
		m.raise(ExcGeneralProtection, "wrmsr: unknown msr 0x%x", msr)
	}

	if m.cr0&cpu.CR0Paging != 0 && (value^m.efer)&cpu.EFERLongModeEnable != 0 {
		m.raise(ExcGeneralProtection, "wrmsr: efer.lme changed with paging enabled")
	}

	if value&cpu.EFERLongModeEnable != 0 && !m.profile.CPU.LongMode {
		m.raise(ExcGeneralProtection, "wrmsr: efer.lme set on a cpu without long mode")
	}

	m.efer = (value &^ cpu.EFERLongModeActive) | (m.efer & cpu.EFERLongModeActive)
	m.record(cpu.RegEFER, m.efer)
}

// GDTR returns the operand of the last LGDT.
func (m *Machine) GDTR() segment.Pointer {
	return m.gdtr
}

// LoadGDT executes LGDT.
func (m *Machine) LoadGDT(ptr segment.Pointer) {
	m.gdtr = ptr
	m.gdtLoaded = true
	m.record(cpu.RegGDTR, ptr.Base)
}

// FarJump reloads CS from the GDT and continues at target. Loading a
// 64-bit code descriptor while long mode is active switches the processor
// into 64-bit mode.
func (m *Machine) FarJump(sel segment.Selector, target func()) {
	if !m.gdtLoaded {
		m.raise(ExcGeneralProtection, "far jump: no GDT loaded")
	}

	desc, ok := segment.Lookup(m.linear(), m.gdtr, sel)
	switch {
	case !ok:
		m.raise(ExcGeneralProtection, "far jump: selector 0x%x outside GDT limit 0x%x", uint16(sel), m.gdtr.Limit)
	case !desc.Present():
		m.raise(ExcGeneralProtection, "far jump: selector 0x%x is not present", uint16(sel))
	case !desc.Code():
		m.raise(ExcGeneralProtection, "far jump: selector 0x%x is not a code segment", uint16(sel))
	case desc.Long() && m.efer&cpu.EFERLongModeActive == 0:
		m.raise(ExcGeneralProtection, "far jump: 64-bit code segment outside long mode")
	}

	m.cs = sel
	if desc.Long() {
		m.mode = ModeLong
	}
	m.record(cpu.RegCS, uint64(sel))

	target()
}

// LoadDataSegments loads SS, DS and ES. The null selector is only valid in
// 64-bit mode.
func (m *Machine) LoadDataSegments(sel segment.Selector) {
	if sel == segment.NullSelector && m.mode != ModeLong {
		m.raise(ExcGeneralProtection, "mov ss: null selector outside 64-bit mode")
	}

	m.ss, m.ds, m.es = sel, sel, sel
	m.record(cpu.RegSS, uint64(sel))
	m.record(cpu.RegDS, uint64(sel))
	m.record(cpu.RegES, uint64(sel))
}

// StackPointer returns RSP.
func (m *Machine) StackPointer() uintptr {
	return m.rsp
}

// SetStackPointer loads RSP. In 64-bit mode the value must be canonical and
// the slot below it mapped.
func (m *Machine) SetStackPointer(sp uintptr) {
	if m.mode == ModeLong {
		if !vmm.IsCanonical(sp) {
			m.raise(ExcGeneralProtection, "rsp: 0x%x is not canonical", sp)
		}
		if _, err := m.Translate(sp - 8); err != nil {
			m.raise(ExcPageFault, "rsp: 0x%x is not mapped: %v", sp-8, err)
		}
	}

	m.rsp = sp
	m.record(cpu.RegRSP, uint64(sp))
}

// Halt executes HLT. With interrupts disabled the processor never resumes
// so Run returns ErrHalted.
func (m *Machine) Halt() {
	m.halts++
	m.log.WithField("mode", m.mode.String()).Debug("hlt")
	panic(haltSignal{})
}

// Translate converts a virtual address to a physical address using the
// active paging hierarchy. With paging disabled addresses are physical.
func (m *Machine) Translate(virtAddr uintptr) (uintptr, error) {
	if m.cr0&cpu.CR0Paging == 0 {
		return virtAddr, nil
	}

	var (
		physAddr uintptr
		fault    error = errNotMapped
	)

	if err := vmm.Walk(m.mem, uintptr(m.cr3), virtAddr, func(level uint8, _ uintptr, pte *vmm.PageTableEntry) bool {
		if !pte.Present() {
			return false
		}

		if level == vmm.LevelP3 && pte.Huge() && !m.profile.CPU.Huge1G {
			fault = errReservedBit
			return false
		}

		if level == vmm.LevelP1 || (pte.Huge() && (level == vmm.LevelP3 || level == vmm.LevelP2)) {
			physAddr = pte.Address() + (virtAddr & uintptr(vmm.PageSizeAt(level)-1))
			fault = nil
			return false
		}

		return true
	}); err != nil {
		return 0, err
	}

	return physAddr, fault
}

var (
	errNotMapped   = errors.New("page not present")
	errReservedBit = errors.New("reserved bit set in page table entry")
)

// linear returns a view of memory that resolves addresses through the
// active paging hierarchy. Windows may not cross a page boundary.
func (m *Machine) linear() mem.Physical {
	return linearMemory{m}
}

type linearMemory struct {
	m *Machine
}

func (l linearMemory) Window(addr uintptr, size mem.Size) ([]byte, *kernel.Error) {
	if mem.Size(vmm.PageOffset(addr))+size > mem.PageSize {
		return nil, mem.ErrOutOfRange
	}

	physAddr, err := l.m.Translate(addr)
	if err != nil {
		return nil, mem.ErrOutOfRange
	}
	return l.m.mem.Window(physAddr, size)
}
