package multiboot

import (
	"encoding/binary"
	"mxos/kernel"
)

// Multiboot2 protocol constants.
const (
	// HeaderMagic identifies the multiboot2 header embedded in the kernel
	// image.
	HeaderMagic = uint32(0xe85250d6)

	// BootloaderMagic is the value that a compliant bootloader loads into
	// EAX before jumping to the kernel entry point.
	BootloaderMagic = uint32(0x36d76289)

	// ArchitectureI386 requests 32-bit protected mode entry.
	ArchitectureI386 = uint32(0)

	// HeaderLength is the length of the header including the end tag.
	HeaderLength = uint32(24)

	// HeaderAlign is the required alignment of the header within the first
	// 32K of the kernel image.
	HeaderAlign = 8
)

var (
	// ErrHeaderTooShort is returned when parsing less than HeaderLength bytes.
	ErrHeaderTooShort = &kernel.Error{Module: "multiboot", Message: "header is truncated"}

	// ErrHeaderMagic is returned when the header magic does not match.
	ErrHeaderMagic = &kernel.Error{Module: "multiboot", Message: "bad header magic"}

	// ErrHeaderChecksum is returned when the header fields do not sum to zero.
	ErrHeaderChecksum = &kernel.Error{Module: "multiboot", Message: "bad header checksum"}

	// ErrHeaderEndTag is returned when the header is not terminated by an end tag.
	ErrHeaderEndTag = &kernel.Error{Module: "multiboot", Message: "missing header end tag"}
)

// Header is the multiboot2 header that the bootloader searches for.
type Header struct {
	Magic        uint32
	Architecture uint32
	Length       uint32
	Checksum     uint32
}

// Checksum returns the value that makes magic+arch+length+checksum wrap to
// zero.
func Checksum(magic, arch, length uint32) uint32 {
	return -(magic + arch + length)
}

// NewHeader returns the header for an i386 entry point with no optional tags.
func NewHeader() Header {
	return Header{
		Magic:        HeaderMagic,
		Architecture: ArchitectureI386,
		Length:       HeaderLength,
		Checksum:     Checksum(HeaderMagic, ArchitectureI386, HeaderLength),
	}
}

// Valid returns true if the header fields sum to zero modulo 2^32.
func (h Header) Valid() bool {
	return h.Magic+h.Architecture+h.Length+h.Checksum == 0
}

// Marshal returns the on-disk encoding of the header followed by the end
// tag {type 0, flags 0, size 8}.
func (h Header) Marshal() []byte {
	out := make([]byte, HeaderLength)
	binary.LittleEndian.PutUint32(out[0:], h.Magic)
	binary.LittleEndian.PutUint32(out[4:], h.Architecture)
	binary.LittleEndian.PutUint32(out[8:], h.Length)
	binary.LittleEndian.PutUint32(out[12:], h.Checksum)

	// end tag: u16 type, u16 flags, u32 size
	binary.LittleEndian.PutUint16(out[16:], 0)
	binary.LittleEndian.PutUint16(out[18:], 0)
	binary.LittleEndian.PutUint32(out[20:], 8)
	return out
}

// ParseHeader decodes and verifies a header previously produced by Marshal.
func ParseHeader(data []byte) (Header, *kernel.Error) {
	var h Header
	if len(data) < int(HeaderLength) {
		return h, ErrHeaderTooShort
	}

	h.Magic = binary.LittleEndian.Uint32(data[0:])
	h.Architecture = binary.LittleEndian.Uint32(data[4:])
	h.Length = binary.LittleEndian.Uint32(data[8:])
	h.Checksum = binary.LittleEndian.Uint32(data[12:])

	switch {
	case h.Magic != HeaderMagic:
		return h, ErrHeaderMagic
	case !h.Valid():
		return h, ErrHeaderChecksum
	case h.Length < HeaderLength || int(h.Length) > len(data):
		return h, ErrHeaderTooShort
	}

	end := data[h.Length-8 : h.Length]
	if binary.LittleEndian.Uint32(end[0:]) != 0 || binary.LittleEndian.Uint32(end[4:]) != 8 {
		return h, ErrHeaderEndTag
	}

	return h, nil
}
