// Package ilimport is the minimal ECMA-335-shaped module reader: it turns a
// declarative description of a module's type/method/field tables into
// interned typesystem.* entities, and serves RVA-backed field reads out of
// a module's raw data section.
//
// Full bytecode metadata parsing is explicitly out of scope;
// this package exists only far enough to exercise ModuleDesc's contract.
package ilimport

import (
	"fmt"

	"github.com/funvibe/funbit"

	"github.com/aot-native/ilc/internal/diagnostics"
)

// SectionReader implements typesystem.MetadataReader over an in-memory data
// section, the way a loaded PE module's .data/.rdata block would be mapped
// in a real driver.
type SectionReader struct {
	Data []byte
}

// SectionData returns the length bytes at rva, failing BadImageFormat when
// the requested span runs past the section.
func (s SectionReader) SectionData(rva uint32, length uint32) ([]byte, error) {
	start := int(rva)
	end := start + int(length)
	if start < 0 || end > len(s.Data) || end < start {
		return nil, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat,
			fmt.Sprintf("rva=0x%x len=%d", rva, length),
			fmt.Sprintf("section is only %d bytes long", len(s.Data)))
	}
	return s.Data[start:end], nil
}

// directoryHeader is the fixed-layout header funbit decodes at the front of
// a module's data section: a magic tag followed by the block count.
type directoryHeader struct {
	Magic uint32
	Count uint32
}

const sectionMagic = 0x494C4452 // "ILDR"

// decodeDirectoryHeader reads the 8-byte directory header with funbit's
// bit-syntax matcher instead of manual byte-slicing.
func decodeDirectoryHeader(data []byte) (directoryHeader, error) {
	var hdr directoryHeader
	if len(data) < 8 {
		return hdr, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, "section-header", "section shorter than the 8-byte directory header")
	}

	bs := funbit.NewBitStringFromBytes(data[:8])
	_, err := funbit.Match(bs,
		funbit.Field(&hdr.Magic, 32, funbit.BigEndian()),
		funbit.Field(&hdr.Count, 32, funbit.BigEndian()),
	)
	if err != nil {
		return hdr, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, "section-header", err.Error())
	}
	if hdr.Magic != sectionMagic {
		return hdr, diagnostics.NewTypeSystemError(diagnostics.BadImageFormat, "section-header",
			fmt.Sprintf("bad magic 0x%x", hdr.Magic))
	}
	return hdr, nil
}

// ValidateSection checks that a module's raw data section starts with a
// well-formed directory header before any RVA field read is attempted
// against it.
func ValidateSection(data []byte) error {
	_, err := decodeDirectoryHeader(data)
	return err
}
